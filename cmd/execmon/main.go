package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/your-org/execmon/internal/alerts"
	"github.com/your-org/execmon/internal/collector"
	"github.com/your-org/execmon/internal/config"
	"github.com/your-org/execmon/internal/detect"
	"github.com/your-org/execmon/internal/metrics"
	"github.com/your-org/execmon/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "./config/rules.example.yaml", "Path to YAML configuration")
		promAddr   = flag.String("prom-addr", ":9100", "Address for Prometheus metrics (e.g. :9100)")
		alertFile  = flag.String("alert-file", "./alerts.jsonl", "Path to JSON lines alert file")
		storePath  = flag.String("store", "", "SQLite data directory (overrides config; empty uses config)")
		simulate   = flag.Bool("simulate", false, "Use the simulated event source instead of attaching the probe")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	eng, err := detect.NewEngine(cfg)
	if err != nil {
		logger.Fatal("init detect engine", zap.Error(err))
	}

	writer, err := alerts.NewFileWriter(*alertFile, logger)
	if err != nil {
		logger.Fatal("init alerts writer", zap.Error(err))
	}
	defer writer.Close()

	dataDir := cfg.StorePath
	if *storePath != "" {
		dataDir = *storePath
	}
	var eventStore collector.EventStore
	if dataDir != "" {
		db, err := store.NewDB(dataDir)
		if err != nil {
			logger.Fatal("init event store", zap.Error(err))
		}
		defer db.Close()
		eventStore = db
	}

	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	go func() {
		logger.Info("prometheus metrics listening", zap.String("addr", *promAddr))
		if err := http.ListenAndServe(*promAddr, mux); err != nil {
			logger.Fatal("metrics HTTP server", zap.Error(err))
		}
	}()

	var src collector.Source
	if *simulate {
		logger.Info("using simulated event source")
		src = collector.NewSimSource(2 * time.Second)
	} else {
		src, err = collector.NewEBPFSource(cfg.PerfBufferPages * os.Getpagesize())
		if err != nil {
			// A structural mismatch with the running kernel refuses
			// attachment outright; running with wrong offsets is
			// never an option.
			logger.Fatal("load exec probe", zap.Error(err))
		}
	}

	coll := collector.New(src, logger)
	ctx, cancel := collector.WithSignalCancel(context.Background())
	defer cancel()

	if err := coll.Run(ctx, eng, writer, eventStore); err != nil {
		logger.Fatal("collector", zap.Error(err))
	}
	logger.Info("collector stopped")
}
