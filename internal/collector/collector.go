package collector

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/execmon/internal/alerts"
	"github.com/your-org/execmon/internal/detect"
	"github.com/your-org/execmon/internal/metrics"
	"github.com/your-org/execmon/internal/model"
	"github.com/your-org/execmon/internal/probe"
)

// EventStore persists decoded events. A nil store disables persistence.
type EventStore interface {
	InsertExecEvent(ev model.Event) error
}

// Collector drains an event source and fans each decoded event out to
// metrics, the detection engine, the alert writer and the store.
type Collector struct {
	src    Source
	logger *zap.Logger
}

func New(src Source, logger *zap.Logger) *Collector {
	return &Collector{src: src, logger: logger}
}

// Run consumes the source until ctx is cancelled or the source closes.
// Per-record failures are absorbed: a record that cannot be decoded is
// counted and skipped, lost-sample notices become a metric, and store or
// writer errors are logged without stopping the loop.
func (c *Collector) Run(ctx context.Context, eng *detect.Engine, writer *alerts.FileWriter, store EventStore) error {
	go func() {
		<-ctx.Done()
		c.src.Close()
	}()

	c.logger.Info("collector started")

	for {
		rec, err := c.src.Read()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, os.ErrClosed) {
				return nil
			}
			c.logger.Warn("event read failed", zap.Error(err))
			continue
		}

		if rec.LostSamples > 0 {
			// Channel-full drops on the kernel side. Accepted and
			// accounted for, never fatal.
			metrics.AddLost(rec.LostSamples)
			c.logger.Warn("events dropped by full channel",
				zap.Int("cpu", rec.CPU),
				zap.Uint64("lost", rec.LostSamples))
		}
		if len(rec.RawSample) == 0 {
			continue
		}

		pr, err := probe.DecodeRecord(rec.RawSample)
		if err != nil {
			metrics.IncDecodeError()
			c.logger.Warn("undecodable exec record", zap.Error(err))
			continue
		}

		ev := convertRecord(pr)
		metrics.IncEvent()

		if store != nil {
			if err := store.InsertExecEvent(ev); err != nil {
				c.logger.Warn("store exec event", zap.Error(err))
			}
		}

		for _, a := range eng.Evaluate(ev) {
			metrics.IncAlert(a.RuleID)
			if err := writer.Write(a); err != nil {
				c.logger.Warn("write alert", zap.Error(err))
			}
		}
	}
}

// convertRecord stamps and decodes a wire record. The record itself carries
// no timestamp; ordering across CPUs is the consumer's concern, so the
// stamp is taken here.
func convertRecord(rec probe.Record) model.Event {
	return model.Event{
		Timestamp: time.Now().UTC(),
		Pid:       rec.PID,
		Ppid:      rec.PPID,
		Comm:      rec.CommString(),
		Filename:  rec.FilenameString(),
	}
}

// WithSignalCancel returns a context cancelled on SIGINT or SIGTERM.
func WithSignalCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()

	return ctx, cancel
}
