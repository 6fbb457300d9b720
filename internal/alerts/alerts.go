package alerts

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/your-org/execmon/internal/detect"
)

type FileWriter struct {
	mu      sync.Mutex
	f       *os.File
	encoder *json.Encoder
	logger  *zap.Logger
}

func NewFileWriter(path string, logger *zap.Logger) (*FileWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open alert file: %w", err)
	}
	return &FileWriter{
		f:       f,
		encoder: json.NewEncoder(f),
		logger:  logger,
	}, nil
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *FileWriter) Write(a detect.Alert) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return fmt.Errorf("alert writer closed")
	}

	if err := w.encoder.Encode(a); err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	w.logger.Info("alert",
		zap.String("rule", a.RuleID),
		zap.String("comm", a.Event.Comm),
		zap.String("filename", a.Event.Filename),
		zap.Uint32("pid", a.Event.Pid),
		zap.Uint32("ppid", a.Event.Ppid))

	return nil
}
