package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// SystemTraceID is used when no distributed trace context is available.
	SystemTraceID = "system"
	// SystemSpanID is used when no distributed span context is available.
	SystemSpanID = "system"
)

// NewLogger creates a production-ready zap logger that emits JSON logs to stdout.
// Every entry carries the service and environment identifiers. When a log file is
// configured, logs are duplicated to that file to aid local debugging.
func NewLogger(app config.AppConfig, cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stdout"}
	zcfg.ErrorOutputPaths = []string{"stdout"}

	if cfg.File != "" {
		if err := ensureLogFile(cfg.File); err != nil {
			return nil, fmt.Errorf("prepare log file: %w", err)
		}
		zcfg.OutputPaths = append(zcfg.OutputPaths, cfg.File)
		zcfg.ErrorOutputPaths = append(zcfg.ErrorOutputPaths, cfg.File)
	}

	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.MessageKey = "msg"
	zcfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	zcfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	zcfg.InitialFields = map[string]any{
		"service": app.Name,
		"env":     app.Environment,
	}

	return zcfg.Build()
}

// WithTrace returns a logger enriched with trace and span identifiers.
// Empty values are normalised to "unknown" so the fields are always present.
func WithTrace(logger *zap.Logger, traceID, spanID string) *zap.Logger {
	if logger == nil {
		logger = zap.L()
	}
	if traceID == "" {
		traceID = "unknown"
	}
	if spanID == "" {
		spanID = "unknown"
	}
	return logger.With(
		zap.String("trace_id", traceID),
		zap.String("span_id", spanID),
	)
}

func ensureLogFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		f, createErr := os.OpenFile(path, os.O_CREATE, 0o644)
		if createErr != nil {
			return createErr
		}
		_ = f.Close()
	}
	return nil
}
