// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production JSON logger at the given level (debug, info, warn,
// error). An unknown level is an error.
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Must is New that falls back to an info-level production logger when the
// level cannot be parsed.
func Must(level string) *zap.Logger {
	logger, err := New(level)
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Warn("invalid log level, using info", zap.String("level", level), zap.Error(err))
		return fallback
	}
	return logger
}
