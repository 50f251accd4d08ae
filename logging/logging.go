// Package logging wraps a single process-wide zap.Logger so every
// component logs through the same structured, leveled sink instead of
// sprinkling raw log.Printf calls across the tree.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// Init builds the global logger. development selects a human-readable
// console encoder; production selects JSON with ISO-8601 timestamps.
func Init(development bool) error {
	var err error
	once.Do(func() {
		var cfg zap.Config
		if development {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "timestamp"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		logger, err = cfg.Build(zap.AddCallerSkip(0))
	})
	return err
}

// L returns the global logger, falling back to a development logger if
// Init was never called — useful from tests.
func L() *zap.Logger {
	if logger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return logger
}

// Sync flushes any buffered log entries. Call on shutdown.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
