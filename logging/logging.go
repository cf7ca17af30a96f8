package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide logger. LOG_FORMAT=console switches to the
// development encoder; LOG_LEVEL tunes verbosity (default info).
func New() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		cfg = zap.NewDevelopmentConfig()
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	log, err := cfg.Build()
	if err != nil {
		// Logger construction only fails on bad config; fall back to a no-op
		// logger rather than refusing to start.
		return zap.NewNop()
	}
	return log
}
