// Package logging builds the zap loggers used by the command-line tools.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a named sugared logger. Debug selects a development
// config with debug level and console output; otherwise production JSON at
// info level is used.
func NewLogger(name string, debug bool) *zap.SugaredLogger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = !debug

	logger, err := cfg.Build()
	if err != nil {
		// zap only fails on bad sink paths; stderr is always available.
		logger = zap.NewExample()
	}
	return logger.Named(name).Sugar()
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
