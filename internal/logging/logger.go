// Package logging builds the zap loggers used across the engine. A logger is
// always passed down explicitly at construction time — nothing in the tree
// reaches for a package-level logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production logger, or a development logger with debug-level
// output when debug is set.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	return cfg.Build()
}

// Nop returns a logger that discards everything. Tests and embedders that
// bring their own logging use this.
func Nop() *zap.Logger { return zap.NewNop() }
