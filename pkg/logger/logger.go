// Package logger builds the zap loggers threaded through every GrausDb
// component's Config struct. It exists so every package depends on one
// place to construct a *zap.SugaredLogger rather than configuring zap
// itself.
package logger

import (
	"go.uber.org/zap"
)

// New builds a production JSON logger scoped to service, as used by the
// root grausdb package's Open.
func New(service string) *zap.SugaredLogger {
	base, err := zap.NewProduction()
	if err != nil {
		// zap.NewProduction with no options only fails if the process
		// cannot open its own stderr sink, at which point structured
		// logging is moot; fall back to a Nop logger rather than panic.
		return zap.NewNop().Sugar()
	}
	return base.Sugar().With("service", service)
}

// NewDevelopment builds a human-readable, colorized logger for local
// development.
func NewDevelopment(service string) *zap.SugaredLogger {
	base, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return base.Sugar().With("service", service)
}

// NewTest builds a no-op logger for use in tests, where log output only
// adds noise.
func NewTest() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
