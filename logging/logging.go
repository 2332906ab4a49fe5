// Package logging builds the one process-wide zap.Logger lexicore
// threads explicitly through its constructors (spec's ambient stack
// §A.1: "no package-level globals except a Nop() default for tests").
// Grounded on 2lar-b2's initializeLogger (environment-switched
// zap.Config, string level name mapped to zap.AtomicLevel).
package logging

import "go.uber.org/zap"

// Environment selects the base zap.Config profile: "production" uses
// JSON encoding and sampling; anything else uses the development
// profile (console encoding, stack traces on warn+).
type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
)

// New builds a zap.Logger for env at the given level name ("debug",
// "info", "warn", "error"; defaults to "info" on an unrecognized or
// empty value).
func New(env Environment, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == Production {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

// Nop returns a logger that discards everything, for tests and
// call sites that receive a nil *zap.Logger and want a safe default.
func Nop() *zap.Logger {
	return zap.NewNop()
}
