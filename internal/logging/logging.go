// Package logging configures the process-wide structured logger and hands
// out component-scoped loggers to the rest of the engine.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global log level and output format. level is parsed with
// zerolog.ParseLevel; an unrecognized level falls back to info. Setting
// WALGUARD_ENV=dev switches to a human-readable console writer instead of
// JSON lines.
func Init(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if os.Getenv("WALGUARD_ENV") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// Component returns a logger tagged with the given component name, so log
// lines can be filtered by subsystem (engine, objectstore, codec, cli, ...).
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
