package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the process-wide logger. Components derive scoped loggers from
// it via With().Str("service", ...).
func New() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// ConsoleWriter for local development for more readable logs.
	if os.Getenv("ENV") == "development" {
		return logger.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel)
	}

	return logger.Level(zerolog.InfoLevel)
}
