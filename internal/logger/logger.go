package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the application logger instance
var Logger = zerolog.Nop()

// Init initializes the logger writing to stderr. The CLI keeps stdout for
// user-facing output, so diagnostics never mix with it.
func Init(level, format string) {
	InitWithWriter(level, format, os.Stderr)
}

// InitWithWriter initializes the logger with an explicit destination
func InitWithWriter(level, format string, out io.Writer) {
	logLevel := parseLogLevel(level)
	zerolog.SetGlobalLevel(logLevel)

	if strings.ToLower(format) == "json" {
		Logger = zerolog.New(out).With().
			Timestamp().
			Logger()
	} else {
		output := zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}
		Logger = zerolog.New(output).With().
			Timestamp().
			Logger()
	}

	// Set the global logger
	log.Logger = Logger
}

// parseLogLevel parses string log level to zerolog level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger returns the configured logger instance
func GetLogger() zerolog.Logger {
	return Logger
}
