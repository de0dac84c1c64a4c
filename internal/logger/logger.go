// Package logger sets up the service's structured logger: a global
// zerolog.Logger initialized once at startup, plus named sub-loggers so
// every component's log lines carry a consistent "component" field.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ScopedLogger is the type every component-scoped sub-logger (Audit(),
// RingBuffer(), Provider(), HTTP(), ...) returns.
type ScopedLogger = *zerolog.Logger

// Log is the global logger instance, configured by Initialize.
var Log zerolog.Logger

// Initialize sets up the global logger: level parsing, JSON output in
// production, pretty console output in development.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.Level(logLevel).With().
		Str("service", "unionsquare").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

// GetLogger returns the global logger instance.
func GetLogger() *zerolog.Logger {
	return &Log
}

// RingBuffer creates a logger for ring-buffer events (overwrite reporting,
// periodic stats).
func RingBuffer() ScopedLogger {
	l := Log.With().Str("component", "ringbuffer").Logger()
	return &l
}

// Audit creates a logger for the audit worker and its EventStore
// collaborators.
func Audit() ScopedLogger {
	l := Log.With().Str("component", "audit").Logger()
	return &l
}

// Provider creates a logger for provider-adapter routing and metadata
// extraction.
func Provider() ScopedLogger {
	l := Log.With().Str("component", "provider").Logger()
	return &l
}

// HotPath creates a logger for the streaming proxy handler.
func HotPath() ScopedLogger {
	l := Log.With().Str("component", "hotpath").Logger()
	return &l
}

// HTTP creates a logger for the structured request-logging middleware.
func HTTP() ScopedLogger {
	l := Log.With().Str("component", "http").Logger()
	return &l
}

// Security creates a logger for authentication events.
func Security() ScopedLogger {
	l := Log.With().Str("component", "security").Logger()
	return &l
}

// WebSocket creates a logger for the audit-tail broadcast hub.
func WebSocket() ScopedLogger {
	l := Log.With().Str("component", "websocket").Logger()
	return &l
}
