// Package middleware: structured request logging (§4.3 step 2).
//
// Purpose:
// Records (request_id, method, path) on ingress and (status, elapsed_ms) on
// egress, via the same zerolog sub-logger every other component uses.
// Never logs request or response bodies — only metadata, matching §4.3.2's
// "never logs bodies".
//
// Log Levels:
// - INFO: 2xx/3xx responses
// - WARN: 4xx responses
// - ERROR: 5xx responses
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unionsquare/unionsquare/internal/logger"
)

// StructuredLoggerConfig allows customization of structured logging.
type StructuredLoggerConfig struct {
	// SkipPaths lists paths to skip logging for (e.g. health checks).
	SkipPaths []string

	// LogQuery, if false, omits query parameters from the log entry.
	LogQuery bool
}

// DefaultStructuredLoggerConfig returns the default configuration: health
// and metrics endpoints skipped, query strings logged.
func DefaultStructuredLoggerConfig() StructuredLoggerConfig {
	return StructuredLoggerConfig{
		SkipPaths: []string{"/health", "/metrics"},
		LogQuery:  true,
	}
}

// StructuredLogger installs structured request logging with the default
// configuration.
func StructuredLogger() gin.HandlerFunc {
	return StructuredLoggerWithConfigFunc(DefaultStructuredLoggerConfig())
}

// StructuredLoggerWithConfigFunc installs structured request logging with a
// caller-supplied configuration.
func StructuredLoggerWithConfigFunc(config StructuredLoggerConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}
	log := logger.HTTP()

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skip[path] {
			c.Next()
			return
		}

		start := time.Now()
		raw := c.Request.URL.RawQuery
		requestID := GetRequestID(c)

		log.Info().
			Str("request_id", requestID.String()).
			Str("method", c.Request.Method).
			Str("path", path).
			Msg("request received")

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}

		event = event.
			Str("request_id", requestID.String()).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Float64("duration_ms", float64(duration.Microseconds())/1000.0)

		if config.LogQuery && raw != "" {
			event = event.Str("query", raw)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("request completed")
	}
}
