// Package middleware: error mapping (§4.3 step 3).
//
// Purpose:
// Catches the inner handler's typed error (an *apierror.Error stashed on
// the Gin context via c.Error) and renders the uniform JSON envelope
// {code, message, request_id, details?} with the HTTP status §7's
// taxonomy assigns to that code. ErrorHandler, Recovery and AbortWithError
// in this file are the only code that renders a failure response — other
// layers hand an *apierror.Error to c.Error or AbortWithError, so the
// envelope is always consistent.
//
// Ordering: error mapping sits between structured logging and auth, so
// errors are both logged (by the outer logging middleware observing the
// final status) and uniformly rendered.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unionsquare/unionsquare/internal/apierror"
	"github.com/unionsquare/unionsquare/internal/logger"
)

// DebugKey is the context key ErrorHandler reads to decide whether
// Details is populated in the envelope (§7: debug mode, off by default).
const DebugKey = "debug_mode"

// ErrorHandler handles the *apierror.Error (or generic error) left on the
// Gin context by the inner handler and renders the JSON envelope.
func ErrorHandler() gin.HandlerFunc {
	log := logger.HTTP()
	return func(c *gin.Context) {
		c.Next()

		// AbortWithError already rendered the JSON envelope itself; only
		// handlers that merely call c.Error(err) without aborting still
		// need a response shaped here.
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		requestID := GetRequestID(c).String()
		debug, _ := c.Get(DebugKey)
		debugMode, _ := debug.(bool)

		err := c.Errors.Last().Err
		if appErr, ok := err.(*apierror.Error); ok {
			logAppError(log, appErr)
			c.JSON(appErr.HTTPStatus(), appErr.ToResponse(requestID, debugMode))
			return
		}

		log.Error().Err(err).Str("request_id", requestID).Msg("unhandled error")
		internal := apierror.New(apierror.CodeInternal, "an unexpected error occurred")
		c.JSON(http.StatusInternalServerError, internal.ToResponse(requestID, debugMode))
	}
}

func logAppError(log logger.ScopedLogger, appErr *apierror.Error) {
	event := log.Warn()
	if appErr.HTTPStatus() >= 500 {
		event = log.Error()
	}
	event.Str("code", string(appErr.Code)).Str("phase", string(appErr.Phase)).Msg(appErr.Message)
}

// Recovery recovers from a panic in the handler chain and renders it as an
// internal-error envelope rather than crashing the connection.
func Recovery() gin.HandlerFunc {
	log := logger.HTTP()
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("recovered from panic")
				requestID := GetRequestID(c).String()
				internal := apierror.New(apierror.CodeInternal, "an unexpected error occurred")
				c.AbortWithStatusJSON(http.StatusInternalServerError, internal.ToResponse(requestID, false))
			}
		}()
		c.Next()
	}
}

// AbortWithError aborts the request immediately with err's mapped status
// and envelope, for use inside a handler that wants to short-circuit.
func AbortWithError(c *gin.Context, err *apierror.Error) {
	requestID := GetRequestID(c).String()
	debug, _ := c.Get(DebugKey)
	debugMode, _ := debug.(bool)
	c.Error(err)
	c.AbortWithStatusJSON(err.HTTPStatus(), err.ToResponse(requestID, debugMode))
}
