// Package middleware provides the HTTP middleware chain for Union Square
// (§4.3): request-id assignment, structured logging, error mapping, and
// bearer-token authentication, applied outer to inner in that order.
//
// This file implements request-id generation and correlation.
//
// Purpose:
// Every proxied request is tagged with a time-ordered RequestId so it can
// be correlated across the response's x-request-id header and every audit
// record the request produces. The id must exist before logging and
// before the error-mapping middleware runs, which is why request-id is
// outermost in the chain.
//
// Implementation Details:
// - Preserves a syntactically valid v7 UUID supplied in x-request-id.
// - Otherwise mints a new RequestId (UUIDv7, time-ordered).
// - Stores the typed ids.RequestId in the Gin context for handlers.
// - Sets x-request-id on the response, including on error responses.
//
// Usage:
//
//	router.Use(middleware.RequestID())
//
//	func MyHandler(c *gin.Context) {
//	    requestID := middleware.GetRequestID(c)
//	}
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/unionsquare/unionsquare/internal/ids"
)

const (
	// RequestIDHeader is the header name for request id propagation.
	RequestIDHeader = "X-Request-Id"

	// RequestIDKey is the context key for the typed request id.
	RequestIDKey = "request_id"
)

// RequestID middleware assigns a RequestId to every request: preserved
// from x-request-id if it is a syntactically valid v7 UUID, otherwise freshly minted
// (§4.3 step 1).
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		var requestID ids.RequestId

		if header := c.GetHeader(RequestIDHeader); header != "" {
			// Only a v7 id is kept: the version digit opens the third group
			// of the canonical form.
			if parsed, err := ids.ParseRequestId(header); err == nil && parsed.String()[14] == '7' {
				requestID = parsed
			}
		}
		if requestID.IsZero() {
			requestID = ids.NewRequestId()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID.String())

		c.Next()
	}
}

// GetRequestID retrieves the typed RequestId from the Gin context. If the
// middleware did not run (a test calling a handler directly, say), a fresh
// id is minted so callers never observe the zero value.
func GetRequestID(c *gin.Context) ids.RequestId {
	if v, exists := c.Get(RequestIDKey); exists {
		if id, ok := v.(ids.RequestId); ok {
			return id
		}
	}
	return ids.NewRequestId()
}
