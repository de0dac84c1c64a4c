package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unionsquare/unionsquare/internal/apierror"
)

// RequestSizeLimiter rejects requests whose declared or actual body size
// exceeds maxSize with RequestTooLarge (413), per §4.4 step 4. A
// Content-Length pre-check catches the common case cheaply; the
// http.MaxBytesReader wrap catches a lying or chunked request.
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			AbortWithError(c, apierror.New(apierror.CodeRequestTooLarge, "request body exceeds maximum allowed size").
				WithPhase(apierror.PhaseRequestParsing))
			return
		}

		// http.MaxBytesReader makes a later Read return *http.MaxBytesError
		// once maxSize bytes have been consumed; the hot path maps that
		// error to RequestTooLarge when it collects the body (§4.4 step 4).
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
