package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/unionsquare/unionsquare/internal/apierror"
)

func newSizeLimitedRouter(maxSize int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), ErrorHandler(), RequestSizeLimiter(maxSize))
	router.POST("/test", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			AbortWithError(c, apierror.New(apierror.CodeRequestTooLarge, "request body exceeds maximum allowed size"))
			return
		}
		c.String(http.StatusOK, "%d", len(body))
	})
	return router
}

func TestRequestSizeLimiterAllowsSmallBody(t *testing.T) {
	router := newSizeLimitedRouter(1024)
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString("hello"))
	req.ContentLength = 5
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestRequestSizeLimiterRejectsByContentLength(t *testing.T) {
	router := newSizeLimitedRouter(10)
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(strings.Repeat("x", 20)))
	req.ContentLength = 20
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("got status %d, want 413", w.Code)
	}
}

func TestRequestSizeLimiterSkipsGetRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestSizeLimiter(1))
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected GET requests to bypass the size limiter, got status %d", w.Code)
	}
}
