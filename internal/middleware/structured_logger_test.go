package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStructuredLoggerPassesThroughSuccessfulRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), StructuredLogger())
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", w.Code)
	}
}

func TestStructuredLoggerSkipsConfiguredPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hit := false
	router := gin.New()
	router.Use(RequestID(), StructuredLogger())
	router.GET("/health", func(c *gin.Context) {
		hit = true
		c.String(http.StatusOK, "healthy")
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if !hit || w.Code != http.StatusOK {
		t.Errorf("expected /health to still be served normally, status=%d hit=%v", w.Code, hit)
	}
}

func TestStructuredLoggerWithConfigFuncRespectsLogQueryFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := StructuredLoggerConfig{LogQuery: false}
	router := gin.New()
	router.Use(RequestID(), StructuredLoggerWithConfigFunc(cfg))
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/test?secret=value", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", w.Code)
	}
}
