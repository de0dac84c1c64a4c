package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestGzipCompressesWhenAcceptEncodingPresent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Gzip(DefaultCompression))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, strings.Repeat("hello world ", 50))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatal("expected Content-Encoding: gzip")
	}
	reader, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("response body is not valid gzip: %v", err)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("failed to decode gzip body: %v", err)
	}
	if !strings.Contains(string(decoded), "hello world") {
		t.Errorf("decoded body missing expected content, got %q", decoded)
	}
}

func TestGzipSkipsClientsWithoutGzipSupport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Gzip(DefaultCompression))
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "plain") })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") == "gzip" {
		t.Error("expected no compression without an Accept-Encoding: gzip request header")
	}
	if w.Body.String() != "plain" {
		t.Errorf("got body %q", w.Body.String())
	}
}

func TestGzipSkipsWebsocketUpgrades(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Gzip(DefaultCompression))
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "plain") })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Upgrade", "websocket")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") == "gzip" {
		t.Error("expected websocket upgrade requests to bypass compression")
	}
}

func TestGzipWithExclusionsSkipsExcludedPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GzipWithExclusions(DefaultCompression, []string{"/admin"}))
	router.GET("/admin/audit/stream", func(c *gin.Context) { c.String(http.StatusOK, "plain") })

	req := httptest.NewRequest(http.MethodGet, "/admin/audit/stream", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") == "gzip" {
		t.Error("expected excluded path to bypass compression")
	}
}
