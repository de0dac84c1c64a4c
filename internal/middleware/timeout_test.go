package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestTimeoutAllowsFastHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TimeoutWithDuration(100 * time.Millisecond))
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "fast") })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "fast" {
		t.Errorf("got status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestTimeoutAbortsSlowHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TimeoutWithDuration(20 * time.Millisecond))
	router.GET("/test", func(c *gin.Context) {
		time.Sleep(100 * time.Millisecond)
		c.String(http.StatusOK, "too slow")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestTimeout {
		t.Errorf("got status %d, want 408", w.Code)
	}
}

func TestTimeoutPanicIsRecoveredByOuterRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Recovery())
	router.Use(TimeoutWithDuration(time.Second))
	router.GET("/test", func(c *gin.Context) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	// If a panic inside Timeout's spawned goroutine were not relayed back
	// to this goroutine, it would crash the test process instead of
	// reaching here as a 500.
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("got status %d, want 500", w.Code)
	}
}

func TestTimeoutSkipsExcludedPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config := TimeoutConfig{
		Timeout:       10 * time.Millisecond,
		ErrorMessage:  "Request timeout",
		ExcludedPaths: []string{"/admin/audit/stream"},
	}
	router := gin.New()
	router.Use(Timeout(config))
	router.GET("/admin/audit/stream", func(c *gin.Context) {
		time.Sleep(30 * time.Millisecond)
		c.String(http.StatusOK, "slow but excluded")
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/audit/stream", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected excluded path to bypass timeout enforcement, got status %d", w.Code)
	}
}
