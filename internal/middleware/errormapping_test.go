package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/unionsquare/unionsquare/internal/apierror"
)

func newErrorTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery(), ErrorHandler())
	return router
}

func TestErrorHandlerRendersAppErrorEnvelope(t *testing.T) {
	router := newErrorTestRouter()
	router.GET("/fails", func(c *gin.Context) {
		c.Error(apierror.New(apierror.CodeInvalidTargetUrl, "bad target url"))
	})

	req := httptest.NewRequest(http.MethodGet, "/fails", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body["message"] != "bad target url" {
		t.Errorf("got message %v", body["message"])
	}
	if body["request_id"] == "" || body["request_id"] == nil {
		t.Error("expected request_id to be populated in the envelope")
	}
}

func TestErrorHandlerDoesNotDoubleWriteAfterAbortWithError(t *testing.T) {
	router := newErrorTestRouter()
	router.GET("/fails", func(c *gin.Context) {
		AbortWithError(c, apierror.New(apierror.CodeUnauthorized, "nope"))
	})

	req := httptest.NewRequest(http.MethodGet, "/fails", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected exactly one JSON object written, got decode error: %v (body=%q)", err, w.Body.String())
	}
}

func TestErrorHandlerMapsUnknownErrorToInternal(t *testing.T) {
	router := newErrorTestRouter()
	router.GET("/fails", func(c *gin.Context) {
		c.Error(http.ErrBodyNotAllowed)
	})

	req := httptest.NewRequest(http.MethodGet, "/fails", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("got status %d, want 500", w.Code)
	}
}

func TestRecoveryConvertsPanicToInternalError(t *testing.T) {
	router := newErrorTestRouter()
	router.GET("/panics", func(c *gin.Context) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("got status %d, want 500", w.Code)
	}
}

func TestErrorHandlerNoOpWhenNoErrors(t *testing.T) {
	router := newErrorTestRouter()
	router.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "fine" {
		t.Errorf("got status=%d body=%q", w.Code, w.Body.String())
	}
}
