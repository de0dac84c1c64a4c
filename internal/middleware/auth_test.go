package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/unionsquare/unionsquare/internal/config"
	"github.com/unionsquare/unionsquare/internal/values"
)

func newAuthTestRouter(cfg config.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), ErrorHandler(), Auth(cfg))
	router.GET("/protected", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	return router
}

func acceptedTokenConfig(t *testing.T, plainToken string) config.AuthConfig {
	t.Helper()
	bp, err := values.ParseBypassPath("/health")
	if err != nil {
		t.Fatal(err)
	}
	return config.AuthConfig{
		AcceptedTokenHashes: map[string]struct{}{config.HashToken(plainToken): {}},
		BypassPaths:         []values.BypassPath{bp},
	}
}

func TestAuthAcceptsValidBearerToken(t *testing.T) {
	router := newAuthTestRouter(acceptedTokenConfig(t, "correct-token"))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer correct-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
}

func TestAuthRejectsMissingAuthorizationHeader(t *testing.T) {
	router := newAuthTestRouter(acceptedTokenConfig(t, "correct-token"))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", w.Code)
	}
}

func TestAuthRejectsMalformedAuthorizationHeader(t *testing.T) {
	router := newAuthTestRouter(acceptedTokenConfig(t, "correct-token"))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic not-a-bearer-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", w.Code)
	}
}

func TestAuthRejectsWrongToken(t *testing.T) {
	router := newAuthTestRouter(acceptedTokenConfig(t, "correct-token"))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", w.Code)
	}
}

func TestAuthBypassesConfiguredPaths(t *testing.T) {
	router := newAuthTestRouter(acceptedTokenConfig(t, "correct-token"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected /health to bypass auth entirely, got status %d", w.Code)
	}
}

func TestAuthAcceptsValidJWTWhenSecretConfigured(t *testing.T) {
	secret := []byte("test-hmac-secret")
	cfg := config.AuthConfig{
		AcceptedTokenHashes: map[string]struct{}{},
		JWTSecret:           secret,
	}
	router := newAuthTestRouter(cfg)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator", "exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestAuthRejectsJWTSignedWithWrongSecret(t *testing.T) {
	cfg := config.AuthConfig{
		AcceptedTokenHashes: map[string]struct{}{},
		JWTSecret:           []byte("correct-secret"),
	}
	router := newAuthTestRouter(cfg)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "operator"})
	signed, err := token.SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", w.Code)
	}
}
