package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const secret = "test-secret"

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func serve(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/api/v1/orders", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("clientID"))
	})
	r.GET("/api/v1/internal/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("clientID"))
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	router := newRouter(JWTAuth(secret))
	exp := time.Now().Add(time.Hour).Unix()

	w := serve(router, "/api/v1/orders", signed(t, jwt.MapClaims{"client_id": "abc", "exp": exp}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", w.Body.String())

	tests := []struct {
		name  string
		token string
	}{
		{"missing header", ""},
		{"garbage", "not-a-token"},
		{"missing client", signed(t, jwt.MapClaims{"exp": exp})},
		{"missing exp", signed(t, jwt.MapClaims{"client_id": "abc"})},
		{"expired", signed(t, jwt.MapClaims{"client_id": "abc", "exp": time.Now().Add(-time.Hour).Unix()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, serve(router, "/api/v1/orders", tt.token).Code)
		})
	}
}

func TestInternalAuth(t *testing.T) {
	router := newRouter(InternalAuth(secret))
	exp := time.Now().Add(time.Hour).Unix()

	trader := signed(t, jwt.MapClaims{"client_id": "abc", "exp": exp, "permissions": []string{"trade"}})
	assert.Equal(t, http.StatusForbidden, serve(router, "/api/v1/internal/ping", trader).Code)

	broker := signed(t, jwt.MapClaims{"client_id": "broker", "exp": exp, "permissions": []string{"trade", "internal"}})
	w := serve(router, "/api/v1/internal/ping", broker)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "broker", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(router, "/api/v1/internal/ping", "").Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(Limits{"/api/v1/orders": rate.Every(time.Hour)}, 2)
	router := newRouter(rl.Middleware())

	assert.Equal(t, http.StatusOK, serve(router, "/api/v1/orders", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, "/api/v1/orders", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "/api/v1/orders", "").Code)

	// unmatched paths are not limited
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(router, "/api/v1/internal/ping", "").Code)
	}
}

func TestLimitForPrefersLongestPrefix(t *testing.T) {
	rl := NewRateLimiter(Limits{"/api": 1, "/api/v1/orders": 5}, 1)
	assert.Equal(t, rate.Limit(5), rl.limitFor("/api/v1/orders/:order_id"))
	assert.Equal(t, rate.Limit(1), rl.limitFor("/api/v1/auth/token"))
	assert.Equal(t, rate.Inf, rl.limitFor("/metrics"))
}
