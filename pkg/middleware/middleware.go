package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ksred/klear-exec/pkg/response"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limits maps a path prefix to a request rate. Paths without a matching
// prefix are not limited.
type Limits map[string]rate.Limit

// DefaultLimits returns the per-endpoint limits used by the server
func DefaultLimits() Limits {
	return Limits{
		"/api/v1/auth":     rate.Limit(10.0 / 60.0),   // 10 requests per minute
		"/api/v1/orders":   rate.Limit(100.0 / 60.0),  // 100 requests per minute
		"/api/v1/internal": rate.Limit(6000.0 / 60.0), // broker fill feed
	}
}

// RateLimiter keeps one token bucket per client and path
type RateLimiter struct {
	limits Limits
	burst  int

	mu       sync.Mutex
	visitors map[string]*visitor
}

func NewRateLimiter(limits Limits, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limits:   limits,
		burst:    burst,
		visitors: make(map[string]*visitor),
	}
}

func (rl *RateLimiter) limitFor(path string) rate.Limit {
	best, limit := "", rate.Inf
	for prefix, l := range rl.limits {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(best) {
			best, limit = prefix, l
		}
	}
	return limit
}

func (rl *RateLimiter) getLimiter(path, clientKey string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := clientKey + ":" + path
	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limitFor(path), rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Cleanup evicts idle visitors every interval until ctx is done
func (rl *RateLimiter) Cleanup(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			for key, v := range rl.visitors {
				if time.Since(v.lastSeen) > idle {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.GetString("clientID")
		if clientKey == "" {
			clientKey = c.ClientIP()
		}

		if !rl.getLimiter(c.FullPath(), clientKey).Allow() {
			response.TooManyRequests(c, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// JWTAuth validates the bearer token and exposes its claims on the context
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c.GetHeader("Authorization"), secret)
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}

		// Ensure required claims exist
		for _, claim := range []string{"client_id", "exp"} {
			if _, exists := claims[claim]; !exists {
				response.Unauthorized(c, fmt.Sprintf("Missing required claim: %s", claim))
				c.Abort()
				return
			}
		}

		c.Set("claims", claims)
		if clientID, ok := claims["client_id"].(string); ok {
			c.Set("clientID", clientID)
		}

		c.Next()
	}
}

// InternalAuth guards broker-facing routes. Tokens must carry the
// "internal" permission.
func InternalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c.GetHeader("Authorization"), secret)
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}

		clientID, ok := claims["client_id"].(string)
		if !ok || clientID == "" {
			response.Unauthorized(c, "Invalid client ID in token")
			c.Abort()
			return
		}

		if !hasPermission(claims, "internal") {
			log.Warn().Str("client_id", clientID).Str("path", c.FullPath()).Msg("internal route denied")
			response.Forbidden(c, "Internal permission required")
			c.Abort()
			return
		}

		c.Set("clientID", clientID)
		c.Next()
	}
}

var (
	errMissingHeader = errors.New("authorization header required")
	errHeaderFormat  = errors.New("invalid authorization header format")
	errInvalidToken  = errors.New("invalid token")
)

func bearerClaims(header, secret string) (jwt.MapClaims, error) {
	if header == "" {
		return nil, errMissingHeader
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, errHeaderFormat
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidToken
	}
	return claims, nil
}

func hasPermission(claims jwt.MapClaims, permission string) bool {
	perms, ok := claims["permissions"].([]interface{})
	if !ok {
		return false
	}
	for _, p := range perms {
		if s, ok := p.(string); ok && s == permission {
			return true
		}
	}
	return false
}
