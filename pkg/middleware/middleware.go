package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ksred/tradejournal-api/pkg/response"
)

// OwnerKey is the gin context key holding the authenticated owner id.
const OwnerKey = "ownerID"

// OwnerID returns the owner set by JWTAuth or DemoOwner.
func OwnerID(c *gin.Context) string {
	return c.GetString(OwnerKey)
}

// TokenValidator resolves a bearer token to its owner id.
type TokenValidator func(token string) (string, error)

func JWTAuth(validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || strings.ToLower(bearerToken[0]) != "bearer" {
			response.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		ownerID, err := validate(bearerToken[1])
		if err != nil || ownerID == "" {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		c.Set(OwnerKey, ownerID)
		c.Next()
	}
}

// DemoOwner authenticates every request as ownerID. Only for DEMO_MODE.
func DemoOwner(ownerID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(OwnerKey, ownerID)
		c.Next()
	}
}

// RateRule limits requests whose route starts with Prefix.
type RateRule struct {
	Prefix    string
	PerMinute float64
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client and route. Routes matching no
// rule are not limited.
type RateLimiter struct {
	rules    []RateRule
	mu       sync.Mutex
	visitors map[string]*visitor
	idleTTL  time.Duration
}

func NewRateLimiter(rules ...RateRule) *RateLimiter {
	return &RateLimiter{
		rules:    rules,
		visitors: make(map[string]*visitor),
		idleTTL:  3 * time.Minute,
	}
}

// Run drops idle visitors every minute until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup(time.Now())
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idleTTL {
			delete(rl.visitors, key)
		}
	}
}

func (rl *RateLimiter) limitFor(path string) rate.Limit {
	for _, rule := range rl.rules {
		if strings.HasPrefix(path, rule.Prefix) {
			if rule.PerMinute <= 0 {
				return rate.Inf
			}
			return rate.Limit(rule.PerMinute / 60.0)
		}
	}
	return rate.Inf
}

func (rl *RateLimiter) getLimiter(path, clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := clientID + ":" + path
	v, exists := rl.visitors[key]
	if !exists {
		limit := rl.limitFor(path)
		burst := 1
		if limit != rate.Inf {
			burst = int(float64(limit)*60/10) + 1
		}
		v = &visitor{limiter: rate.NewLimiter(limit, burst)}
		rl.visitors[key] = v
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := OwnerID(c)
		if clientID == "" {
			clientID = c.ClientIP()
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !rl.getLimiter(path, clientID).Allow() {
			response.TooManyRequests(c, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}
