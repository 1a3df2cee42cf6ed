package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/database"
	"github.com/ksred/tradejournal-api/pkg/response"
)

const ServiceName = "Gold Trading Journal API"

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc reports a dependency as unhealthy by returning an error.
type CheckFunc func(ctx context.Context) error

type Component struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

type Report struct {
	Status     string      `json:"status"`
	Service    string      `json:"service"`
	Components []Component `json:"components"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Checker runs readiness checks against the service's dependencies. The
// database check is always present; redis and nats register when configured.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

func NewChecker(db *gorm.DB) *Checker {
	c := &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: 2 * time.Second,
	}
	c.Register("database", func(ctx context.Context) error {
		return database.Ping(ctx, db)
	})
	return c
}

func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs every registered check concurrently.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()
	sort.Strings(names)

	components := make([]Component, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := checks[name](checkCtx)
			comp := Component{Name: name, Status: StatusHealthy, Latency: time.Since(start).String()}
			if err != nil {
				comp.Status = StatusUnhealthy
				comp.Error = err.Error()
			}
			components[i] = comp
		}(i, name)
	}
	wg.Wait()

	report := Report{
		Status:     StatusHealthy,
		Service:    ServiceName,
		Components: components,
		Timestamp:  time.Now().UTC(),
	}
	for _, comp := range components {
		if comp.Status != StatusHealthy {
			report.Status = StatusUnhealthy
		}
	}
	return report
}

// GinHandlers contains HTTP handlers for the public status endpoints
type GinHandlers struct {
	checker *Checker
}

func NewGinHandlers(checker *Checker) *GinHandlers {
	return &GinHandlers{
		checker: checker,
	}
}

// RootHandler handles GET /
func (h *GinHandlers) RootHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.OK(c, gin.H{"message": ServiceName})
	}
}

// HealthHandler handles GET /api/health. Any failing dependency turns the
// response into a 503.
func (h *GinHandlers) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := h.checker.Check(c.Request.Context())
		if report.Status != StatusHealthy {
			response.Unavailable(c, report, "One or more dependencies are unavailable")
			return
		}
		response.OK(c, report)
	}
}
