// Package health reports readiness of the development backend over HTTP and the standard gRPC health service.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"remindme/internal/storage"
)

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// Checker runs named probes.
type Checker struct {
	mu      sync.RWMutex
	probes  map[string]Probe
	timeout time.Duration
}

// NewChecker returns a Checker with no probes. Each probe gets timeout; zero means 2s.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{probes: make(map[string]Probe), timeout: timeout}
}

// Add registers p under name, replacing any probe with the same name.
func (c *Checker) Add(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
}

// Check runs every probe and returns "ok" or the error text per name, and whether all passed.
func (c *Checker) Check(ctx context.Context) (map[string]string, bool) {
	c.mu.RLock()
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	probes := make(map[string]Probe, len(c.probes))
	for k, v := range c.probes {
		probes[k] = v
	}
	c.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := probes[name](pctx)
		cancel()
		if err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	return results, healthy
}

// StoreProbe reads a probe key from s; a store that cannot answer is unhealthy.
func StoreProbe(s storage.Store) Probe {
	return func(ctx context.Context) error {
		_, err := s.GetMany(ctx, "health:probe")
		return err
	}
}

// Handler serves GET /health: 200 with per-probe results when healthy, 503 otherwise.
func Handler(c *Checker) gin.HandlerFunc {
	return func(gc *gin.Context) {
		checks, ok := c.Check(gc.Request.Context())
		if !ok {
			gc.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
			return
		}
		gc.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
	}
}
