package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DependencyChecker probes one backing dependency.
type DependencyChecker func(ctx context.Context) error

// HealthHandler exposes the health contract every service shares: a basic
// probe that never touches dependencies, a full probe, and a database probe.
type HealthHandler struct {
	service   string
	startedAt time.Time
	database  DependencyChecker
	cache     DependencyChecker
	degraded  func() bool
}

// NewHealthHandler builds a health handler. Nil checkers are reported as
// "skipped"; a nil degraded func means the service never starts degraded.
func NewHealthHandler(service string, database, cache DependencyChecker, degraded func() bool) *HealthHandler {
	return &HealthHandler{
		service:   service,
		startedAt: time.Now().UTC(),
		database:  database,
		cache:     cache,
		degraded:  degraded,
	}
}

// HealthResponse is the health probe payload.
type HealthResponse struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Uptime       string            `json:"uptime"`
	Degraded     bool              `json:"degraded,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Basic answers without touching any dependency. The gateway uses it as the
// login service's liveness signal.
func (h *HealthHandler) Basic(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: h.service,
		Uptime:  time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}

// Full probes every dependency and degrades the status when one fails.
func (h *HealthHandler) Full(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	deps := make(map[string]string, 2)
	healthy := true

	deps["database"] = h.check(ctx, h.database, &healthy)
	deps["cache"] = h.check(ctx, h.cache, &healthy)

	status := http.StatusOK
	response := HealthResponse{
		Status:       "ok",
		Service:      h.service,
		Uptime:       time.Since(h.startedAt).Truncate(time.Second).String(),
		Dependencies: deps,
	}

	if h.degraded != nil && h.degraded() {
		response.Degraded = true
	}
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, response)
}

// Database probes only the database dependency.
func (h *HealthHandler) Database(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy := true
	deps := map[string]string{
		"database": h.check(ctx, h.database, &healthy),
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	c.JSON(status, HealthResponse{
		Status:       state,
		Service:      h.service,
		Uptime:       time.Since(h.startedAt).Truncate(time.Second).String(),
		Dependencies: deps,
	})
}

func (h *HealthHandler) check(ctx context.Context, checker DependencyChecker, healthy *bool) string {
	if checker == nil {
		return "skipped"
	}
	if err := checker(ctx); err != nil {
		*healthy = false
		return err.Error()
	}
	return "ok"
}
