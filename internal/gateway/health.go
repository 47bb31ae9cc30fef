package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler exposes the gateway's own health plus the aggregate view of
// the services behind it.
type HealthHandler struct {
	registry  *Registry
	startedAt time.Time
}

// NewHealthHandler builds a gateway health handler.
func NewHealthHandler(registry *Registry) *HealthHandler {
	return &HealthHandler{registry: registry, startedAt: time.Now().UTC()}
}

// Basic reports the gateway process itself. The gateway is alive even when
// every backing service is down.
func (h *HealthHandler) Basic(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "gateway",
		"uptime":  time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}

// Full folds the registry's current view into the gateway health: 503 as
// soon as any backing service is fenced off.
func (h *HealthHandler) Full(c *gin.Context) {
	states := h.registry.Snapshot()

	// unknown still counts as healthy, mirroring the breaker predicate
	status := http.StatusOK
	healthy := 0
	for _, state := range states {
		if state.Status != StatusUnhealthy {
			healthy++
			continue
		}
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   aggregateStatus(healthy, len(states)),
		"service":  "gateway",
		"uptime":   time.Since(h.startedAt).Truncate(time.Second).String(),
		"services": states,
	})
}

// Services re-probes every backing service and returns the aggregate. The
// response is 200 even with unhealthy members; per-service status carries
// the detail.
func (h *HealthHandler) Services(c *gin.Context) {
	h.registry.CheckAll(c.Request.Context())

	states := h.registry.Snapshot()
	healthy := 0
	for _, state := range states {
		if state.Status == StatusHealthy {
			healthy++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   aggregateStatus(healthy, len(states)),
		"services": states,
	})
}

// Check re-probes one named service on demand and returns its new state.
func (h *HealthHandler) Check(c *gin.Context) {
	name := c.Param("name")

	state, ok := h.registry.ForceCheck(c.Request.Context(), name)
	if !ok {
		c.JSON(http.StatusNotFound, unavailableResponse{
			Error:     "Not Found",
			Message:   "Unknown service",
			Service:   name,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, state)
}

func aggregateStatus(healthy, total int) string {
	switch {
	case total == 0 || healthy == total:
		return "ok"
	case healthy == 0:
		return "unhealthy"
	default:
		return "degraded"
	}
}
