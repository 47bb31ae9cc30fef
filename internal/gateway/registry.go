package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Names of the registered backing services.
const (
	LoginServiceName     = "login"
	IndicatorServiceName = "indicator"
)

// ServiceStatus is the registry's view of one backing service.
type ServiceStatus string

const (
	// StatusUnknown means no health check has completed yet. Unknown services
	// still receive traffic; only a failed check marks them unhealthy.
	StatusUnknown ServiceStatus = "unknown"
	// StatusHealthy means the last health check passed.
	StatusHealthy ServiceStatus = "healthy"
	// StatusUnhealthy means the last health check failed.
	StatusUnhealthy ServiceStatus = "unhealthy"
)

// ServiceDescriptor registers one backing service with the gateway.
type ServiceDescriptor struct {
	Name       string
	BaseURL    string
	HealthPath string
}

// ServiceState is a point-in-time snapshot of one registered service.
type ServiceState struct {
	Name      string        `json:"name"`
	BaseURL   string        `json:"baseUrl"`
	Status    ServiceStatus `json:"status"`
	LastCheck time.Time     `json:"lastCheck"`
	LastError string        `json:"lastError,omitempty"`
	LastBody  string        `json:"lastBody,omitempty"`
}

type serviceEntry struct {
	descriptor ServiceDescriptor
	status     ServiceStatus
	lastCheck  time.Time
	lastError  string
	lastBody   string
}

// Registry tracks the health of backing services and drives the gateway's
// fail-fast behavior. Checks run on a fixed interval with an early first
// round shortly after start so the gateway converges quickly.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*serviceEntry

	client   *http.Client
	interval time.Duration
	logger   *zap.Logger
}

// NewRegistry builds a registry over the given descriptors.
func NewRegistry(descriptors []ServiceDescriptor, interval, timeout time.Duration, logger *zap.Logger) *Registry {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	services := make(map[string]*serviceEntry, len(descriptors))
	for _, desc := range descriptors {
		services[desc.Name] = &serviceEntry{
			descriptor: desc,
			status:     StatusUnknown,
		}
	}

	return &Registry{
		services: services,
		client:   &http.Client{Timeout: timeout},
		interval: interval,
		logger:   logger,
	}
}

// Run drives periodic health checks until the context is cancelled. The
// first round runs one second after start.
func (r *Registry) Run(ctx context.Context) {
	initial := time.NewTimer(time.Second)
	defer initial.Stop()

	select {
	case <-ctx.Done():
		return
	case <-initial.C:
		r.CheckAll(ctx)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.CheckAll(ctx)
		}
	}
}

// CheckAll probes every registered service once.
func (r *Registry) CheckAll(ctx context.Context) {
	r.mu.RLock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, name := range names {
		r.check(ctx, name)
	}
}

// ForceCheck re-probes one service immediately and returns its new state.
func (r *Registry) ForceCheck(ctx context.Context, name string) (ServiceState, bool) {
	if _, ok := r.get(name); !ok {
		return ServiceState{}, false
	}
	r.check(ctx, name)
	return r.State(name)
}

// IsHealthy reports whether traffic may be forwarded to the service. Unknown
// status counts as healthy: a service is only fenced off after a check
// actually failed.
func (r *Registry) IsHealthy(name string) bool {
	entry, ok := r.get(name)
	if !ok {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return entry.status != StatusUnhealthy
}

// State returns the snapshot of one service.
func (r *Registry) State(name string) (ServiceState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.services[name]
	if !ok {
		return ServiceState{}, false
	}
	return snapshotEntry(entry), true
}

// Snapshot returns the state of every registered service.
func (r *Registry) Snapshot() []ServiceState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]ServiceState, 0, len(r.services))
	for _, entry := range r.services {
		states = append(states, snapshotEntry(entry))
	}
	return states
}

// BaseURL returns the registered base URL of a service.
func (r *Registry) BaseURL(name string) (string, bool) {
	entry, ok := r.get(name)
	if !ok {
		return "", false
	}
	return entry.descriptor.BaseURL, true
}

func (r *Registry) get(name string) (*serviceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.services[name]
	return entry, ok
}

func (r *Registry) check(ctx context.Context, name string) {
	entry, ok := r.get(name)
	if !ok {
		return
	}

	url := entry.descriptor.BaseURL + entry.descriptor.HealthPath
	body, err := r.probe(ctx, url)

	r.mu.Lock()
	was := entry.status
	entry.lastCheck = time.Now().UTC()
	if err != nil {
		entry.status = StatusUnhealthy
		entry.lastError = err.Error()
	} else {
		entry.status = StatusHealthy
		entry.lastError = ""
		entry.lastBody = body
	}
	now := entry.status
	r.mu.Unlock()

	if was != now {
		r.logger.Info("service status changed",
			zap.String("service", name),
			zap.String("from", string(was)),
			zap.String("to", string(now)),
			zap.Error(err),
		)
	}
}

// probeBodyLimit bounds the diagnostic body snapshot kept per service.
const probeBodyLimit = 512

func (r *Registry) probe(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build health request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("health check returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	if err != nil {
		return "", nil
	}
	return string(body), nil
}

func snapshotEntry(entry *serviceEntry) ServiceState {
	return ServiceState{
		Name:      entry.descriptor.Name,
		BaseURL:   entry.descriptor.BaseURL,
		Status:    entry.status,
		LastCheck: entry.lastCheck,
		LastError: entry.lastError,
		LastBody:  entry.lastBody,
	}
}
