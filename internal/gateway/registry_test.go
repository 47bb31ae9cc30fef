package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newBackend(t *testing.T, healthy *atomic.Bool) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRegistryUnknownCountsHealthy(t *testing.T) {
	registry := NewRegistry([]ServiceDescriptor{
		{Name: LoginServiceName, BaseURL: "http://127.0.0.1:1", HealthPath: "/health"},
	}, time.Minute, time.Second, zaptest.NewLogger(t))

	if !registry.IsHealthy(LoginServiceName) {
		t.Fatalf("a service with no completed check yet must receive traffic")
	}
	if registry.IsHealthy("nonexistent") {
		t.Fatalf("an unregistered service is never healthy")
	}

	state, ok := registry.State(LoginServiceName)
	if !ok || state.Status != StatusUnknown {
		t.Fatalf("expected unknown status before the first check, got %+v", state)
	}
}

func TestRegistryStatusTransitions(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	backend := newBackend(t, &healthy)

	registry := NewRegistry([]ServiceDescriptor{
		{Name: IndicatorServiceName, BaseURL: backend.URL, HealthPath: "/health"},
	}, time.Minute, time.Second, zaptest.NewLogger(t))

	ctx := context.Background()
	registry.CheckAll(ctx)

	state, _ := registry.State(IndicatorServiceName)
	if state.Status != StatusHealthy {
		t.Fatalf("expected healthy after a passing check, got %q", state.Status)
	}
	if state.LastCheck.IsZero() {
		t.Fatalf("expected the check timestamp to be recorded")
	}
	if state.LastBody != `{"status":"ok"}` {
		t.Fatalf("expected the probe body snapshot, got %q", state.LastBody)
	}
	if !registry.IsHealthy(IndicatorServiceName) {
		t.Fatalf("healthy service must receive traffic")
	}

	healthy.Store(false)
	registry.CheckAll(ctx)

	state, _ = registry.State(IndicatorServiceName)
	if state.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy after a failing check, got %q", state.Status)
	}
	if state.LastError == "" {
		t.Fatalf("expected the failure reason to be recorded")
	}
	if registry.IsHealthy(IndicatorServiceName) {
		t.Fatalf("unhealthy service must be fenced off")
	}

	healthy.Store(true)
	registry.CheckAll(ctx)

	if state, _ = registry.State(IndicatorServiceName); state.Status != StatusHealthy {
		t.Fatalf("expected recovery back to healthy, got %q", state.Status)
	}
	if state.LastError != "" {
		t.Fatalf("recovery must clear the recorded error, got %q", state.LastError)
	}
}

func TestRegistryUnreachableBackend(t *testing.T) {
	registry := NewRegistry([]ServiceDescriptor{
		{Name: LoginServiceName, BaseURL: "http://127.0.0.1:1", HealthPath: "/health"},
	}, time.Minute, time.Second, zaptest.NewLogger(t))

	registry.CheckAll(context.Background())

	if registry.IsHealthy(LoginServiceName) {
		t.Fatalf("unreachable backend must be fenced off")
	}
}

func TestRegistryForceCheck(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	backend := newBackend(t, &healthy)

	registry := NewRegistry([]ServiceDescriptor{
		{Name: LoginServiceName, BaseURL: backend.URL, HealthPath: "/health"},
	}, time.Minute, time.Second, zaptest.NewLogger(t))

	state, ok := registry.ForceCheck(context.Background(), LoginServiceName)
	if !ok {
		t.Fatalf("ForceCheck should find the registered service")
	}
	if state.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %q", state.Status)
	}

	if _, ok := registry.ForceCheck(context.Background(), "nonexistent"); ok {
		t.Fatalf("ForceCheck must reject unknown services")
	}
}

func TestRegistrySnapshot(t *testing.T) {
	registry := NewRegistry([]ServiceDescriptor{
		{Name: LoginServiceName, BaseURL: "http://login.internal", HealthPath: "/health/basic"},
		{Name: IndicatorServiceName, BaseURL: "http://indicator.internal", HealthPath: "/health"},
	}, time.Minute, time.Second, zaptest.NewLogger(t))

	states := registry.Snapshot()
	if len(states) != 2 {
		t.Fatalf("expected two services, got %d", len(states))
	}
	for _, state := range states {
		if state.Status != StatusUnknown {
			t.Fatalf("expected unknown before any check, got %q for %s", state.Status, state.Name)
		}
	}

	url, ok := registry.BaseURL(LoginServiceName)
	if !ok || url != "http://login.internal" {
		t.Fatalf("unexpected base url %q", url)
	}
}
