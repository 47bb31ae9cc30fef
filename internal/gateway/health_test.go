package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

func newHealthEngine(t *testing.T, registry *Registry) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	health := NewHealthHandler(registry)
	engine := gin.New()
	engine.GET("/health/basic", health.Basic)
	engine.GET("/health", health.Full)
	engine.GET("/health/services", health.Services)
	engine.POST("/health/services/:name/check", health.Check)
	return engine
}

func TestGatewayHealthBasic(t *testing.T) {
	registry := NewRegistry(nil, time.Minute, time.Second, zaptest.NewLogger(t))
	engine := newHealthEngine(t, registry)

	req := httptest.NewRequest(http.MethodGet, "/health/basic", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("the gateway itself is always alive, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "gateway" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestGatewayHealthFull(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	backend := newBackend(t, &healthy)

	registry := NewRegistry([]ServiceDescriptor{
		{Name: LoginServiceName, BaseURL: backend.URL, HealthPath: "/health"},
	}, time.Minute, time.Second, zaptest.NewLogger(t))

	engine := newHealthEngine(t, registry)

	// before the first check the service is unknown and still counts healthy
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown services must not degrade the gateway, got %d", rec.Code)
	}

	healthy.Store(false)
	registry.CheckAll(context.Background())

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("a fenced-off service must surface as 503, got %d", rec.Code)
	}
}

func TestGatewayHealthServicesAggregate(t *testing.T) {
	var loginHealthy, indicatorHealthy atomic.Bool
	loginHealthy.Store(true)
	indicatorHealthy.Store(false)

	login := newBackend(t, &loginHealthy)
	indicator := newBackend(t, &indicatorHealthy)

	registry := NewRegistry([]ServiceDescriptor{
		{Name: LoginServiceName, BaseURL: login.URL, HealthPath: "/health"},
		{Name: IndicatorServiceName, BaseURL: indicator.URL, HealthPath: "/health"},
	}, time.Minute, time.Second, zaptest.NewLogger(t))

	engine := newHealthEngine(t, registry)

	req := httptest.NewRequest(http.MethodGet, "/health/services", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("the aggregate endpoint always answers 200, got %d", rec.Code)
	}

	var body struct {
		Status   string         `json:"status"`
		Services []ServiceState `json:"services"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("one of two healthy should aggregate to degraded, got %q", body.Status)
	}
	if len(body.Services) != 2 {
		t.Fatalf("expected both services in the snapshot, got %d", len(body.Services))
	}
}

func TestGatewayHealthForcedCheck(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(false)
	backend := newBackend(t, &healthy)

	registry := NewRegistry([]ServiceDescriptor{
		{Name: LoginServiceName, BaseURL: backend.URL, HealthPath: "/health"},
	}, time.Minute, time.Second, zaptest.NewLogger(t))

	engine := newHealthEngine(t, registry)

	req := httptest.NewRequest(http.MethodPost, "/health/services/login/check", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var state ServiceState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	if state.Status != StatusUnhealthy {
		t.Fatalf("the forced check should observe the failing backend, got %q", state.Status)
	}

	// the backend recovers; a second forced check flips the status back
	healthy.Store(true)
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health/services/login/check", nil))

	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	if state.Status != StatusHealthy {
		t.Fatalf("expected recovery to be visible immediately, got %q", state.Status)
	}

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health/services/nonexistent/check", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown service, got %d", rec.Code)
	}
}
