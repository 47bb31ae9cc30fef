package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

func TestProxyForwardsToHealthyService(t *testing.T) {
	var gotPath, gotForwardedHost string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		gotPath = r.URL.Path
		gotForwardedHost = r.Header.Get("X-Forwarded-Host")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()

	registry := NewRegistry([]ServiceDescriptor{
		{Name: LoginServiceName, BaseURL: backend.URL, HealthPath: "/health"},
	}, time.Minute, time.Second, zaptest.NewLogger(t))
	registry.CheckAll(context.Background())

	proxy, err := NewProxy(registry, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewProxy returned error: %v", err)
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Any("/api/login", proxy.Handler(LoginServiceName))

	// ReverseProxy needs a writer with the full http.ResponseWriter surface,
	// so the engine is exercised over a real listener.
	gateway := httptest.NewServer(engine)
	defer gateway.Close()

	req, err := http.NewRequest(http.MethodPost, gateway.URL+"/api/login", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Host = "gateway.pollak.info"

	resp, err := gateway.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected the backend response, got %d", resp.StatusCode)
	}
	if gotPath != "/api/login" {
		t.Fatalf("expected the path to be forwarded unchanged, got %q", gotPath)
	}
	if gotForwardedHost != "gateway.pollak.info" {
		t.Fatalf("expected X-Forwarded-Host to carry the gateway host, got %q", gotForwardedHost)
	}
}

func TestProxyFailsFastOnUnhealthyService(t *testing.T) {
	var backendHits int
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		backendHits++
	}))
	defer backend.Close()

	registry := NewRegistry([]ServiceDescriptor{
		{Name: IndicatorServiceName, BaseURL: backend.URL, HealthPath: "/health"},
	}, time.Minute, time.Second, zaptest.NewLogger(t))
	registry.CheckAll(context.Background())

	proxy, err := NewProxy(registry, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewProxy returned error: %v", err)
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.NoRoute(proxy.Handler(IndicatorServiceName))

	req := httptest.NewRequest(http.MethodGet, "/api/kompetencia", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if backendHits != 0 {
		t.Fatalf("a fenced-off service must not be contacted, got %d hits", backendHits)
	}

	var body unavailableResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode 503 body: %v", err)
	}
	if body.Error != "Service Unavailable" {
		t.Fatalf("unexpected error field %q", body.Error)
	}
	if body.Message != "The requested service is temporarily unavailable, please try again later" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if body.Service != IndicatorServiceName {
		t.Fatalf("expected the service name in the envelope, got %q", body.Service)
	}
	if body.Timestamp == "" {
		t.Fatalf("expected a timestamp in the envelope")
	}
}

func TestProxyUnknownService(t *testing.T) {
	registry := NewRegistry(nil, time.Minute, time.Second, zaptest.NewLogger(t))
	proxy, err := NewProxy(registry, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewProxy returned error: %v", err)
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.NoRoute(proxy.Handler("nonexistent"))

	req := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unregistered service, got %d", rec.Code)
	}
}

func TestProxyUnreachableBackendReturnsEnvelope(t *testing.T) {
	// healthy per the registry (no check run yet) but nothing listens there
	registry := NewRegistry([]ServiceDescriptor{
		{Name: LoginServiceName, BaseURL: "http://127.0.0.1:1", HealthPath: "/health"},
	}, time.Minute, time.Second, zaptest.NewLogger(t))

	proxy, err := NewProxy(registry, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewProxy returned error: %v", err)
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.NoRoute(proxy.Handler(LoginServiceName))

	gateway := httptest.NewServer(engine)
	defer gateway.Close()

	resp, err := gateway.Client().Get(gateway.URL + "/api/login")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from the error handler, got %d", resp.StatusCode)
	}

	var body unavailableResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode 503 body: %v", err)
	}
	if body.Service != LoginServiceName {
		t.Fatalf("expected the service name in the envelope, got %q", body.Service)
	}
}
