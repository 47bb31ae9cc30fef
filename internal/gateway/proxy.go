package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// unavailableResponse is the 503 envelope returned when a backing service is
// fenced off or unreachable.
type unavailableResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// Proxy forwards requests to a backing service, failing fast when the
// registry marks it unhealthy. No connection attempt is made to a fenced-off
// service.
type Proxy struct {
	registry *Registry
	logger   *zap.Logger
	proxies  map[string]*httputil.ReverseProxy
}

// NewProxy builds reverse proxies for every registered service.
func NewProxy(registry *Registry, logger *zap.Logger) (*Proxy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Proxy{
		registry: registry,
		logger:   logger,
		proxies:  make(map[string]*httputil.ReverseProxy),
	}

	for _, state := range registry.Snapshot() {
		target, err := url.Parse(state.BaseURL)
		if err != nil {
			return nil, err
		}

		name := state.Name
		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			p.logger.Error("proxy request failed",
				zap.String("service", name),
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			writeUnavailable(w, name)
		}
		p.proxies[name] = proxy
	}

	return p, nil
}

// Handler returns a Gin handler forwarding to the named service.
func (p *Proxy) Handler(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		proxy, ok := p.proxies[service]
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, unavailableResponse{
				Error:     "Not Found",
				Message:   "Unknown service",
				Service:   service,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			return
		}

		if !p.registry.IsHealthy(service) {
			c.Abort()
			writeUnavailable(c.Writer, service)
			return
		}

		req := c.Request
		req.Header.Set("X-Forwarded-Host", req.Host)
		if req.TLS != nil {
			req.Header.Set("X-Forwarded-Proto", "https")
		} else {
			req.Header.Set("X-Forwarded-Proto", "http")
		}
		if reqID := c.Writer.Header().Get("X-Request-ID"); reqID != "" {
			req.Header.Set("X-Request-ID", reqID)
		}

		proxy.ServeHTTP(c.Writer, req)
	}
}

func writeUnavailable(w http.ResponseWriter, service string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)

	body := unavailableResponse{
		Error:     "Service Unavailable",
		Message:   "The requested service is temporarily unavailable, please try again later",
		Service:   service,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	// encoding errors are not recoverable at this point
	_ = json.NewEncoder(w).Encode(body)
}
