package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/gateway"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/config"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/security"
	"github.com/pollak-belso-projektek/indicator-backend/internal/transport/http/middleware"
)

// GatewayDependencies collects everything the gateway routes need.
type GatewayDependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Registry    *gateway.Registry
	Proxy       *gateway.Proxy
	RateLimiter *middleware.RateLimiter
	Verifier    *security.AccessVerifier
}

// gatewayPublicPaths skip the gateway's token check; these are the endpoints
// a client reaches before it holds a token.
var gatewayPublicPaths = []string{
	"/api/login",
	"/api/refresh",
}

// RegisterGateway wires the gateway engine: health aggregation, the three
// rate-limit tiers, the API key gate, the stateless token check and the
// reverse proxies. Requests to /api/login and /api/refresh go to the login
// service; every other /api path goes to the data service.
func RegisterGateway(deps GatewayDependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger(deps.Logger))
	engine.Use(middleware.CORS(deps.Config.CORS.Origins))

	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Subsystem: "gateway"}); err == nil {
		engine.Use(metrics.Handler())
	} else {
		deps.Logger.Warn("metrics middleware disabled", zap.Error(err))
	}

	health := gateway.NewHealthHandler(deps.Registry)
	engine.GET("/health/basic", health.Basic)
	engine.GET("/health", health.Full)
	engine.GET("/health/services", health.Services)
	engine.POST("/health/services/:name/check", health.Check)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := deps.Config.RateLimit
	engine.Use(deps.RateLimiter.Limit(
		middleware.RateLimitRule{
			Name:   "general",
			Limit:  rl.GeneralMax,
			Window: rl.Window,
		},
		// refresh is exempt from the tight tier so expired sessions can
		// always rotate
		middleware.RateLimitRule{
			Name:    "auth",
			Limit:   rl.AuthMax,
			Window:  rl.Window,
			Applies: middleware.PathIn("/api/login"),
		},
		middleware.RateLimitRule{
			Name:    "read-only",
			Limit:   rl.ReadOnlyMax,
			Window:  rl.Window,
			Applies: middleware.GETOnly(),
		},
	))

	engine.Use(middleware.APIKey(deps.Config.Gateway.APIKeys, func(c *gin.Context) bool {
		path := c.Request.URL.Path
		return path == "/api/login" || path == "/api/refresh"
	}, deps.Logger))

	engine.Use(middleware.GatewayAuth(deps.Verifier, gatewayPublicPaths))

	engine.Any("/api/login", deps.Proxy.Handler(gateway.LoginServiceName))
	engine.Any("/api/refresh", deps.Proxy.Handler(gateway.LoginServiceName))
	engine.Any("/api/me", deps.Proxy.Handler(gateway.LoginServiceName))
	engine.Any("/api/users", deps.Proxy.Handler(gateway.LoginServiceName))
	engine.Any("/api/users/*path", deps.Proxy.Handler(gateway.LoginServiceName))

	engine.NoRoute(deps.Proxy.Handler(gateway.IndicatorServiceName))

	return engine
}
