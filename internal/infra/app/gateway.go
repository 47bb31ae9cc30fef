package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/gateway"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/config"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/logger"
	redisinfra "github.com/pollak-belso-projektek/indicator-backend/internal/infra/redis"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/security"
	redisrepo "github.com/pollak-belso-projektek/indicator-backend/internal/repository/redis"
	"github.com/pollak-belso-projektek/indicator-backend/internal/transport/http/middleware"
	"github.com/pollak-belso-projektek/indicator-backend/internal/transport/http/routes"
)

// GatewayApplication is the entry point process: health-checked reverse
// proxies plus the rate limit and API key gates.
type GatewayApplication struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	redis    *redisinfra.Client
	registry *gateway.Registry
}

// NewGateway wires the gateway process.
func NewGateway(ctx context.Context, cfg *config.AppConfig) (*GatewayApplication, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	registry := gateway.NewRegistry(
		[]gateway.ServiceDescriptor{
			{
				Name:       gateway.LoginServiceName,
				BaseURL:    cfg.Gateway.LoginServiceURL,
				HealthPath: "/health/basic",
			},
			{
				Name:       gateway.IndicatorServiceName,
				BaseURL:    cfg.Gateway.MainServiceURL,
				HealthPath: "/health",
			},
		},
		cfg.Gateway.HealthCheckInterval,
		cfg.Gateway.HealthCheckTimeout,
		log,
	)

	proxy, err := gateway.NewProxy(registry, log)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init proxy: %w", err)
	}

	verifier, err := security.NewAccessVerifier(cfg.JWT.Secret)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init access verifier: %w", err)
	}

	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), cfg.Redis.RateLimitPrefix)
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	engine := routes.RegisterGateway(routes.GatewayDependencies{
		Config:      cfg,
		Logger:      log,
		Registry:    registry,
		Proxy:       proxy,
		RateLimiter: rateLimiter,
		Verifier:    verifier,
	})

	return &GatewayApplication{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		redis:    redisClient,
		registry: registry,
	}, nil
}

// Run starts the health check loop and serves HTTP until the context is
// cancelled.
func (a *GatewayApplication) Run(ctx context.Context) error {
	defer func() { _ = a.logger.Sync() }()
	defer func() { _ = a.redis.Close() }()

	go a.registry.Run(ctx)

	addr := fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port)
	return serveHTTP(ctx, a.engine, addr, "gateway", a.logger)
}
