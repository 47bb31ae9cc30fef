package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/config"
	kafkainfra "github.com/pollak-belso-projektek/indicator-backend/internal/infra/kafka"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/logger"
	redisinfra "github.com/pollak-belso-projektek/indicator-backend/internal/infra/redis"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/security"
	postgresrepo "github.com/pollak-belso-projektek/indicator-backend/internal/repository/postgres"
	redisrepo "github.com/pollak-belso-projektek/indicator-backend/internal/repository/redis"
	"github.com/pollak-belso-projektek/indicator-backend/internal/transport/http/routes"
	"github.com/pollak-belso-projektek/indicator-backend/internal/usecase"
)

// IndicatorApplication is the data service process: table registry and
// generic record access behind per-table grants.
type IndicatorApplication struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

// NewIndicator wires the data service.
func NewIndicator(ctx context.Context, cfg *config.AppConfig) (*IndicatorApplication, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, retryer, degraded, err := initDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	verifier, err := security.NewAccessVerifier(cfg.JWT.Secret)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init access verifier: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool, retryer)
	tokenCache := redisrepo.NewTokenCacheRepository(redisClient.Client(), cfg.Redis.TokenCachePrefix)

	publisher, producer := newEventPublisher(cfg, log)

	// refresh and impersonation lookups are delegated to the login service;
	// this process never holds the refresh secret or password hashes
	authService := usecase.NewRemoteAuthService(cfg, cfg.Gateway.LoginServiceURL, verifier, tokenCache, publisher, log)
	tableService := usecase.NewTableService(repos.Tables)
	recordService := usecase.NewRecordService(repos.Tables, repos.Records)

	engine := routes.RegisterIndicator(routes.IndicatorDependencies{
		Config:   cfg,
		Logger:   log,
		Auth:     authService,
		Tables:   tableService,
		Records:  recordService,
		Database: pool,
		Cache:    redisClient,
		Degraded: degraded,
	})

	return &IndicatorApplication{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
	}, nil
}

// Run serves HTTP until the context is cancelled.
func (a *IndicatorApplication) Run(ctx context.Context) error {
	defer func() { _ = a.logger.Sync() }()
	defer a.pool.Close()
	defer func() { _ = a.redis.Close() }()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	addr := fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port)
	return serveHTTP(ctx, a.engine, addr, "indicator", a.logger)
}
