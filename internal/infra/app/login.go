package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/port"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/config"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/database"
	kafkainfra "github.com/pollak-belso-projektek/indicator-backend/internal/infra/kafka"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/logger"
	redisinfra "github.com/pollak-belso-projektek/indicator-backend/internal/infra/redis"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/security"
	postgresrepo "github.com/pollak-belso-projektek/indicator-backend/internal/repository/postgres"
	redisrepo "github.com/pollak-belso-projektek/indicator-backend/internal/repository/redis"
	"github.com/pollak-belso-projektek/indicator-backend/internal/transport/http/routes"
	"github.com/pollak-belso-projektek/indicator-backend/internal/usecase"
)

// LoginApplication is the login service process: credential checks, token
// issuance and account administration.
type LoginApplication struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

// NewLogin wires the login service.
func NewLogin(ctx context.Context, cfg *config.AppConfig) (*LoginApplication, error) {
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

	tokenService, err := security.NewTokenService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
	)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token service: %w", err)
	}

	hasher, err := security.NewPasswordHasher(cfg.Argon2)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool, retryer)
	tokenCache := redisrepo.NewTokenCacheRepository(redisClient.Client(), cfg.Redis.TokenCachePrefix)

	publisher, producer := newEventPublisher(cfg, log)

	authService := usecase.NewAuthService(cfg, repos.Users, tokenCache, tokenService, hasher, publisher, log)
	userService := usecase.NewUserService(repos.Users, repos.Tables, hasher, publisher, log)

	engine := routes.RegisterLogin(routes.LoginDependencies{
		Config:   cfg,
		Logger:   log,
		Auth:     authService,
		Users:    userService,
		Database: pool,
		Cache:    redisClient,
		Degraded: degraded,
	})

	return &LoginApplication{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
	}, nil
}

// Run serves HTTP until the context is cancelled.
func (a *LoginApplication) Run(ctx context.Context) error {
	defer func() { _ = a.logger.Sync() }()
	defer a.pool.Close()
	defer func() { _ = a.redis.Close() }()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	addr := fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port)
	return serveHTTP(ctx, a.engine, addr, "login", a.logger)
}

// initDatabase builds the pool and retryer and runs the startup probe.
// The returned func reports whether the process is still degraded; it flips
// back to false once a later probe succeeds.
func initDatabase(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*pgxpool.Pool, *database.Retryer, func() bool, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init postgres: %w", err)
	}

	retryer := database.NewRetryer(database.RetryConfig{
		MaxRetries:   cfg.Postgres.RetryMaxAttempts,
		InitialDelay: cfg.Postgres.RetryInitialDelay,
		MaxDelay:     cfg.Postgres.RetryMaxDelay,
		Multiplier:   cfg.Postgres.RetryBackoffMultipler,
	}, log)

	result, err := database.Initialize(ctx, pool, retryer, cfg.Postgres.ConnectTimeout, cfg.Postgres.AllowDegradedStart, log)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	var degraded atomic.Bool
	degraded.Store(result.Degraded)

	degradedFn := func() bool {
		if !degraded.Load() {
			return false
		}
		if pingErr := pool.Ping(context.Background()); pingErr == nil {
			degraded.Store(false)
			log.Info("database connection recovered")
			return false
		}
		return true
	}

	return pool, retryer, degradedFn, nil
}

// newEventPublisher returns the Kafka publisher when brokers are configured,
// otherwise the logging stub. The producer is nil in stub mode.
func newEventPublisher(cfg *config.AppConfig, log *zap.Logger) (port.EventPublisher, *kafkainfra.Producer) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(log), nil
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log), nil
	}

	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, log), producer
}
