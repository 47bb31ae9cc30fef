package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/config"
)

// NewPostgresPool builds the pgx connection pool from configuration. It does
// not probe connectivity; Initialize owns that so degraded start stays
// possible.
func NewPostgresPool(ctx context.Context, cfg config.PostgresSettings, log *zap.Logger) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx pool config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	log.Info("postgres pool configured",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)

	return pool, nil
}

// InitResult reports the outcome of the startup connectivity probe.
type InitResult struct {
	Degraded bool
	Err      error
}

// Pinger is the connectivity surface Initialize needs from the pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Initialize probes database connectivity through the retry wrapper. When the
// probe exhausts its retries and degraded start is enabled, the process keeps
// serving: every subsequent query goes through the same wrapper, so a
// transient outage self-heals without a restart.
func Initialize(ctx context.Context, pinger Pinger, retryer *Retryer, connectTimeout time.Duration, allowDegradedStart bool, log *zap.Logger) (InitResult, error) {
	probe := func(ctx context.Context) error {
		probeCtx := ctx
		if connectTimeout > 0 {
			var cancel context.CancelFunc
			probeCtx, cancel = context.WithTimeout(ctx, connectTimeout)
			defer cancel()
		}
		return pinger.Ping(probeCtx)
	}

	if err := retryer.Do(ctx, "initialize database", probe); err != nil {
		if allowDegradedStart {
			log.Warn("starting in degraded mode, database unreachable; queries will retry until the connection recovers",
				zap.Error(err),
			)
			return InitResult{Degraded: true, Err: err}, nil
		}
		return InitResult{}, fmt.Errorf("initialize database: %w", err)
	}

	log.Info("database connection established")
	return InitResult{}, nil
}
