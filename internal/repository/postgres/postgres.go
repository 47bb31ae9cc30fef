package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/database"
)

// Querier is the subset of pgxpool.Pool the repositories depend on. pgxmock
// satisfies it in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repositories groups the PostgreSQL repository implementations. Every
// database call goes through the shared retry wrapper.
type Repositories struct {
	Users   *UserRepository
	Tables  *TableRepository
	Records *RecordRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool, retryer *database.Retryer) *Repositories {
	return &Repositories{
		Users:   NewUserRepository(pool, retryer),
		Tables:  NewTableRepository(pool, retryer),
		Records: NewRecordRepository(pool, retryer),
	}
}
