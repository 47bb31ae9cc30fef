package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/database"
	"github.com/pollak-belso-projektek/indicator-backend/internal/repository"
)

// TableRepository implements port.TableRepository over the table_list
// registry.
type TableRepository struct {
	db      Querier
	retryer *database.Retryer
	builder squirrel.StatementBuilderType
}

func NewTableRepository(db Querier, retryer *database.Retryer) *TableRepository {
	return &TableRepository{
		db:      db,
		retryer: retryer,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

const tableColumns = "id, name, alias, is_available, is_locked"

// List returns every registered table descriptor.
func (r *TableRepository) List(ctx context.Context) ([]domain.TableDescriptor, error) {
	query, args, err := r.builder.
		Select(tableColumns).
		From("table_list").
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build table list query: %w", err)
	}

	return database.Retry(ctx, r.retryer, "list tables", func(ctx context.Context) ([]domain.TableDescriptor, error) {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query tables: %w", err)
		}
		defer rows.Close()

		var descriptors []domain.TableDescriptor
		for rows.Next() {
			var desc domain.TableDescriptor
			if err := rows.Scan(&desc.ID, &desc.Name, &desc.Alias, &desc.IsAvailable, &desc.IsLocked); err != nil {
				return nil, fmt.Errorf("scan table: %w", err)
			}
			descriptors = append(descriptors, desc)
		}
		return descriptors, rows.Err()
	})
}

// GetByName resolves a descriptor by its physical table name.
func (r *TableRepository) GetByName(ctx context.Context, name string) (*domain.TableDescriptor, error) {
	query, args, err := r.builder.
		Select(tableColumns).
		From("table_list").
		Where(squirrel.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build table query: %w", err)
	}

	return database.Retry(ctx, r.retryer, "get table by name", func(ctx context.Context) (*domain.TableDescriptor, error) {
		var desc domain.TableDescriptor
		err := r.db.QueryRow(ctx, query, args...).Scan(&desc.ID, &desc.Name, &desc.Alias, &desc.IsAvailable, &desc.IsLocked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, repository.ErrNotFound
			}
			return nil, fmt.Errorf("scan table: %w", err)
		}
		return &desc, nil
	})
}

// Create registers a new table descriptor.
func (r *TableRepository) Create(ctx context.Context, desc domain.TableDescriptor) (int64, error) {
	query, args, err := r.builder.
		Insert("table_list").
		Columns("name", "alias", "is_available", "is_locked").
		Values(desc.Name, desc.Alias, desc.IsAvailable, desc.IsLocked).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build table insert: %w", err)
	}

	return database.Retry(ctx, r.retryer, "create table entry", func(ctx context.Context) (int64, error) {
		var id int64
		if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("insert table entry: %w", err)
		}
		return id, nil
	})
}

// Update rewrites an existing descriptor.
func (r *TableRepository) Update(ctx context.Context, desc domain.TableDescriptor) error {
	query, args, err := r.builder.
		Update("table_list").
		Set("alias", desc.Alias).
		Set("is_available", desc.IsAvailable).
		Set("is_locked", desc.IsLocked).
		Where(squirrel.Eq{"id": desc.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build table update: %w", err)
	}

	return r.retryer.Do(ctx, "update table entry", func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update table entry: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}
