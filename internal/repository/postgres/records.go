package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/database"
	"github.com/pollak-belso-projektek/indicator-backend/internal/repository"
)

// ErrBadIdentifier reports a table or column name that failed validation
// before being interpolated into SQL.
var ErrBadIdentifier = errors.New("invalid sql identifier")

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// RecordRepository implements port.RecordRepository. Table and column names
// come from the table registry and payload keys, so every identifier is
// validated before it reaches a statement.
type RecordRepository struct {
	db      Querier
	retryer *database.Retryer
	builder squirrel.StatementBuilderType
}

func NewRecordRepository(db Querier, retryer *database.Retryer) *RecordRepository {
	return &RecordRepository{
		db:      db,
		retryer: retryer,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ListRows returns every row of the named table as generic maps.
func (r *RecordRepository) ListRows(ctx context.Context, table string) ([]map[string]any, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}

	query, args, err := r.builder.
		Select("*").
		From(table).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build rows query: %w", err)
	}

	return database.Retry(ctx, r.retryer, "list rows", func(ctx context.Context) ([]map[string]any, error) {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query rows: %w", err)
		}
		defer rows.Close()

		var out []map[string]any
		for rows.Next() {
			record, err := scanRecord(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, record)
		}
		return out, rows.Err()
	})
}

// GetRow loads a single row by primary key.
func (r *RecordRepository) GetRow(ctx context.Context, table string, id int64) (map[string]any, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}

	query, args, err := r.builder.
		Select("*").
		From(table).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build row query: %w", err)
	}

	return database.Retry(ctx, r.retryer, "get row", func(ctx context.Context) (map[string]any, error) {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query row: %w", err)
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, repository.ErrNotFound
		}
		return scanRecord(rows)
	})
}

// InsertRow creates a row from the provided column values and returns the new
// id. Column order is fixed for deterministic statements.
func (r *RecordRepository) InsertRow(ctx context.Context, table string, values map[string]any) (int64, error) {
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}
	columns, ordered, err := orderedValues(values)
	if err != nil {
		return 0, err
	}

	query, args, err := r.builder.
		Insert(table).
		Columns(columns...).
		Values(ordered...).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build row insert: %w", err)
	}

	return database.Retry(ctx, r.retryer, "insert row", func(ctx context.Context) (int64, error) {
		var id int64
		if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("insert row: %w", err)
		}
		return id, nil
	})
}

// UpdateRow rewrites the provided columns of an existing row.
func (r *RecordRepository) UpdateRow(ctx context.Context, table string, id int64, values map[string]any) error {
	if err := validateIdentifier(table); err != nil {
		return err
	}
	columns, ordered, err := orderedValues(values)
	if err != nil {
		return err
	}

	update := r.builder.Update(table)
	for i, column := range columns {
		update = update.Set(column, ordered[i])
	}
	query, args, err := update.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build row update: %w", err)
	}

	return r.execExpectingRow(ctx, "update row", query, args)
}

// DeleteRow removes a row by primary key.
func (r *RecordRepository) DeleteRow(ctx context.Context, table string, id int64) error {
	if err := validateIdentifier(table); err != nil {
		return err
	}

	query, args, err := r.builder.
		Delete(table).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build row delete: %w", err)
	}

	return r.execExpectingRow(ctx, "delete row", query, args)
}

func (r *RecordRepository) execExpectingRow(ctx context.Context, operation, query string, args []any) error {
	return r.retryer.Do(ctx, operation, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func validateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrBadIdentifier, name)
	}
	return nil
}

func orderedValues(values map[string]any) ([]string, []any, error) {
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("%w: empty value set", ErrBadIdentifier)
	}

	columns := make([]string, 0, len(values))
	for column := range values {
		if column == "id" {
			continue
		}
		if err := validateIdentifier(column); err != nil {
			return nil, nil, err
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	ordered := make([]any, len(columns))
	for i, column := range columns {
		ordered[i] = values[column]
	}
	return columns, ordered, nil
}

func scanRecord(rows pgx.Rows) (map[string]any, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("read row values: %w", err)
	}

	record := make(map[string]any, len(values))
	for i, field := range rows.FieldDescriptions() {
		record[field.Name] = values[i]
	}
	return record, nil
}
