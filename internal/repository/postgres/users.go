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

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	db      Querier
	retryer *database.Retryer
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(db Querier, retryer *database.Retryer) *UserRepository {
	return &UserRepository{
		db:      db,
		retryer: retryer,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

const userColumns = "u.id, u.email, u.name, u.password, u.permissions, u.is_active, u.alapadatok_id, u.created_at, u.updated_at, a.id, a.name, a.om"

// GetByEmail loads a user with grants and school snapshot by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "get user by email", squirrel.Eq{"u.email": email})
}

// GetByID loads a user with grants and school snapshot by id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, "get user by id", squirrel.Eq{"u.id": id})
}

func (r *UserRepository) getOne(ctx context.Context, operation string, pred any) (*domain.User, error) {
	query, args, err := r.builder.
		Select(userColumns).
		From("users u").
		LeftJoin("alapadatok a ON a.id = u.alapadatok_id").
		Where(pred).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user query: %w", err)
	}

	return database.Retry(ctx, r.retryer, operation, func(ctx context.Context) (*domain.User, error) {
		row := r.db.QueryRow(ctx, query, args...)
		user, err := scanUser(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, repository.ErrNotFound
			}
			return nil, fmt.Errorf("scan user: %w", err)
		}

		grants, err := r.loadGrants(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		user.TableAccess = grants
		return user, nil
	})
}

// List returns all users without grant expansion.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	query, args, err := r.builder.
		Select(userColumns).
		From("users u").
		LeftJoin("alapadatok a ON a.id = u.alapadatok_id").
		OrderBy("u.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user list query: %w", err)
	}

	return database.Retry(ctx, r.retryer, "list users", func(ctx context.Context) ([]domain.User, error) {
		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query users: %w", err)
		}
		defer rows.Close()

		var users []domain.User
		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return nil, fmt.Errorf("scan user: %w", err)
			}
			users = append(users, *user)
		}
		return users, rows.Err()
	})
}

// Create inserts a new user row and returns its id.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (int64, error) {
	query, args, err := r.builder.
		Insert("users").
		Columns("email", "name", "password", "permissions", "is_active", "alapadatok_id").
		Values(user.Email, user.Name, user.PasswordHash, user.Permissions, user.IsActive, user.SchoolID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build user insert: %w", err)
	}

	return database.Retry(ctx, r.retryer, "create user", func(ctx context.Context) (int64, error) {
		var id int64
		if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("insert user: %w", err)
		}
		return id, nil
	})
}

// Update rewrites the mutable user fields.
func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	query, args, err := r.builder.
		Update("users").
		Set("email", user.Email).
		Set("name", user.Name).
		Set("permissions", user.Permissions).
		Set("alapadatok_id", user.SchoolID).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": user.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build user update: %w", err)
	}

	return r.execExpectingRow(ctx, "update user", query, args)
}

// SetActive flips the account's active flag.
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query, args, err := r.builder.
		Update("users").
		Set("is_active", active).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build user activate: %w", err)
	}

	return r.execExpectingRow(ctx, "set user active", query, args)
}

// SetPasswordHash replaces the stored password hash.
func (r *UserRepository) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	query, args, err := r.builder.
		Update("users").
		Set("password", hash).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build password update: %w", err)
	}

	return r.execExpectingRow(ctx, "set password hash", query, args)
}

// ReplaceGrants atomically swaps the user's table grants.
func (r *UserRepository) ReplaceGrants(ctx context.Context, userID int64, grants []domain.TableGrant) error {
	return r.retryer.Do(ctx, "replace grants", func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin grants tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		deleteSQL, deleteArgs, err := r.builder.
			Delete("table_access").
			Where(squirrel.Eq{"user_id": userID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build grants delete: %w", err)
		}
		if _, err := tx.Exec(ctx, deleteSQL, deleteArgs...); err != nil {
			return fmt.Errorf("delete grants: %w", err)
		}

		for _, grant := range grants {
			insertSQL, insertArgs, err := r.builder.
				Insert("table_access").
				Columns("user_id", "table_id", "access").
				Values(userID, grant.Table.ID, grant.Access).
				ToSql()
			if err != nil {
				return fmt.Errorf("build grant insert: %w", err)
			}
			if _, err := tx.Exec(ctx, insertSQL, insertArgs...); err != nil {
				return fmt.Errorf("insert grant: %w", err)
			}
		}

		return tx.Commit(ctx)
	})
}

func (r *UserRepository) loadGrants(ctx context.Context, userID int64) ([]domain.TableGrant, error) {
	query, args, err := r.builder.
		Select("ta.user_id", "ta.access", "t.id", "t.name", "t.alias", "t.is_available", "t.is_locked").
		From("table_access ta").
		Join("table_list t ON t.id = ta.table_id").
		Where(squirrel.Eq{"ta.user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build grants query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.TableGrant
	for rows.Next() {
		var g domain.TableGrant
		if err := rows.Scan(&g.UserID, &g.Access, &g.Table.ID, &g.Table.Name, &g.Table.Alias, &g.Table.IsAvailable, &g.Table.IsLocked); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *UserRepository) execExpectingRow(ctx context.Context, operation, query string, args []any) error {
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

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var schoolID *int64
	var schoolName, schoolOM *string

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Permissions,
		&user.IsActive,
		&user.SchoolID,
		&user.CreatedAt,
		&user.UpdatedAt,
		&schoolID,
		&schoolName,
		&schoolOM,
	); err != nil {
		return nil, err
	}

	if schoolID != nil {
		user.School = &domain.School{ID: *schoolID, Name: derefString(schoolName)}
		if schoolOM != nil {
			user.School.OM = *schoolOM
		}
	}

	return &user, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
