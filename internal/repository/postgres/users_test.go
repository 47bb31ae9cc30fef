package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"go.uber.org/zap/zaptest"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/database"
	"github.com/pollak-belso-projektek/indicator-backend/internal/repository"
)

func newUserRepo(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pool mock: %v", err)
	}
	t.Cleanup(mock.Close)

	retryer := database.NewRetryer(database.RetryConfig{MaxRetries: 1}, zaptest.NewLogger(t)).
		WithSleep(func(context.Context, time.Duration) error { return nil })

	return NewUserRepository(mock, retryer), mock
}

func userRows(schoolID *int64, schoolName, schoolOM *string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "email", "name", "password", "permissions", "is_active",
		"alapadatok_id", "created_at", "updated_at", "a_id", "a_name", "a_om",
	}).AddRow(
		int64(7), "tanar@pollak.info", "Kiss Margit", "argon2-hash", 0b00101, true,
		schoolID, now, now, schoolID, schoolName, schoolOM,
	)
}

func strPtr(s string) *string { return &s }

func int64Ptr(i int64) *int64 { return &i }

func TestUserGetByEmail(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectQuery("SELECT .+ FROM users u LEFT JOIN alapadatok a").
		WithArgs("tanar@pollak.info").
		WillReturnRows(userRows(int64Ptr(3), strPtr("Pollák Antal Technikum"), strPtr("203039")))

	mock.ExpectQuery("SELECT .+ FROM table_access ta JOIN table_list t").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{
			"user_id", "access", "id", "name", "alias", "is_available", "is_locked",
		}).AddRow(int64(7), 0b0101, int64(1), "kompetencia", "Kompetenciamérés", true, false))

	user, err := repo.GetByEmail(context.Background(), "tanar@pollak.info")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}

	if user.ID != 7 || user.Email != "tanar@pollak.info" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.School == nil || user.School.Name != "Pollák Antal Technikum" || user.School.OM != "203039" {
		t.Fatalf("expected the school snapshot, got %+v", user.School)
	}
	if len(user.TableAccess) != 1 || user.TableAccess[0].Table.Name != "kompetencia" {
		t.Fatalf("expected the loaded grants, got %+v", user.TableAccess)
	}
	access := user.TableAccess[0].AccessDetails()
	if !access.CanRead || !access.CanUpdate || access.CanCreate || access.CanDelete {
		t.Fatalf("unexpected access decode: %+v", access)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserGetByEmailWithoutSchool(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectQuery("SELECT .+ FROM users u LEFT JOIN alapadatok a").
		WithArgs("iskolatlan@pollak.info").
		WillReturnRows(userRows(nil, nil, nil))

	mock.ExpectQuery("SELECT .+ FROM table_access ta JOIN table_list t").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{
			"user_id", "access", "id", "name", "alias", "is_available", "is_locked",
		}))

	user, err := repo.GetByEmail(context.Background(), "iskolatlan@pollak.info")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if user.School != nil {
		t.Fatalf("expected no school snapshot, got %+v", user.School)
	}
	if len(user.TableAccess) != 0 {
		t.Fatalf("expected no grants, got %+v", user.TableAccess)
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectQuery("SELECT .+ FROM users u LEFT JOIN alapadatok a").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserCreate(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("uj@pollak.info", "Új Felhasználó", "argon2-hash", 0b00001, true, (*int64)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := repo.Create(context.Background(), domain.User{
		Email:        "uj@pollak.info",
		Name:         "Új Felhasználó",
		PasswordHash: "argon2-hash",
		Permissions:  domain.PermissionBitStandard,
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected id 42, got %d", id)
	}
}

func TestUserSetActive(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectExec("UPDATE users SET").
		WithArgs(false, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.SetActive(context.Background(), 7, false); err != nil {
		t.Fatalf("SetActive returned error: %v", err)
	}

	mock.ExpectExec("UPDATE users SET").
		WithArgs(true, int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.SetActive(context.Background(), 99, true); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing row, got %v", err)
	}
}

func TestUserReplaceGrants(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM table_access").
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO table_access").
		WithArgs(int64(7), int64(1), 0b0001).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO table_access").
		WithArgs(int64(7), int64(2), 0b1111).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := repo.ReplaceGrants(context.Background(), 7, []domain.TableGrant{
		{Table: domain.TableDescriptor{ID: 1}, Access: 0b0001},
		{Table: domain.TableDescriptor{ID: 2}, Access: 0b1111},
	})
	if err != nil {
		t.Fatalf("ReplaceGrants returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
