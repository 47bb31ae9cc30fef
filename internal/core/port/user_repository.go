package port

import (
	"context"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
)

// UserRepository is the identity store owned by the login service. Lookups
// load the user together with grants and the school snapshot.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Create(ctx context.Context, user domain.User) (int64, error)
	Update(ctx context.Context, user domain.User) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	ReplaceGrants(ctx context.Context, userID int64, grants []domain.TableGrant) error
}
