package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/core/port"
	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/security"
	"github.com/pollak-belso-projektek/indicator-backend/internal/repository"
)

var (
	// ErrEmailTaken indicates the email already belongs to another account.
	ErrEmailTaken = errors.New("email already in use")
	// ErrWeakPassword indicates the password failed policy validation.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrUnknownTable indicates a grant references an unregistered table.
	ErrUnknownTable = errors.New("unknown table")
)

// UserService manages the identity store: accounts, grants and passwords.
type UserService struct {
	users  port.UserRepository
	tables port.TableRepository
	hasher *security.PasswordHasher
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(
	users port.UserRepository,
	tables port.TableRepository,
	hasher *security.PasswordHasher,
	events port.EventPublisher,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		users:  users,
		tables: tables,
		hasher: hasher,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// CreateUserInput carries a new account request.
type CreateUserInput struct {
	Email       string
	Name        string
	Password    string
	Permissions int
	SchoolID    *int64
	ChangedBy   int64
	RequestID   string
}

// UpdateUserInput carries profile changes for an existing account.
type UpdateUserInput struct {
	ID          int64
	Email       string
	Name        string
	Permissions int
	SchoolID    *int64
	ChangedBy   int64
	RequestID   string
}

// GrantInput names one table grant by table name and access bits.
type GrantInput struct {
	TableName string
	Access    int
}

// List returns all accounts without password hashes.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// Get loads one account by id without the password hash.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// Create validates and stores a new account.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	name := strings.TrimSpace(input.Name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("valid email is required")
	}
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	if err := security.ValidatePassword(input.Password, email, name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Permissions:  input.Permissions,
		IsActive:     true,
		SchoolID:     input.SchoolID,
	}

	id, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	user.ID = id
	user.PasswordHash = ""

	s.auditMutation(ctx, id, "created", input.ChangedBy, input.RequestID)
	return &user, nil
}

// Update rewrites the account profile.
func (s *UserService) Update(ctx context.Context, input UpdateUserInput) error {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("valid email is required")
	}

	if existing, err := s.users.GetByEmail(ctx, email); err == nil {
		if existing.ID != input.ID {
			return ErrEmailTaken
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check email: %w", err)
	}

	err := s.users.Update(ctx, domain.User{
		ID:          input.ID,
		Email:       email,
		Name:        strings.TrimSpace(input.Name),
		Permissions: input.Permissions,
		SchoolID:    input.SchoolID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update user: %w", err)
	}

	s.auditMutation(ctx, input.ID, "updated", input.ChangedBy, input.RequestID)
	return nil
}

// SetActive enables or disables an account.
func (s *UserService) SetActive(ctx context.Context, id int64, active bool, changedBy int64, requestID string) error {
	if err := s.users.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("set user active: %w", err)
	}

	action := "deactivated"
	if active {
		action = "activated"
	}
	s.auditMutation(ctx, id, action, changedBy, requestID)
	return nil
}

// ChangePassword validates and stores a new password hash.
func (s *UserService) ChangePassword(ctx context.Context, id int64, password string, changedBy int64, requestID string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}

	if err := security.ValidatePassword(password, user.Email, user.Name); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.SetPasswordHash(ctx, id, hash); err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}

	s.auditMutation(ctx, id, "password_changed", changedBy, requestID)
	return nil
}

// ReplaceGrants swaps a user's table grants. Every named table must exist in
// the registry.
func (s *UserService) ReplaceGrants(ctx context.Context, userID int64, inputs []GrantInput, changedBy int64, requestID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}

	grants := make([]domain.TableGrant, 0, len(inputs))
	for _, input := range inputs {
		desc, err := s.tables.GetByName(ctx, input.TableName)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownTable, input.TableName)
			}
			return fmt.Errorf("resolve table %s: %w", input.TableName, err)
		}
		grants = append(grants, domain.TableGrant{
			UserID: userID,
			Table:  *desc,
			Access: input.Access,
		})
	}

	if err := s.users.ReplaceGrants(ctx, userID, grants); err != nil {
		return fmt.Errorf("replace grants: %w", err)
	}

	s.auditMutation(ctx, userID, "grants_replaced", changedBy, requestID)
	return nil
}

func (s *UserService) auditMutation(ctx context.Context, userID int64, action string, changedBy int64, requestID string) {
	if err := s.events.PublishUserMutated(ctx, domain.UserMutatedEvent{
		UserID:    userID,
		Action:    action,
		ChangedBy: changedBy,
		At:        s.now().UTC(),
		RequestID: requestID,
	}); err != nil {
		s.logger.Warn("publish user mutation event", zap.Error(err))
	}
}
