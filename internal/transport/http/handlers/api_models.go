package handlers

import (
	"time"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
)

// ErrorResponse is the error envelope shared by every service behind the
// gateway. Message and Service are optional; Timestamp is always present.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Service   string `json:"service,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewErrorResponse creates an error envelope with the current timestamp.
func NewErrorResponse(errorMsg, message string) ErrorResponse {
	return ErrorResponse{
		Error:     errorMsg,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token pair and the user view.
type LoginResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         UserSummary `json:"user"`
}

// RefreshRequest defines the payload for the refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// UserSummary is the API view of an account. The password hash never leaves
// the service.
type UserSummary struct {
	ID          int64                `json:"id"`
	Email       string               `json:"email"`
	Name        string               `json:"name"`
	Permissions domain.PermissionSet `json:"permissions"`
	IsActive    bool                 `json:"isActive"`
	School      *SchoolSummary       `json:"school,omitempty"`
	TableAccess []TableGrantSummary  `json:"tableAccess"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// SchoolSummary is the API view of a school record.
type SchoolSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	OM   string `json:"om"`
}

// TableGrantSummary is the API view of one table grant.
type TableGrantSummary struct {
	TableName   string                `json:"tableName"`
	Alias       string                `json:"alias"`
	IsAvailable bool                  `json:"isAvailable"`
	Permissions domain.TableAccessSet `json:"permissions"`
}

// MeResponse extends the user view with impersonation context.
type MeResponse struct {
	User           UserSummary  `json:"user"`
	Impersonation  string       `json:"impersonation"`
	ImpersonatedBy *UserSummary `json:"impersonatedBy,omitempty"`
}

// CreateUserRequest defines the payload for account creation.
type CreateUserRequest struct {
	Email       string `json:"email" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Permissions int    `json:"permissions"`
	SchoolID    *int64 `json:"schoolId"`
}

// UpdateUserRequest defines the payload for account updates.
type UpdateUserRequest struct {
	Email       string `json:"email" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Permissions int    `json:"permissions"`
	SchoolID    *int64 `json:"schoolId"`
}

// SetActiveRequest toggles an account's active flag.
type SetActiveRequest struct {
	IsActive bool `json:"isActive"`
}

// ChangePasswordRequest defines the payload for password changes.
type ChangePasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// GrantRequest names one grant in a replace-grants payload.
type GrantRequest struct {
	TableName string `json:"tableName" binding:"required"`
	Access    int    `json:"access"`
}

// ReplaceGrantsRequest defines the payload for grant replacement.
type ReplaceGrantsRequest struct {
	Grants []GrantRequest `json:"grants"`
}

// TableRequest defines the payload for table registration and updates.
type TableRequest struct {
	Name        string `json:"name" binding:"required"`
	Alias       string `json:"alias"`
	IsAvailable bool   `json:"isAvailable"`
	IsLocked    bool   `json:"isLocked"`
}

// TableSummary is the API view of a registered table.
type TableSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Alias       string `json:"alias"`
	IsAvailable bool   `json:"isAvailable"`
	IsLocked    bool   `json:"isLocked"`
}

// NewUserSummary converts a domain user to its API view.
func NewUserSummary(user domain.User) UserSummary {
	summary := UserSummary{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Permissions: user.PermissionDetails(),
		IsActive:    user.IsActive,
		TableAccess: make([]TableGrantSummary, 0, len(user.TableAccess)),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}

	if user.School != nil {
		summary.School = &SchoolSummary{
			ID:   user.School.ID,
			Name: user.School.Name,
			OM:   user.School.OM,
		}
	}

	for _, grant := range user.TableAccess {
		summary.TableAccess = append(summary.TableAccess, TableGrantSummary{
			TableName:   grant.Table.Name,
			Alias:       grant.Table.Alias,
			IsAvailable: grant.Table.IsAvailable,
			Permissions: grant.AccessDetails(),
		})
	}

	return summary
}

// NewTableSummary converts a table descriptor to its API view.
func NewTableSummary(desc domain.TableDescriptor) TableSummary {
	return TableSummary{
		ID:          desc.ID,
		Name:        desc.Name,
		Alias:       desc.Alias,
		IsAvailable: desc.IsAvailable,
		IsLocked:    desc.IsLocked,
	}
}
