package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/transport/http/middleware"
	"github.com/pollak-belso-projektek/indicator-backend/internal/usecase"
)

// UserHandler serves the account management endpoints. Routes mounting it
// sit behind the admin guard.
type UserHandler struct {
	users  *usecase.UserService
	logger *zap.Logger
}

// NewUserHandler builds a new user handler instance.
func NewUserHandler(users *usecase.UserService, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: users, logger: logger}
}

var userErrorCases = []ErrorCase{
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "User not found"},
	{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "Email already in use"},
	{Err: usecase.ErrWeakPassword, Status: http.StatusBadRequest, Message: "Password does not meet policy"},
	{Err: usecase.ErrUnknownTable, Status: http.StatusBadRequest, Message: "Grant references an unknown table"},
}

// List returns every account.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "Failed to list users")
		return
	}

	summaries := make([]UserSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, NewUserSummary(user))
	}
	c.JSON(http.StatusOK, summaries)
}

// Get returns one account by id.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "Failed to load user")
		return
	}
	c.JSON(http.StatusOK, NewUserSummary(*user))
}

// Create registers a new account.
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Bad Request", "Email, name and password are required"))
		return
	}

	user, err := h.users.Create(c.Request.Context(), usecase.CreateUserInput{
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		Permissions: req.Permissions,
		SchoolID:    req.SchoolID,
		ChangedBy:   actorID(c),
		RequestID:   middleware.GetRequestID(c),
	})
	if err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, NewUserSummary(*user))
}

// Update rewrites an account's profile.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Bad Request", "Email and name are required"))
		return
	}

	err := h.users.Update(c.Request.Context(), usecase.UpdateUserInput{
		ID:          id,
		Email:       req.Email,
		Name:        req.Name,
		Permissions: req.Permissions,
		SchoolID:    req.SchoolID,
		ChangedBy:   actorID(c),
		RequestID:   middleware.GetRequestID(c),
	})
	if err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "Failed to update user")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "User updated"})
}

// SetActive enables or disables an account.
func (h *UserHandler) SetActive(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Bad Request", "isActive is required"))
		return
	}

	if err := h.users.SetActive(c.Request.Context(), id, req.IsActive, actorID(c), middleware.GetRequestID(c)); err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "Failed to update user")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "User updated"})
}

// ChangePassword stores a new password for the account.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Bad Request", "Password is required"))
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), id, req.Password, actorID(c), middleware.GetRequestID(c)); err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "Failed to change password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password changed"})
}

// ReplaceGrants swaps the account's table grants.
func (h *UserHandler) ReplaceGrants(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req ReplaceGrantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Bad Request", "Grants payload is invalid"))
		return
	}

	grants := make([]usecase.GrantInput, 0, len(req.Grants))
	for _, grant := range req.Grants {
		grants = append(grants, usecase.GrantInput{TableName: grant.TableName, Access: grant.Access})
	}

	if err := h.users.ReplaceGrants(c.Request.Context(), id, grants, actorID(c), middleware.GetRequestID(c)); err != nil {
		RespondWithMappedError(c, err, userErrorCases, http.StatusInternalServerError, "Failed to update grants")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Grants updated"})
}

// RequireAdmin rejects requests whose acting principal lacks admin rights.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorResponse("Unauthorized", "Authentication required"))
			return
		}

		perms := principal.Actor.PermissionDetails()
		if !perms.IsSuperadmin && !perms.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, NewErrorResponse("Forbidden", "Admin access required"))
			return
		}

		c.Next()
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Bad Request", "Invalid id"))
		return 0, false
	}
	return id, true
}

func actorID(c *gin.Context) int64 {
	if principal, ok := middleware.GetPrincipal(c); ok {
		return actingUserID(principal)
	}
	return 0
}

// actingUserID attributes mutations to the true principal, not the
// impersonated identity.
func actingUserID(principal domain.Principal) int64 {
	if principal.ImpersonatedBy != nil {
		return principal.ImpersonatedBy.ID
	}
	return principal.Actor.ID
}
