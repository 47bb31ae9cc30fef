package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/transport/http/middleware"
	"github.com/pollak-belso-projektek/indicator-backend/internal/usecase"
)

// AuthHandler serves login, refresh and the identity endpoint.
type AuthHandler struct {
	auth   *usecase.AuthService
	logger *zap.Logger
}

// NewAuthHandler builds a new auth handler instance.
func NewAuthHandler(auth *usecase.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, logger: logger}
}

var loginErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid email or password"},
	{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "Account is not active"},
}

// Login checks credentials and returns a fresh token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Bad Request", "Email and password are required"))
		return
	}

	pair, user, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        c.ClientIP(),
		RequestID: middleware.GetRequestID(c),
	})
	if err != nil {
		RespondWithMappedError(c, err, loginErrorCases, http.StatusInternalServerError, "Login failed")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         NewUserSummary(*user),
	})
}

// Refresh exchanges a refresh token for a new pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("Bad Request", "Refresh token is required"))
		return
	}

	pair, user, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, middleware.GetRequestID(c))
	if err != nil {
		RespondWithMappedError(c, err,
			[]ErrorCase{{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "Invalid or expired refresh token"}},
			http.StatusInternalServerError, "Token refresh failed")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         NewUserSummary(*user),
	})
}

// Me returns the acting identity, surfacing impersonation context.
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse("Unauthorized", "Authentication required"))
		return
	}

	response := MeResponse{
		User:          NewUserSummary(principal.Actor),
		Impersonation: string(principal.Impersonation),
	}
	if principal.ImpersonatedBy != nil {
		impersonator := NewUserSummary(*principal.ImpersonatedBy)
		response.ImpersonatedBy = &impersonator
	}

	c.JSON(http.StatusOK, response)
}
