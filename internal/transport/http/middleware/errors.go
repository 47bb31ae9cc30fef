package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse matches the handlers.ErrorResponse envelope so middleware
// rejections look the same as handler errors.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Service   string `json:"service,omitempty"`
	Timestamp string `json:"timestamp"`
}

func newErrorResponse(errorMsg, message string) ErrorResponse {
	return ErrorResponse{
		Error:     errorMsg,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func abortWithError(c *gin.Context, status int, errorMsg, message string) {
	c.AbortWithStatusJSON(status, newErrorResponse(errorMsg, message))
}
