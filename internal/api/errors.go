package api

import (
	"github.com/gin-gonic/gin"
)

// Error represents an API error
type Error struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// respondError writes an API error as the response body.
func respondError(c *gin.Context, err *Error) {
	c.JSON(err.Code, err)
}
