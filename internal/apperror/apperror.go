// Package apperror carries (message, HTTP status) pairs from the point of
// detection to the central echo error handler, which serializes every failure
// into the standard response envelope.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"family-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Error is a domain error with the HTTP status it maps to.
type Error struct {
	Code    int    `json:"statusCode"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// New creates a domain error.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Common constructors.
func BadRequest(message string) *Error   { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }
func Forbidden(message string) *Error    { return New(http.StatusForbidden, message) }
func NotFound(message string) *Error     { return New(http.StatusNotFound, message) }
func Conflict(message string) *Error     { return New(http.StatusConflict, message) }

// ErrorHandler is the centralized echo error handler. Everything that is not
// an *Error or an *echo.HTTPError surfaces as a generic 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"

	var appErr *Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
	case errors.As(err, &httpErr):
		code = httpErr.Code
		message = fmt.Sprintf("%v", httpErr.Message)
	default:
		logger.FromContext(c).Error("Unhandled error", zap.Error(err))
	}

	resp := echo.Map{
		"success":    false,
		"data":       nil,
		"message":    message,
		"statusCode": code,
	}

	if c.Request().Method == http.MethodHead {
		if err := c.NoContent(code); err != nil {
			logger.FromContext(c).Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := c.JSON(code, resp); err != nil {
		logger.FromContext(c).Error("Failed to write error response", zap.Error(err))
	}
}
