package controller

import (
	"errors"
	"net/http"

	"github.com/nimburion/docroute/pkg/document"
)

// DefaultErrorCode is reported when an error carries no code of its own.
const DefaultErrorCode = -1

// AppError is an error with the HTTP status and code to report it with.
type AppError struct {
	Status  int
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewValidationError reports bad input with status 400.
func NewValidationError(message string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: http.StatusBadRequest, Message: message}
}

// NewNotFoundError reports a missing resource with status 404.
func NewNotFoundError(message string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: http.StatusNotFound, Message: message}
}

// NewInternalError reports a server-side failure with status 500.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: DefaultErrorCode, Message: message, Err: cause}
}

// MapError picks the status and payload for err. Record validation errors
// become 400s carrying their message; anything unknown becomes an opaque 500.
func MapError(err error) (int, ErrorResponse) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := appErr.Code
		if code == 0 {
			code = DefaultErrorCode
		}
		return status, ErrorResponse{Message: appErr.Message, Code: code}
	}

	if isValidation(err) {
		return http.StatusBadRequest, ErrorResponse{Message: err.Error(), Code: http.StatusBadRequest}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Message: "an unexpected error occurred",
		Code:    DefaultErrorCode,
	}
}

func isValidation(err error) bool {
	for _, target := range []error{
		document.ErrFieldNotDeclared,
		document.ErrFieldRequired,
		document.ErrEmptyField,
		document.ErrInvalidID,
		document.ErrUnknownAccessor,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
