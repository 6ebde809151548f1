// Package apperror defines the application's error taxonomy.
//
// Every layer returns either one of these *AppError values or an error that
// wraps one, so handlers can map failures to HTTP with errors.Is/errors.As
// regardless of how much context was added on the way up.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("Validation Error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrGeneration      = errors.New("generation failed")
	ErrStorage         = errors.New("storage failure")
)

// Error kinds reported to the UI layer.
const (
	KindValidation       = "ValidationError"
	KindNotAuthenticated = "NotAuthenticated"
	KindQuotaExceeded    = "QuotaExceeded"
	KindGeneration       = "GenerationError"
	KindStorage          = "StorageError"
	KindNotFound         = "NotFound"
	KindConflict         = "Conflict"
	KindForbidden        = "Forbidden"
	KindUnknown          = "Unknown"
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, kept for logs only
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated means there is no live session for the request.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// QuotaExceeded is the free-tier policy denial. It carries the upgrade
// prompt shown to the user.
func QuotaExceeded(limit int) *AppError {
	return &AppError{
		Err:     ErrQuotaExceeded,
		Message: fmt.Sprintf("Daily limit of %d excuses reached. Upgrade to Premium for unlimited excuses.", limit),
	}
}

// Generation wraps any failure of the text-generation call.
func Generation(cause error) *AppError {
	return &AppError{
		Err:     ErrGeneration,
		Message: "Failed to generate excuse. Please try again.",
		Cause:   cause,
	}
}

// Storage wraps an account store failure.
func Storage(action string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorage,
		Message: fmt.Sprintf("storage: %s failed", action),
		Cause:   cause,
	}
}

// KindOf maps an error to the kind string reported to the UI.
// A nil error has no kind.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthenticated):
		return KindNotAuthenticated
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrGeneration):
		return KindGeneration
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	default:
		return KindUnknown
	}
}
