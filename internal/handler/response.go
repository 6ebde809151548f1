package handler

// RESPONSE HELPERS:
// Every error response from the API has the same shape:
//   {"errorKind": "QuotaExceeded", "message": "...", "upgradeUrl": "/pricing"}
//
// errorKind is the UI contract: the front end switches on it, never on the
// HTTP status or the message text.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/auth"
)

// UpgradeURL is offered to free users who hit the daily limit.
const UpgradeURL = "/pricing"

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	ErrorKind  string `json:"errorKind"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	UpgradeURL string `json:"upgradeUrl,omitempty"`
	Redirect   string `json:"redirect,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body. Once Encode writes,
// later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps an errorKind to its HTTP status.
func statusFor(kind string) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindNotAuthenticated:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case apperror.KindGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a domain error to the appropriate HTTP status code and
// sends it.
//
// errors.As extracts the *AppError for the user-facing message. Anything
// that is not an AppError is reported as Unknown with a generic message:
// raw errors can carry SQL, file paths or provider responses.
func writeError(w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	resp := ErrorResponse{ErrorKind: kind}

	var appErr *apperror.AppError
	switch {
	case kind == apperror.KindStorage || kind == apperror.KindUnknown:
		resp.ErrorKind = apperror.KindUnknown
		resp.Message = "Something went wrong. Please try again."
	case errors.As(err, &appErr):
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	default:
		resp.Message = "Something went wrong. Please try again."
	}

	switch kind {
	case apperror.KindQuotaExceeded:
		resp.UpgradeURL = UpgradeURL
	case apperror.KindNotAuthenticated:
		resp.Redirect = auth.LoginRedirect
	}

	writeJSON(w, statusFor(kind), resp)
}
