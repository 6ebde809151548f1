package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/auth"
	"github.com/sakif/excuse-me/internal/model"
)

// UsageReporter returns today's quota view for an account.
type UsageReporter interface {
	Usage(ctx context.Context, userID string) (model.UsageSummary, error)
}

// AccountHandler serves the dashboard usage counter.
type AccountHandler struct {
	accounts UsageReporter
}

func NewAccountHandler(accounts UsageReporter) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// HandleUsage answers GET /api/usage with {plan, used, limit, remaining, unlimited}.
func (h *AccountHandler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	summary, err := h.accounts.Usage(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			err = apperror.Unauthenticated("Your account could not be found. Please sign in again.")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
