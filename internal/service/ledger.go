package service

import (
	"context"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/model"
	"github.com/sakif/excuse-me/internal/quota"
	"github.com/sakif/excuse-me/internal/repository"
)

// LedgerWriter persists the usage record computed by quota.Gate.RecordUsage.
//
// The write is a monotonic merge against what is stored: for the same
// calendar day DailyUsage never goes down, and LastUsageDate never moves
// backward. Two requests that raced through Admit can therefore both write
// without one overwriting the other with a lower count.
type LedgerWriter struct {
	users repository.UserRepository
	gate  *quota.Gate
}

// NewLedgerWriter creates a LedgerWriter.
func NewLedgerWriter(users repository.UserRepository, gate *quota.Gate) *LedgerWriter {
	return &LedgerWriter{users: users, gate: gate}
}

// Persist writes usage for userID inside one store transaction and returns
// the stored result. Failures are apperror.Storage.
func (l *LedgerWriter) Persist(ctx context.Context, userID string, usage model.Usage) (model.Usage, error) {
	stored, err := l.users.UpdateUsage(ctx, userID, func(current model.Usage) model.Usage {
		return l.merge(current, usage)
	})
	if err != nil {
		return model.Usage{}, apperror.Storage("writing usage", err)
	}
	return stored, nil
}

// merge combines the stored usage with the incoming record.
//
//   - incoming on a later day  → incoming wins outright
//   - same calendar day        → larger count, later timestamp
//   - incoming on an earlier day (a request that straddled midnight) →
//     stored record is kept
func (l *LedgerWriter) merge(current, incoming model.Usage) model.Usage {
	if l.gate.SameDay(current.LastUsageDate, incoming.LastUsageDate) {
		next := incoming
		if current.DailyUsage > next.DailyUsage {
			next.DailyUsage = current.DailyUsage
		}
		if current.LastUsageDate.After(next.LastUsageDate) {
			next.LastUsageDate = current.LastUsageDate
		}
		return next
	}
	if current.LastUsageDate.After(incoming.LastUsageDate) {
		return current
	}
	return incoming
}
