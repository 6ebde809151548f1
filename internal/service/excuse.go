package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/excuse"
	"github.com/sakif/excuse-me/internal/generator"
	"github.com/sakif/excuse-me/internal/metrics"
	"github.com/sakif/excuse-me/internal/model"
	"github.com/sakif/excuse-me/internal/quota"
	"github.com/sakif/excuse-me/internal/repository"
)

// ExcuseService runs one generation request end to end:
//
//	validate → load account → admit → generate → record usage → persist
//
// Usage is only ever recorded after the generator succeeds. A quota denial
// or a generation failure leaves the stored account untouched.
type ExcuseService struct {
	users     repository.UserRepository
	gate      *quota.Gate
	generator generator.Generator
	ledger    *LedgerWriter
	metrics   *metrics.Pipeline
	logger    *slog.Logger
	now       func() time.Time
}

// NewExcuseService wires an ExcuseService.
func NewExcuseService(
	users repository.UserRepository,
	gate *quota.Gate,
	gen generator.Generator,
	ledger *LedgerWriter,
	m *metrics.Pipeline,
	logger *slog.Logger,
) *ExcuseService {
	return &ExcuseService{
		users:     users,
		gate:      gate,
		generator: gen,
		ledger:    ledger,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the time source. Tests use it to pin "now".
func (s *ExcuseService) SetClock(now func() time.Time) {
	s.now = now
}

// Submit handles a raw form submission from userID.
//
// Errors, in the order they can occur:
//   - apperror.ErrUnauthenticated  no user, or the account no longer exists
//   - apperror.ErrValidation       the form is malformed
//   - apperror.ErrQuotaExceeded    free daily limit reached; nothing generated
//   - apperror.ErrGeneration       provider failed; nothing recorded
//
// A storage failure while recording usage is logged and counted but not
// returned: the user still gets the excuse.
func (s *ExcuseService) Submit(ctx context.Context, userID string, raw map[string]string) (*model.ExcuseResult, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated("Please sign in to generate excuses.")
	}

	req, err := excuse.Validate(raw)
	if err != nil {
		return nil, err
	}

	account, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("Your account could not be found. Please sign in again.")
		}
		return nil, fmt.Errorf("service/excuse: loading account %s: %w", userID, err)
	}

	now := s.now()
	decision := s.gate.Admit(account, now)
	if !decision.Allowed {
		s.metrics.QuotaDenials.Inc()
		s.logger.Info("quota exceeded",
			slog.String("userID", account.ID),
			slog.Int("effectiveUsage", decision.EffectiveUsage),
		)
		return nil, apperror.QuotaExceeded(s.gate.Limit())
	}

	start := time.Now()
	text, err := s.generator.Generate(ctx, req)
	s.metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.GenerationFailures.Inc()
		s.logger.Error("excuse generation failed",
			slog.String("userID", account.ID),
			slog.String("error", causeOf(err).Error()),
		)
		if !errors.Is(err, apperror.ErrGeneration) {
			err = apperror.Generation(err)
		}
		return nil, err
	}

	usage, write := s.gate.RecordUsage(decision.EffectiveUsage, account.Plan, now)
	if write {
		if _, err := s.ledger.Persist(ctx, account.ID, usage); err != nil {
			s.metrics.LedgerWriteFailures.Inc()
			s.logger.Error("recording usage failed",
				slog.String("userID", account.ID),
				slog.Int("dailyUsage", usage.DailyUsage),
				slog.String("error", causeOf(err).Error()),
			)
		}
	}

	s.metrics.Generated.WithLabelValues(string(account.Plan)).Inc()

	return &model.ExcuseResult{
		Excuse:    text,
		Watermark: !account.Plan.IsPremium(),
		Usage:     s.gate.SummaryAfter(account.Plan, decision.EffectiveUsage, usage),
	}, nil
}

// causeOf returns the underlying failure of an AppError for logging, or err
// itself.
func causeOf(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause
	}
	return err
}
