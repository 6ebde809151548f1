package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/excuse-me/internal/model"
	"github.com/sakif/excuse-me/internal/quota"
	"github.com/sakif/excuse-me/internal/repository"
)

// AccountService answers questions about an account's plan and quota and
// is the one place a plan is changed.
type AccountService struct {
	users  repository.UserRepository
	gate   *quota.Gate
	logger *slog.Logger
	now    func() time.Time
}

// NewAccountService creates an AccountService.
func NewAccountService(users repository.UserRepository, gate *quota.Gate, logger *slog.Logger) *AccountService {
	return &AccountService{users: users, gate: gate, logger: logger, now: time.Now}
}

// Usage returns today's quota view for userID (the dashboard "n / 5").
func (s *AccountService) Usage(ctx context.Context, userID string) (model.UsageSummary, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return model.UsageSummary{}, fmt.Errorf("service/account: fetching user %s: %w", userID, err)
	}
	return s.gate.Summary(user, s.now()), nil
}

// Lookup finds an account by internal ID, or by email when ref contains "@".
func (s *AccountService) Lookup(ctx context.Context, ref string) (*model.User, error) {
	var (
		user *model.User
		err  error
	)
	if strings.Contains(ref, "@") {
		user, err = s.users.GetUserByEmail(ctx, ref)
	} else {
		user, err = s.users.GetUserByID(ctx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("service/account: looking up %s: %w", ref, err)
	}
	return user, nil
}

// SetPlan changes the plan of the account identified by ref (ID or email).
// This is the billing hook: nothing else in the service writes the plan.
func (s *AccountService) SetPlan(ctx context.Context, ref string, plan model.Plan) (*model.User, error) {
	user, err := s.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetPlan(ctx, user.ID, plan); err != nil {
		return nil, fmt.Errorf("service/account: setting plan for %s: %w", user.ID, err)
	}

	s.logger.Info("plan changed",
		slog.String("userID", user.ID),
		slog.String("from", string(user.Plan)),
		slog.String("to", string(plan)),
	)
	user.Plan = plan
	return user, nil
}
