package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/model"
	"github.com/sakif/excuse-me/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. A hand-written
// fake keeps the behavior under test visible in one place.
type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]*model.User // keyed by internal ID
	nextID  int
	updates int // successful UpdateUsage calls

	// set to a non-nil error to simulate a database failure
	getErr    error
	createErr error
	upsertErr error
	updateErr error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

// seed stores u and returns its ID.
func (f *fakeUserRepo) seed(u model.User) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = fmt.Sprintf("user-%d", f.nextID)
		f.nextID++
	}
	f.users[u.ID] = &u
	return u.ID
}

// stored returns a copy of the stored account.
func (f *fakeUserRepo) stored(id string) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[id]
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	c := *u
	return &c, nil
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Email != "" && u.Email == strings.ToLower(email) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) CreateIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return false, f.createErr
	}
	user.Email = strings.ToLower(user.Email)
	for _, u := range f.users {
		if u.Email == user.Email {
			*user = *u
			return false, nil
		}
	}
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	c := *user
	f.users[user.ID] = &c
	return true, nil
}

func (f *fakeUserRepo) UpsertGitHub(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, u := range f.users {
		if u.GitHubID == user.GitHubID {
			u.Login = user.Login
			u.Email = user.Email
			u.AvatarURL = user.AvatarURL
			*user = *u
			return nil
		}
	}
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	user.Plan = model.PlanFree
	user.LastUsageDate = time.Now()
	c := *user
	f.users[user.ID] = &c
	return nil
}

func (f *fakeUserRepo) UpdateUsage(ctx context.Context, id string, merge repository.UsageMerge) (model.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return model.Usage{}, f.updateErr
	}
	u, ok := f.users[id]
	if !ok {
		return model.Usage{}, apperror.NotFound("user", id)
	}
	next := merge(u.Usage())
	u.DailyUsage = next.DailyUsage
	u.LastUsageDate = next.LastUsageDate
	f.updates++
	return next, nil
}

func (f *fakeUserRepo) SetPlan(ctx context.Context, id string, plan model.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Plan = plan
	return nil
}

// fakeGenerator returns text or err and counts calls.
type fakeGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	last  model.ExcuseRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req model.ExcuseRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
