// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in subpackages (sqlite, postgres).
package repository

import (
	"context"

	"github.com/sakif/excuse-me/internal/model"
)

// UsageMerge computes the usage to store from the usage currently stored.
// It runs inside the store's transaction.
type UsageMerge func(current model.Usage) model.Usage

// UserRepository is the account store.
//
// Lookups return an error wrapping apperror.ErrNotFound when no row matches.
// Writes for the same account are serialized by the store; a single database
// gives read-your-writes.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateIfAbsent inserts user keyed by email unless an account with that
	// email already exists. Either way user is overwritten with the stored
	// row. created reports whether a new row was inserted.
	CreateIfAbsent(ctx context.Context, user *model.User) (created bool, err error)

	// UpsertGitHub inserts a GitHub account on first sign-in and refreshes
	// the profile columns (login, email, avatar) on later ones. Plan and
	// usage columns are never touched by this call.
	UpsertGitHub(ctx context.Context, user *model.User) error

	// UpdateUsage reads the account's usage, applies merge, and writes the
	// result, all in one transaction. It returns what was written.
	UpdateUsage(ctx context.Context, id string, merge UsageMerge) (model.Usage, error)

	// SetPlan changes an account's plan.
	SetPlan(ctx context.Context, id string, plan model.Plan) error
}

// Store is a UserRepository backed by a connection the caller owns.
type Store interface {
	UserRepository
	Ping() error
	Close() error
}
