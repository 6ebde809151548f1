package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/model"
	"github.com/sakif/excuse-me/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, password_hash, github_id, login, avatar_url,
	plan, daily_usage, last_usage_date, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
		plan     string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&githubID,
		&u.Login,
		&u.AvatarURL,
		&plan,
		&u.DailyUsage,
		&u.LastUsageDate,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.GitHubID = githubID.Int64
	u.Plan = model.Plan(plan)
	return &u, nil
}

// nullableGitHubID stores 0 as NULL so email accounts don't collide on the
// UNIQUE constraint.
func nullableGitHubID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail looks an account up by its (case-insensitive) email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperror.NotFound("user", email)
	}

	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// CreateIfAbsent inserts user unless an account with the same email exists.
//
// INSERT ... ON CONFLICT DO NOTHING makes the check-and-insert a single
// statement, so two concurrent sign-ups for one email produce one row.
// The stored row is read back into user in both cases.
func (db *DB) CreateIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	user.Email = normalizeEmail(user.Email)
	if user.Email == "" {
		return false, apperror.ValidationFailed("email", "email is required")
	}

	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Plan == "" {
		user.Plan = model.PlanFree
	}
	if user.LastUsageDate.IsZero() {
		user.LastUsageDate = now
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, github_id, login, avatar_url,
			plan, daily_usage, last_usage_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		user.ID,
		user.Email,
		user.PasswordHash,
		nullableGitHubID(user.GitHubID),
		user.Login,
		user.AvatarURL,
		string(user.Plan),
		user.DailyUsage,
		user.LastUsageDate.UTC(),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	stored, err := db.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return false, err
	}
	*user = *stored
	return n == 1, nil
}

// UpsertGitHub creates or refreshes an account from a GitHub profile.
//
// Lookup order:
//  1. github_id match → refresh login, email and avatar
//  2. email match on an account with no GitHub link → link it
//  3. otherwise insert a new FREE account
//
// Plan and usage columns are never written here.
func (db *DB) UpsertGitHub(ctx context.Context, user *model.User) error {
	if user.GitHubID == 0 {
		return apperror.ValidationFailed("githubId", "GitHub ID is required")
	}
	user.Email = normalizeEmail(user.Email)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID == "" && user.Email != "" {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE email = ? AND github_id IS NULL`, user.Email,
		).Scan(&existingID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlite: looking up user by email: %w", err)
		}
	}

	now := time.Now().UTC()
	if existingID != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET github_id = ?, login = ?, avatar_url = ?,
				email = CASE WHEN ? <> '' THEN ? ELSE email END,
				updated_at = ?
			 WHERE id = ?`,
			user.GitHubID,
			user.Login,
			user.AvatarURL,
			user.Email, user.Email,
			now,
			existingID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", existingID, err)
		}
	} else {
		existingID = xid.New().String()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, email, github_id, login, avatar_url,
				plan, daily_usage, last_usage_date, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
			existingID,
			user.Email,
			user.GitHubID,
			user.Login,
			user.AvatarURL,
			string(model.PlanFree),
			now,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
		}
	}

	stored, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, existingID,
	))
	if err != nil {
		return fmt.Errorf("sqlite: reading back user %s: %w", existingID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing user %s: %w", existingID, err)
	}

	*user = *stored
	return nil
}

// UpdateUsage applies merge to the stored usage inside one transaction.
func (db *DB) UpdateUsage(ctx context.Context, id string, merge repository.UsageMerge) (model.Usage, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return model.Usage{}, fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current model.Usage
	err = tx.QueryRowContext(ctx,
		`SELECT daily_usage, last_usage_date FROM users WHERE id = ?`, id,
	).Scan(&current.DailyUsage, &current.LastUsageDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Usage{}, apperror.NotFound("user", id)
		}
		return model.Usage{}, fmt.Errorf("sqlite: reading usage for user %s: %w", id, err)
	}

	next := merge(current)

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET daily_usage = ?, last_usage_date = ?, updated_at = ? WHERE id = ?`,
		next.DailyUsage,
		next.LastUsageDate.UTC(),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return model.Usage{}, fmt.Errorf("sqlite: writing usage for user %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Usage{}, fmt.Errorf("sqlite: committing usage for user %s: %w", id, err)
	}
	return next, nil
}

// SetPlan changes the plan of an account.
func (db *DB) SetPlan(ctx context.Context, id string, plan model.Plan) error {
	if !plan.Valid() {
		return apperror.ValidationFailed("plan", fmt.Sprintf("unknown plan %q", plan))
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET plan = ?, updated_at = ? WHERE id = ?`,
		string(plan), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting plan for user %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: setting plan for user %s: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
