package postgres

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

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, password_hash, github_id, login, avatar_url,
	plan, daily_usage, last_usage_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
		plan     string
	)
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &githubID, &u.Login, &u.AvatarURL,
		&plan, &u.DailyUsage, &u.LastUsageDate, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.GitHubID = githubID.Int64
	u.Plan = model.Plan(plan)
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, id, "postgres: getting user %s: %w")
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperror.NotFound("user", email)
	}
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, notFoundOr(err, email, "postgres: getting user by email %s: %w")
	}
	return u, nil
}

func (db *DB) CreateIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	user.Email = normalizeEmail(user.Email)
	if user.Email == "" {
		return false, apperror.ValidationFailed("email", "email is required")
	}

	now := time.Now().UTC()
	if user.Plan == "" {
		user.Plan = model.PlanFree
	}
	if user.LastUsageDate.IsZero() {
		user.LastUsageDate = now
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, github_id, login, avatar_url,
			plan, daily_usage, last_usage_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		 ON CONFLICT DO NOTHING`,
		xid.New().String(),
		user.Email,
		user.PasswordHash,
		sql.NullInt64{Int64: user.GitHubID, Valid: user.GitHubID != 0},
		user.Login,
		user.AvatarURL,
		string(user.Plan),
		user.DailyUsage,
		user.LastUsageDate,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: inserting user (email=%s): %w", user.Email, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres: inserting user (email=%s): %w", user.Email, err)
	}

	stored, err := db.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return false, err
	}
	*user = *stored
	return n == 1, nil
}

// UpsertGitHub follows the same lookup order as the SQLite store:
// github_id, then an unlinked account with the same email, then insert.
func (db *DB) UpsertGitHub(ctx context.Context, user *model.User) error {
	if user.GitHubID == 0 {
		return apperror.ValidationFailed("githubId", "GitHub ID is required")
	}
	user.Email = normalizeEmail(user.Email)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = $1 FOR UPDATE`, user.GitHubID).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("postgres: looking up user by github_id %d: %w", user.GitHubID, err)
	}
	if id == "" && user.Email != "" {
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE email = $1 AND github_id IS NULL FOR UPDATE`, user.Email).Scan(&id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("postgres: looking up user by email: %w", err)
		}
	}

	now := time.Now().UTC()
	if id != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET github_id = $1, login = $2, avatar_url = $3,
				email = CASE WHEN $4::text <> '' THEN $4::text ELSE email END,
				updated_at = $5
			 WHERE id = $6`,
			user.GitHubID, user.Login, user.AvatarURL, user.Email, now, id)
		if err != nil {
			return fmt.Errorf("postgres: updating user %s: %w", id, err)
		}
	} else {
		id = xid.New().String()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, email, github_id, login, avatar_url,
				plan, daily_usage, last_usage_date, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7, $7)`,
			id, user.Email, user.GitHubID, user.Login, user.AvatarURL, string(model.PlanFree), now)
		if err != nil {
			// A concurrent first sign-in for the same GitHub account won the insert.
			if isUniqueViolation(err) {
				return apperror.Conflict("user", fmt.Sprintf("github:%d", user.GitHubID))
			}
			return fmt.Errorf("postgres: inserting user (githubID=%d): %w", user.GitHubID, err)
		}
	}

	stored, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return fmt.Errorf("postgres: reading back user %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: committing user %s: %w", id, err)
	}

	*user = *stored
	return nil
}

func (db *DB) UpdateUsage(ctx context.Context, id string, merge repository.UsageMerge) (model.Usage, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return model.Usage{}, fmt.Errorf("postgres: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current model.Usage
	err = tx.QueryRowContext(ctx,
		`SELECT daily_usage, last_usage_date FROM users WHERE id = $1 FOR UPDATE`, id,
	).Scan(&current.DailyUsage, &current.LastUsageDate)
	if err != nil {
		return model.Usage{}, notFoundOr(err, id, "postgres: reading usage for user %s: %w")
	}

	next := merge(current)

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET daily_usage = $1, last_usage_date = $2, updated_at = now() WHERE id = $3`,
		next.DailyUsage, next.LastUsageDate, id,
	); err != nil {
		return model.Usage{}, fmt.Errorf("postgres: writing usage for user %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Usage{}, fmt.Errorf("postgres: committing usage for user %s: %w", id, err)
	}
	return next, nil
}

func (db *DB) SetPlan(ctx context.Context, id string, plan model.Plan) error {
	if !plan.Valid() {
		return apperror.ValidationFailed("plan", fmt.Sprintf("unknown plan %q", plan))
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET plan = $1, updated_at = now() WHERE id = $2`, string(plan), id)
	if err != nil {
		return fmt.Errorf("postgres: setting plan for user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: setting plan for user %s: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
