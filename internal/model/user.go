// Package model defines the data structures used throughout the application.
package model

import "time"

// Plan is the entitlement tier of an account.
type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanPremium Plan = "PREMIUM"
)

// Valid reports whether p is one of the known plans.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPremium
}

// IsPremium reports whether the plan is exempt from the daily quota.
func (p Plan) IsPremium() bool {
	return p == PlanPremium
}

// User represents a registered account.
//
// An account is created the first time someone authenticates, either with
// email/password or through GitHub. Both paths end up with the same row:
// the auth-specific columns (PasswordHash, GitHubID, Login, AvatarURL) are
// simply empty for the path that wasn't used.
//
// The quota fields (Plan, DailyUsage, LastUsageDate) belong together:
// DailyUsage only means something for the calendar day of LastUsageDate.
// See package quota for how the two are read.
type User struct {
	ID            string    `json:"id"            db:"id"`
	Email         string    `json:"email"         db:"email"`
	PasswordHash  string    `json:"-"             db:"password_hash"`
	GitHubID      int64     `json:"githubId,omitempty"  db:"github_id"` // 0 for email accounts
	Login         string    `json:"login,omitempty"     db:"login"`
	AvatarURL     string    `json:"avatarUrl,omitempty" db:"avatar_url"`
	Plan          Plan      `json:"plan"          db:"plan"`
	DailyUsage    int       `json:"dailyUsage"    db:"daily_usage"`
	LastUsageDate time.Time `json:"lastUsageDate" db:"last_usage_date"`
	CreatedAt     time.Time `json:"createdAt"     db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt"     db:"updated_at"`
}

// Usage is the pair of fields the usage ledger writes after a generation.
type Usage struct {
	DailyUsage    int       `json:"dailyUsage"`
	LastUsageDate time.Time `json:"lastUsageDate"`
}

// Usage returns the account's stored usage fields.
func (u *User) Usage() Usage {
	return Usage{DailyUsage: u.DailyUsage, LastUsageDate: u.LastUsageDate}
}

// NewUser returns an account populated with sign-up defaults:
// FREE plan, zero usage, LastUsageDate set to now.
func NewUser(now time.Time) *User {
	return &User{
		Plan:          PlanFree,
		DailyUsage:    0,
		LastUsageDate: now,
	}
}
