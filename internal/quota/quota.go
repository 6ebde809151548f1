// Package quota decides whether an account may generate another excuse and
// computes the usage record to store afterwards.
//
// The gate is a pure function of (account, now). It does no I/O, holds no
// mutable state, and never fails: every call returns a Decision.
//
// CALENDAR DAYS, NOT 24-HOUR WINDOWS:
// The free daily counter resets when the calendar date changes in the gate's
// reference location. Usage stamped at 23:59 is reset by a request at 00:01,
// two minutes later. Usage stamped at 00:01 is still counted at 23:59 the
// same day.
package quota

import (
	"time"

	"github.com/sakif/excuse-me/internal/model"
)

// FreeDailyLimit is the number of generations a FREE account gets per
// calendar day.
const FreeDailyLimit = 5

// Reason explains a denial. Allowed decisions have an empty Reason.
type Reason string

const ReasonQuotaExceeded Reason = "QuotaExceeded"

// Decision is the outcome of Gate.Admit.
type Decision struct {
	Allowed bool
	// EffectiveUsage is the account's usage for the current calendar day:
	// the stored DailyUsage if LastUsageDate falls on today, otherwise 0.
	EffectiveUsage int
	Reason         Reason
}

// Gate applies the entitlement rules. The zero value is not usable; build one
// with New.
type Gate struct {
	loc   *time.Location
	limit int
}

// New returns a Gate that compares calendar days in loc. A nil loc means UTC.
func New(loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{loc: loc, limit: FreeDailyLimit}
}

// Location returns the reference location for calendar-day comparisons.
func (g *Gate) Location() *time.Location { return g.loc }

// Limit returns the free daily limit.
func (g *Gate) Limit() int { return g.limit }

// SameDay reports whether a and b fall on the same calendar date in the
// gate's location. A zero time is never on the same day as anything.
func (g *Gate) SameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.In(g.loc).Date()
	by, bm, bd := b.In(g.loc).Date()
	return ay == by && am == bm && ad == bd
}

// EffectiveUsage returns the account's usage as of now, applying the day
// rollover.
func (g *Gate) EffectiveUsage(account *model.User, now time.Time) int {
	if !g.SameDay(account.LastUsageDate, now) {
		return 0
	}
	if account.DailyUsage < 0 {
		return 0
	}
	return account.DailyUsage
}

// Admit decides whether account may generate an excuse at now.
//
//  1. effective usage is computed with the day rollover
//  2. PREMIUM is always allowed
//  3. FREE at or over the limit is denied with ReasonQuotaExceeded
//  4. anything else is allowed
func (g *Gate) Admit(account *model.User, now time.Time) Decision {
	effective := g.EffectiveUsage(account, now)

	if account.Plan.IsPremium() {
		return Decision{Allowed: true, EffectiveUsage: effective}
	}
	if effective >= g.limit {
		return Decision{Allowed: false, EffectiveUsage: effective, Reason: ReasonQuotaExceeded}
	}
	return Decision{Allowed: true, EffectiveUsage: effective}
}

// RecordUsage computes the usage record to persist after a successful
// generation. The bool result reports whether anything should be written:
// premium accounts are never recorded.
func (g *Gate) RecordUsage(effectiveUsage int, plan model.Plan, now time.Time) (model.Usage, bool) {
	if plan.IsPremium() {
		return model.Usage{}, false
	}
	return model.Usage{DailyUsage: effectiveUsage + 1, LastUsageDate: now}, true
}

// Summary reports account's quota position as of now.
func (g *Gate) Summary(account *model.User, now time.Time) model.UsageSummary {
	used := g.EffectiveUsage(account, now)
	if account.Plan.IsPremium() {
		return model.UsageSummary{Plan: account.Plan, Used: used, Unlimited: true}
	}
	return model.UsageSummary{
		Plan:      account.Plan,
		Used:      used,
		Limit:     g.limit,
		Remaining: g.Remaining(account, now),
	}
}

// Remaining returns how many generations account has left today. Premium
// accounts report -1.
func (g *Gate) Remaining(account *model.User, now time.Time) int {
	if account.Plan.IsPremium() {
		return -1
	}
	left := g.limit - g.EffectiveUsage(account, now)
	if left < 0 {
		return 0
	}
	return left
}

// SummaryAfter is the usage view returned with a successful generation.
// For FREE accounts it reflects recorded, the usage just computed by
// RecordUsage.
func (g *Gate) SummaryAfter(plan model.Plan, effectiveUsage int, recorded model.Usage) model.UsageSummary {
	if plan.IsPremium() {
		return model.UsageSummary{Plan: plan, Used: effectiveUsage, Unlimited: true}
	}
	left := g.limit - recorded.DailyUsage
	if left < 0 {
		left = 0
	}
	return model.UsageSummary{
		Plan:      plan,
		Used:      recorded.DailyUsage,
		Limit:     g.limit,
		Remaining: left,
	}
}
