package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/excuse-me/internal/model"
	"github.com/sakif/excuse-me/internal/repository"
	"github.com/sakif/excuse-me/internal/repository/sqlite"
)

// nopClose keeps the shared in-memory database open across commands.
type nopClose struct{ *sqlite.DB }

func (nopClose) Close() error { return nil }

func setup(t *testing.T) (*sqlite.DB, opener) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, func(context.Context) (repository.Store, error) { return nopClose{db}, nil }
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmdWith(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSetAndShow(t *testing.T) {
	db, open := setup(t)

	u := model.NewUser(time.Now())
	u.Email = "buyer@example.com"
	_, err := db.CreateIfAbsent(context.Background(), u)
	require.NoError(t, err)

	out, err := run(t, open, "set", "buyer@example.com", "premium")
	require.NoError(t, err)
	assert.Contains(t, out, "plan:  PREMIUM")
	assert.Contains(t, out, "today: unlimited")

	stored, err := db.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPremium, stored.Plan)

	out, err = run(t, open, "--json", "show", u.ID)
	require.NoError(t, err)
	var res struct {
		Plan  string             `json:"plan"`
		Usage model.UsageSummary `json:"usage"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "PREMIUM", res.Plan)
	assert.True(t, res.Usage.Unlimited)
}

func TestSet_Errors(t *testing.T) {
	_, open := setup(t)

	_, err := run(t, open, "set", "nobody@example.com", "PREMIUM")
	assert.Error(t, err, "unknown account")

	_, err = run(t, open, "set", "nobody@example.com", "GOLD")
	assert.ErrorContains(t, err, "unsupported plan")

	_, err = run(t, open, "set", "only-one-arg")
	assert.Error(t, err)

	_, err = run(t, open, "--timezone", "Mars/Olympus", "show", "x")
	assert.ErrorContains(t, err, "invalid --timezone")
}

func TestTimezone_DefaultsFromEnv(t *testing.T) {
	_, open := setup(t)

	t.Setenv("QUOTA_TIMEZONE", "Asia/Tokyo")
	flag := newRootCmdWith(open).PersistentFlags().Lookup("timezone")
	require.NotNil(t, flag)
	assert.Equal(t, "Asia/Tokyo", flag.DefValue)

	t.Setenv("QUOTA_TIMEZONE", "Mars/Olympus")
	_, err := run(t, open, "show", "x")
	assert.ErrorContains(t, err, "invalid --timezone")

	_, err = run(t, open, "--timezone", "UTC", "show", "nobody@example.com")
	require.Error(t, err, "unknown account")
	assert.NotContains(t, err.Error(), "invalid --timezone", "explicit flag wins")
}
