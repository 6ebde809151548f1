package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/excuse-me/internal/config"
	"github.com/sakif/excuse-me/internal/model"
	"github.com/sakif/excuse-me/internal/quota"
	"github.com/sakif/excuse-me/internal/repository"
	"github.com/sakif/excuse-me/internal/service"
	"github.com/sakif/excuse-me/internal/store"
)

// opener is swapped in tests.
type opener func(ctx context.Context) (repository.Store, error)

func openFromEnv(ctx context.Context) (repository.Store, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg)
}

type app struct {
	open     opener
	timezone string
	asJSON   bool
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(openFromEnv)
}

func newRootCmdWith(open opener) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:           "userplan",
		Short:         "Inspect accounts and change their plan",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.timezone, "timezone", config.QuotaTimezone(),
		"reference zone for today's usage (default from QUOTA_TIMEZONE)")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print JSON instead of text")

	root.AddCommand(a.newShowCmd(), a.newSetCmd())
	return root
}

func (a *app) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|email>",
		Short: "Show an account's plan and today's usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAccounts(cmd, func(ctx context.Context, accounts *service.AccountService) error {
				user, err := accounts.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				summary, err := accounts.Usage(ctx, user.ID)
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), user, summary)
			})
		},
	}
}

func (a *app) newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set <id|email> <FREE|PREMIUM>",
		Short:     "Change an account's plan",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(model.PlanFree), string(model.PlanPremium)},
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := model.Plan(strings.ToUpper(strings.TrimSpace(args[1])))
			if !plan.Valid() {
				return fmt.Errorf("unsupported plan %q (want FREE or PREMIUM)", args[1])
			}

			return a.withAccounts(cmd, func(ctx context.Context, accounts *service.AccountService) error {
				user, err := accounts.SetPlan(ctx, args[0], plan)
				if err != nil {
					return err
				}
				summary, err := accounts.Usage(ctx, user.ID)
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), user, summary)
			})
		},
	}
}

func (a *app) withAccounts(cmd *cobra.Command, fn func(context.Context, *service.AccountService) error) error {
	loc, err := time.LoadLocation(a.timezone)
	if err != nil {
		return fmt.Errorf("invalid --timezone: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	db, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil)).With(slog.String("cmd", "userplan"))
	return fn(ctx, service.NewAccountService(db, quota.New(loc), logger))
}

func (a *app) print(w io.Writer, user *model.User, summary model.UsageSummary) error {
	if a.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			ID    string             `json:"id"`
			Email string             `json:"email,omitempty"`
			Plan  model.Plan         `json:"plan"`
			Usage model.UsageSummary `json:"usage"`
		}{user.ID, user.Email, user.Plan, summary})
	}

	usage := "unlimited"
	if !summary.Unlimited {
		usage = fmt.Sprintf("%d / %d", summary.Used, summary.Limit)
	}
	_, err := fmt.Fprintf(w, "id:    %s\nemail: %s\nplan:  %s\ntoday: %s\n", user.ID, user.Email, user.Plan, usage)
	return err
}
