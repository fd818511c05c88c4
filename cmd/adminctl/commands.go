package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"crudadmin/internal/app"
	"crudadmin/internal/config"
	"crudadmin/internal/database"
	"crudadmin/internal/services"
)

func newRootCmd() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:           "adminctl",
		Short:         "crudadmin administration tool",
		Long:          "Administrative tool for the crudadmin store: schema migrations, admin users and log retention.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if configFile != "" {
				return os.Setenv(config.FileEnv, configFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Config file (overrides "+config.FileEnv+")")
	root.AddCommand(newMigrateCmd(), newCreateUserCmd(), newCleanupCmd(), newSweepSessionsCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate <up|down|version> [N]",
		Short:     "Apply, roll back or inspect admin schema migrations",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, err := database.Migrator(app.AdminDBOptions(cfg))
			if err != nil {
				return err
			}
			defer database.CloseMigrator(m)

			out := cmd.OutOrStdout()
			switch args[0] {
			case "up":
				if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("migration up failed: %w", err)
				}
				fmt.Fprintln(out, "Migrations applied successfully")

			case "down":
				steps := 1
				if len(args) > 1 {
					steps, err = strconv.Atoi(args[1])
					if err != nil || steps <= 0 {
						return fmt.Errorf("invalid step count %q", args[1])
					}
				}
				if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("migration down failed: %w", err)
				}
				fmt.Fprintf(out, "Rolled back %d migration(s)\n", steps)

			case "version":
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Fprintln(out, "Version: none")
					return nil
				}
				if err != nil {
					return fmt.Errorf("failed to get version: %w", err)
				}
				fmt.Fprintf(out, "Version: %d, Dirty: %v\n", version, dirty)

			default:
				return fmt.Errorf("unknown command: %s (use up, down, or version)", args[0])
			}
			return nil
		},
	}
	return cmd
}

func newCreateUserCmd() *cobra.Command {
	var in services.NewAdminUser
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an admin user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.App) error {
				user, err := a.Users.CreateUser(cmd.Context(), in)
				if err != nil {
					return fmt.Errorf("failed to create user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created admin user %s (id %d, superuser %t)\n", user.Username, user.ID, user.IsSuperuser)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&in.Username, "username", "u", "", "Username (required)")
	cmd.Flags().StringVarP(&in.Password, "password", "p", "", "Password (required)")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	cmd.Flags().BoolVar(&in.IsSuperuser, "superuser", true, "Grant superuser rights")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old event and audit logs, old inactive sessions and expired blacklist entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.App) error {
				ctx := cmd.Context()
				if days == 0 {
					days = a.Config.LogRetentionDays()
				}

				logs, err := a.Events.CleanupOldLogs(ctx, days)
				if err != nil {
					return err
				}
				cutoff := time.Now().UTC().AddDate(0, 0, -days)
				sessions, err := a.Sessions.PurgeInactiveSessions(ctx, cutoff)
				if err != nil {
					return err
				}
				tokens, err := a.Tokens.PurgeExpired(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d events, %d audit entries, %d sessions, %d blacklist entries older than %d days\n",
					logs.Events, logs.Audits, sessions, tokens, days)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "retention-days", 0, "Retention window in days (default LOG_RETENTION_DAYS)")
	return cmd
}

func newSweepSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-sessions",
		Short: "Deactivate sessions idle longer than the session timeout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.App) error {
				n, err := a.Sessions.CleanupExpiredSessions(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %d idle session(s)\n", n)
				return nil
			})
		},
	}
}
