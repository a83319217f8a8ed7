package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/db"
	"github.com/siva27neelam/story-telling/pkg/logger"
	"github.com/siva27neelam/story-telling/pkg/migrate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var dir string
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage goose schema migrations for the legacy story database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", migrate.DefaultDir, "goose migrations directory")

	for _, command := range []string{"up", "down", "status"} {
		root.AddCommand(&cobra.Command{
			Use:   command,
			Short: "goose " + command,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd, dir, func(ctx context.Context, sqlDB *sql.DB, dialect string) error {
					return migrate.Run(ctx, sqlDB, dialect, dir, command)
				})
			},
		})
	}

	root.AddCommand(&cobra.Command{
		Use:   "version VERSION",
		Short: "Migrate up or down to VERSION (YYYYMMDDHHMMSS)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, dir, func(ctx context.Context, sqlDB *sql.DB, dialect string) error {
				return migrate.MigrateToVersion(ctx, sqlDB, dialect, dir, args[0])
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a timestamped SQL migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := migrate.CreateSQLMigration(dir, args[0], time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "created migration:", path)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check migration names and goose annotations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := migrate.ValidateDir(dir); err != nil {
				return fmt.Errorf("migration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration validation passed")
			return nil
		},
	})
	return root
}

// withDB loads config, opens the database and hands fn a raw handle plus the
// goose dialect for the configured driver.
func withDB(cmd *cobra.Command, dir string, fn func(context.Context, *sql.DB, string) error) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"cmd":    cmd.Name(),
		"dir":    dir,
		"driver": cfg.DB.Driver,
	})

	dialect, err := migrate.Dialect(cfg.DB.Driver)
	if err != nil {
		return err
	}
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			logg.Warn(ctx, "closing database failed")
		}
	}()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	if err := fn(ctx, sqlDB, dialect); err != nil {
		logg.Error(ctx, "migration command failed", err)
		return err
	}
	logg.Info(ctx, "migration command complete")
	return nil
}
