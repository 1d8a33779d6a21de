package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/cmd/pixav/cmdutil"
	"github.com/Charliesj0129/pixAV/internal/cli/output"
	"github.com/Charliesj0129/pixAV/internal/cli/timeutil"
	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/pkg/config"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the task database.

This command applies pending database migrations to the configured task
database (SQLite or PostgreSQL). It is required after upgrading PixAV when
schema changes have been made. 'pixav start' also applies pending migrations
on boot; run this explicitly when you want schema changes separated from a
service restart.

Examples:
  # Run migrations with default config
  pixav migrate

  # Show which migrations have been applied without changing anything
  pixav migrate --status

  # Run migrations with custom config
  pixav migrate --config /etc/pixav/config.yaml`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show migration status without applying anything")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := context.Background()

	if migrateStatus {
		return printMigrationStatus(ctx, cmd, cfg)
	}

	logger.Info("Running database migrations", "type", cfg.Database.Type)

	// Open connects without migrating; Migrate applies the pending set.
	st, err := store.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = st.Close() }()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Verify the schema is usable before declaring success
	if _, err := st.CountTasksByState(ctx, models.TaskPending); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Printf("Migrations completed successfully (database type: %s)\n", cfg.Database.Type)
	return nil
}

func printMigrationStatus(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	st, err := store.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = st.Close() }()

	migrations, err := st.Migrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	table := output.NewTableData("MIGRATION", "STATUS", "APPLIED AT")
	for _, m := range migrations {
		status := "pending"
		appliedAt := "-"
		if m.Applied() {
			status = "applied"
			appliedAt = m.AppliedAt.Format(timeutil.LocalTimeFormat)
		}
		table.AddRow(m.Filename, status, appliedAt)
	}
	return cmdutil.PrintOutput(cmd.OutOrStdout(), migrations, len(migrations) == 0,
		"No migrations found.", table)
}
