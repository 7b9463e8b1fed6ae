package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bealive/bealive-api/internal/app/runtime"
	"github.com/bealive/bealive-api/internal/platform/migrations"
)

var (
	// Migrate flags
	dbURL  string
	dryRun bool
)

// migrateCmd applies the embedded schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the embedded SQL migrations to the Postgres database. Every migration is
idempotent, so running the command repeatedly is safe.

Examples:
  bealive-api migrate --db postgres://localhost/bealive?sslmode=disable
  bealive-api migrate --dry-run          # list migrations without applying`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&dbURL, "db", "", "Database connection URL (overrides DATABASE_URL)")
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List migrations without applying them")
}

func runMigrate(cmd *cobra.Command) error {
	names, err := migrations.Names()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if dryRun {
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	if dbURL != "" {
		cfg.Database.DSN = dbURL
	}
	db, err := runtime.OpenDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := migrations.Apply(ctx, db); err != nil {
		return err
	}
	fmt.Fprintf(out, "applied %d migrations\n", len(names))
	return nil
}
