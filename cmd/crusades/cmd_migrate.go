package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/vvvdotnet/crusades/internal/app/storage/sqlstore"
	"github.com/vvvdotnet/crusades/internal/config"
	"github.com/vvvdotnet/crusades/internal/platform/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long: `Manage the SQL schema for STORE_DRIVER=postgres or sqlite.

Available subcommands:
  up      - Apply all pending migrations
  down    - Roll back the most recent migration
  version - Print the current schema version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: withDatabase(func(cmd *cobra.Command, db *sqlx.DB, driver string) error {
		if err := migrations.Apply(cmd.Context(), db.DB, driver); err != nil {
			return err
		}
		return printVersion(cmd, db, driver)
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: withDatabase(func(cmd *cobra.Command, db *sqlx.DB, driver string) error {
		if err := migrations.Rollback(cmd.Context(), db.DB, driver); err != nil {
			return err
		}
		return printVersion(cmd, db, driver)
	}),
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE:  withDatabase(printVersion),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}

func printVersion(cmd *cobra.Command, db *sqlx.DB, driver string) error {
	version, dirty, err := migrations.Version(cmd.Context(), db.DB, driver)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
	return nil
}

// withDatabase opens the configured SQL store without migrating it.
func withDatabase(fn func(*cobra.Command, *sqlx.DB, string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Store.Driver == config.StoreMemory {
			return fmt.Errorf("STORE_DRIVER=memory has no schema to migrate")
		}
		db, err := sqlstore.Open(cmd.Context(), cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(cmd, db, cfg.Store.Driver)
	}
}
