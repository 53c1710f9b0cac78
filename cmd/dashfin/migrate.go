package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dashfin/internal/database"
	"dashfin/internal/logger"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Bring the store's schema up to the latest version. Migrations are
embedded in the binary; running this on an up-to-date store is a no-op.`,
		RunE: runMigrate,
	}
	cmd.Flags().Bool("status", false, "print the current schema version without applying changes")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	statusOnly, _ := cmd.Flags().GetBool("status")
	log := logger.Default()

	if err := cfg.Validate(); err != nil {
		return err
	}
	db, err := database.Open(cfg.Store.URL, cfg.Store.Key)
	if err != nil {
		return err
	}
	defer db.Close()

	if !statusOnly {
		if err := db.Migrate(); err != nil {
			return err
		}
	}

	version, dirty, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	log.Info("schema_version", "version", version, "dirty", dirty, "dialect", string(db.Dialect()))
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, db.Dialect())
	if dirty {
		return fmt.Errorf("schema version %d is dirty; fix the failed migration by hand", version)
	}
	return nil
}
