package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studymeta/backend/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply embedded SQL migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := openPool(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	names, err := database.MigrationNames()
	if err != nil {
		return err
	}
	if err := database.Migrate(cmd.Context(), pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), "applied", n)
	}
	return nil
}
