package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ledger/internal/backend"
	"ledger/internal/log"
	"ledger/internal/storage/postgres"
	"ledger/internal/storage/sqlite"
)

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Bring the configured SQL store up to the latest schema.

The sqlite and postgres backends also migrate when they open, so this is
only needed to prepare a database ahead of a deploy.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.migrate()
		},
	}
}

func (a *app) migrate() error {
	kind := backend.BackendType(a.cfg.DataBackend)
	logger := a.logger.WithComponent(log.ComponentStorage)

	switch kind {
	case backend.SQLiteBackend:
		logger.Info("Running migrations", log.FieldOperation, log.OpMigrate, "backend", kind, "db_path", a.cfg.SQLiteDBPath)
		if err := os.MkdirAll(filepath.Dir(a.cfg.SQLiteDBPath), 0755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}
		if err := sqlite.RunMigrations(a.cfg.SQLiteDBPath); err != nil {
			return err
		}
	case backend.PostgresBackend:
		logger.Info("Running migrations", log.FieldOperation, log.OpMigrate, "backend", kind)
		if err := postgres.RunMigrations(a.cfg.PostgresURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("backend %q has no schema to migrate", kind)
	}

	logger.Info("Migrations complete", log.FieldOperation, log.OpMigrate)
	return nil
}
