package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"realestate-ingest/utils"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: open embedded source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migrate: create postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate: create instance: %w", err)
	}
	return m, nil
}

// MigrateUp applies every pending schema migration.
func MigrateUp(db *sql.DB, logger *utils.Logger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("[migrate] No pending migrations")
			return nil
		}
		return fmt.Errorf("migrate: up: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("[migrate] Schema at version %d", version)
	return nil
}

// MigrateDown rolls back the given number of migrations (at least one).
func MigrateDown(db *sql.DB, steps int, logger *utils.Logger) error {
	if steps < 1 {
		steps = 1
	}
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("[migrate] Nothing to roll back")
			return nil
		}
		return fmt.Errorf("migrate: down %d: %w", steps, err)
	}
	logger.Info("[migrate] Rolled back %d migration(s)", steps)
	return nil
}
