package db

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/mlearn/apiserver/config"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

//go:embed migrations/sqlite.sql
var sqliteSchema string

// MigrateUp applies every pending PostgreSQL migration.
func MigrateUp(cfg config.DatabaseConfig) error {
	migrator, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the given number of migrations, or all of them when steps <= 0.
func MigrateDown(cfg config.DatabaseConfig, steps int) error {
	migrator, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if steps > 0 {
		err = migrator.Steps(-steps)
	} else {
		err = migrator.Down()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate down failed: %w", err)
	}
	return nil
}

func newMigrator(cfg config.DatabaseConfig) (*migrate.Migrate, error) {
	if cfg.Driver != DriverPostgres && cfg.Driver != "" {
		return nil, fmt.Errorf("migrations are only supported for %s, got %q", DriverPostgres, cfg.Driver)
	}

	source, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return nil, fmt.Errorf("load migrations failed: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", source, PostgresURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("init migrator failed: %w", err)
	}
	return migrator, nil
}

func applySQLiteSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}
