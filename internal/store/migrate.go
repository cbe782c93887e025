package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // postgres driver for database/sql
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"timehub_bot/internal/logging"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrations embed.FS

// openMigrationDB is overridable for tests.
var openMigrationDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}

// runMigrations is overridable for tests.
var runMigrations = func(db *sql.DB, logger *logrus.Entry) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(logger)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, migrationsDir)
}

// Migrate applies the embedded schema migrations to the database at dsn.
func Migrate(ctx context.Context, dsn string, logger *logrus.Entry) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	db, err := openMigrationDB(dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping migration connection: %w", err)
	}

	if err := runMigrations(db, logger.WithField("event", "migrate")); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
