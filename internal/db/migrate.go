package db

import (
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate runs all pending database migrations.
func (db *DB) Migrate() error {
	if err := db.setupGoose(); err != nil {
		return err
	}

	if err := goose.Up(db.sql, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// MigrationVersion returns the current schema version.
func (db *DB) MigrationVersion() (int64, error) {
	if err := db.setupGoose(); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db.sql)
}

func (db *DB) setupGoose() error {
	goose.SetBaseFS(migrations)

	dialect := "sqlite3"
	if db.driver == DriverPostgres {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return nil
}
