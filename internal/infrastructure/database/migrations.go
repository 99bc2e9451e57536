package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
)

// ErrNoMigrations is returned when MigrationsFS has not been registered.
var ErrNoMigrations = errors.New("database: no migrations registered")

// MigrationsFS holds the goose SQL migration files. The migrations package
// sets it from an embedded filesystem in its init function:
//
//	import _ "github.com/nerrad567/factory-data-core/migrations"
var MigrationsFS fs.FS

// MigrationsDir is the directory within MigrationsFS containing migration files.
var MigrationsDir = "."

// MigrationRecord describes one migration and whether it has been applied.
type MigrationRecord struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// provider builds a goose provider over the registered migration files.
//
// The provider borrows db.DB; it must not be closed, since goose closes the
// underlying *sql.DB on Provider.Close.
func (db *DB) provider() (*goose.Provider, error) {
	if MigrationsFS == nil {
		return nil, ErrNoMigrations
	}

	fsys, err := fs.Sub(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("opening migrations directory %q: %w", MigrationsDir, err)
	}

	p, err := goose.NewProvider(goose.DialectSQLite3, db.DB, fsys)
	if err != nil {
		return nil, fmt.Errorf("creating migration provider: %w", err)
	}
	return p, nil
}

// Migrate applies all pending migrations in version order and returns how
// many were applied.
//
// Each migration runs in its own transaction. If migration N fails the
// earlier ones stay committed, N is rolled back, and re-running Migrate
// after a fix continues from N.
func (db *DB) Migrate(ctx context.Context) (int, error) {
	p, err := db.provider()
	if err != nil {
		return 0, err
	}

	results, err := p.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("applying migrations: %w", err)
	}
	return len(results), nil
}

// MigrateDown rolls back the most recent migration. Rolling back with
// nothing applied is a no-op.
func (db *DB) MigrateDown(ctx context.Context) error {
	p, err := db.provider()
	if err != nil {
		return err
	}

	if _, err := p.Down(ctx); err != nil {
		if errors.Is(err, goose.ErrNoNextVersion) {
			return nil
		}
		return fmt.Errorf("rolling back migration: %w", err)
	}
	return nil
}

// GetMigrationStatus returns applied and pending migrations, oldest first.
func (db *DB) GetMigrationStatus(ctx context.Context) (applied, pending []MigrationRecord, err error) {
	p, err := db.provider()
	if err != nil {
		return nil, nil, err
	}

	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("reading migration status: %w", err)
	}

	for _, s := range statuses {
		rec := MigrationRecord{
			Version: s.Source.Version,
			Name:    filepath.Base(s.Source.Path),
		}
		if s.State == goose.StateApplied {
			rec.Applied = true
			rec.AppliedAt = s.AppliedAt
			applied = append(applied, rec)
		} else {
			pending = append(pending, rec)
		}
	}
	return applied, pending, nil
}
