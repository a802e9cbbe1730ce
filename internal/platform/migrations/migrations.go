// Package migrations applies the embedded schema for the supported SQL
// dialects.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Apply runs all pending up migrations for driver against db. It is a no-op
// when the schema is current.
func Apply(ctx context.Context, db *sql.DB, driver string) error {
	return run(ctx, db, driver, func(m *migrate.Migrate) error { return m.Up() })
}

// Rollback reverts the most recent migration.
func Rollback(ctx context.Context, db *sql.DB, driver string) error {
	return run(ctx, db, driver, func(m *migrate.Migrate) error { return m.Steps(-1) })
}

// Version reports the applied schema version and whether the last
// migration failed halfway.
func Version(ctx context.Context, db *sql.DB, driver string) (version uint, dirty bool, err error) {
	err = run(ctx, db, driver, func(m *migrate.Migrate) error {
		var verr error
		version, dirty, verr = m.Version()
		return verr
	})
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func run(ctx context.Context, db *sql.DB, driver string, step func(*migrate.Migrate) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := instance(db, driver)
	if err != nil {
		return err
	}
	src, err := iofs.New(files, driver)
	if err != nil {
		return fmt.Errorf("load %s migrations: %w", driver, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	// The sqlite driver closes the shared *sql.DB on Close; the postgres
	// driver only releases its dedicated connection.
	if driver == DriverPostgres {
		defer m.Close()
	} else {
		defer src.Close()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", driver, err)
	}
	return nil
}

func instance(db *sql.DB, driver string) (database.Driver, error) {
	switch driver {
	case DriverPostgres:
		return postgres.WithInstance(db, &postgres.Config{})
	case DriverSQLite:
		return sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported migration driver %q", driver)
	}
}
