package catalog

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"scanrecon/pkg/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateUp applies every pending schema migration.
func (c *Catalog) MigrateUp() error {
	m, err := c.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the shared database handle.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version and dirty state. It
// returns 0, false, nil on a database without migrations.
func (c *Catalog) SchemaVersion() (version uint, dirty bool, err error) {
	m, err := c.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (c *Catalog) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(c.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger on the package logger
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	logging.Debugf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool {
	return false
}
