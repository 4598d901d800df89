package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/sakif/permission-journal/internal/apperror"
)

// The migrations directory is the one and only schema definition. New
// versions add files there; Up applies whatever is missing on open.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateSchema brings db up to the latest schema version.
//
// The migrate instance is not closed: closing it would close db, which the
// store keeps using (and an in-memory database would vanish with it).
func migrateSchema(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	defer src.Close()

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// readSchemaVersion reports the applied migration version and whether the
// last migration left the schema dirty.
func readSchemaVersion(db *sql.DB) (uint, bool, error) {
	var (
		version int64
		dirty   bool
	)
	query := fmt.Sprintf("SELECT version, dirty FROM %s LIMIT 1", migratesqlite.DefaultMigrationsTable)
	err := db.QueryRow(query).Scan(&version, &dirty)
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return uint(version), dirty, nil
}

// schemaVersion returns the migration version the open store is at.
func (s *Store) schemaVersion() (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.readyLocked() {
		return 0, apperror.Unavailable("read schema version")
	}
	version, dirty, err := readSchemaVersion(s.db.DB)
	if err != nil {
		return 0, fmt.Errorf("sqlite: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("sqlite: schema version %d is dirty", version)
	}
	return version, nil
}
