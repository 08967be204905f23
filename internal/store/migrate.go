/**
 * @description
 * Schema migration runner. Applies the embedded SQL migrations against the
 * configured database before the pool starts serving requests.
 *
 * @dependencies
 * - github.com/golang-migrate/migrate/v4: Migration engine (iofs source,
 *   postgres driver).
 */

package store

import (
	"fmt"
	"io/fs"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// RunMigrations applies every pending migration from migrationsFS. A database
// that is already current is not an error.
func RunMigrations(databaseURL string, migrationsFS fs.FS) error {
	source, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Printf("level=info component=store msg=\"migrations applied\" version=%d dirty=%t", version, dirty)
	return nil
}
