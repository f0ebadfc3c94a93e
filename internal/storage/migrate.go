package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

var migrationDrivers = map[Dialect]func(*sql.DB) (database.Driver, error){
	SQLite: func(db *sql.DB) (database.Driver, error) {
		return sqlite.WithInstance(db, &sqlite.Config{})
	},
	Postgres: func(db *sql.DB) (database.Driver, error) {
		return migratepgx.WithInstance(db, &migratepgx.Config{})
	},
}

// RunMigrations brings the schema for dialect up to date from the embedded
// migrations/<dialect> directory. It uses a dedicated connection since closing
// the migrator closes the database it was given.
func RunMigrations(dialect Dialect, dsn string) error {
	newDriver, ok := migrationDrivers[dialect]
	if !ok {
		return fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return fmt.Errorf("migrations: open: %w", err)
	}
	defer db.Close()

	driver, err := newDriver(db)
	if err != nil {
		return fmt.Errorf("migrations: %s driver: %w", dialect, err)
	}
	src, err := iofs.New(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("migrations: source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}
