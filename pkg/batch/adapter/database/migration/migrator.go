// Package migration applies embedded SQL migrations to the application
// database at startup.
package migration

import (
	"database/sql"
	"errors"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

const moduleName = "migration"

// Migrator runs the migrations found under dir in fsys against one
// database connection. The directory layout is one subtree per database
// type, so dir is typically "migrations/postgres".
type Migrator struct {
	conn adapter.DBConnection
	fsys fs.FS
	dir  string
}

// NewMigrator builds a migrator for conn.
func NewMigrator(conn adapter.DBConnection, fsys fs.FS, dir string) *Migrator {
	return &Migrator{conn: conn, fsys: fsys, dir: dir}
}

// Up applies all pending migrations. An already-current schema is not an
// error.
func (m *Migrator) Up() error {
	db, err := m.conn.GetSQLDB()
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to obtain sql.DB for migration", err, false, false)
	}

	driver, err := m.databaseDriver(db)
	if err != nil {
		return err
	}

	src, err := iofs.New(m.fsys, m.dir)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to open embedded migration source", err, false, false)
	}

	mg, err := migrate.NewWithInstance("iofs", src, m.conn.Type(), driver)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to initialize migrator", err, false, false)
	}

	if err := mg.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Infof("database schema is up to date (connection '%s')", m.conn.Name())
			return nil
		}
		return exception.NewBatchError(moduleName, "failed to apply migrations", err, false, false)
	}
	logger.Infof("database migrations applied (connection '%s')", m.conn.Name())
	return nil
}

func (m *Migrator) databaseDriver(db *sql.DB) (database.Driver, error) {
	switch m.conn.Type() {
	case "postgres", "redshift":
		driver, err := migratepostgres.WithInstance(db, &migratepostgres.Config{MigrationsTable: "schema_migrations"})
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to create postgres migration driver", err, false, false)
		}
		return driver, nil
	case "mysql":
		driver, err := migratemysql.WithInstance(db, &migratemysql.Config{MigrationsTable: "schema_migrations"})
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to create mysql migration driver", err, false, false)
		}
		return driver, nil
	case "sqlite":
		driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: "schema_migrations"})
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to create sqlite migration driver", err, false, false)
		}
		return driver, nil
	default:
		return nil, exception.NewBatchErrorf(moduleName, "unsupported database type for migration: %s", m.conn.Type())
	}
}
