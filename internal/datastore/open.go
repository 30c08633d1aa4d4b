package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/wolfman30/cartoncaps-assistant/migrations"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// OpenOptions selects and locates the relational store.
type OpenOptions struct {
	Driver string
	// Path is the sqlite file (or ":memory:").
	Path string
	// URL is the postgres connection string.
	URL string
	// Create allows sqlite to create a missing file. The API server leaves
	// this off so a missing file surfaces as ErrUnavailable.
	Create bool
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, opts OpenOptions) (*sql.DB, error) {
	switch opts.Driver {
	case "", DriverSQLite:
		return openSQLite(ctx, opts)
	case DriverPostgres, "postgres":
		if strings.TrimSpace(opts.URL) == "" {
			return nil, fmt.Errorf("datastore: database url is required for %s: %w", opts.Driver, ErrUnavailable)
		}
		db, err := sql.Open(DriverPostgres, opts.URL)
		if err != nil {
			return nil, fmt.Errorf("datastore: open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("datastore: ping postgres: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("datastore: unsupported driver %q", opts.Driver)
	}
}

func openSQLite(ctx context.Context, opts OpenOptions) (*sql.DB, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("datastore: sqlite path is required: %w", ErrUnavailable)
	}

	memory := path == ":memory:"
	if !memory && !opts.Create {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("datastore: database file not found at %s: %w", path, ErrUnavailable)
			}
			return nil, fmt.Errorf("datastore: stat database file: %w", err)
		}
	}

	mode := "rw"
	if opts.Create {
		mode = "rwc"
	}
	dsn := fmt.Sprintf("file:%s?mode=%s&_foreign_keys=on&_busy_timeout=5000", path, mode)
	if memory {
		dsn = "file::memory:?_foreign_keys=on"
	}

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("datastore: open sqlite: %w", err)
	}
	// Every connection to :memory: is a separate database.
	if memory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: ping sqlite: %w", err)
	}
	return db, nil
}

// NewMigrator builds a golang-migrate instance over an open database using the
// embedded migrations for the driver's dialect.
func NewMigrator(db *sql.DB, driver string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, migrations.Dir(driver))
	if err != nil {
		return nil, fmt.Errorf("datastore: migration source: %w", err)
	}

	switch driver {
	case "", DriverSQLite:
		dbDriver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("datastore: sqlite migration driver: %w", err)
		}
		return migrate.NewWithInstance("iofs", src, DriverSQLite, dbDriver)
	case DriverPostgres, "postgres":
		dbDriver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("datastore: postgres migration driver: %w", err)
		}
		return migrate.NewWithInstance("iofs", src, "pgx5", dbDriver)
	default:
		return nil, fmt.Errorf("datastore: unsupported driver %q", driver)
	}
}

// Migrate applies all pending up migrations. The database stays open.
func Migrate(db *sql.DB, driver string) error {
	m, err := NewMigrator(db, driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("datastore: migrate up: %w", err)
	}
	return nil
}
