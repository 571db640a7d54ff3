// Package db opens the local photo database and keeps its schema current.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects driver-specific SQL.
type Dialect int

const (
	// SQLite is the default embedded database.
	SQLite Dialect = iota
	// Postgres lets several devices share one index.
	Postgres
)

// Placeholder returns the bind parameter for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// ParseDialect maps a driver name from configuration to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	default:
		return SQLite, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Open connects to the database named by driver and dsn and applies migrations.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, SQLite, err
	}
	var db *sql.DB
	if dialect == Postgres {
		db, err = InitPostgres(dsn)
	} else {
		db, err = InitSQLite(dsn)
	}
	if err != nil {
		return nil, dialect, err
	}
	return db, dialect, nil
}

// InitSQLite opens (creating if needed) the sqlite file at path.
func InitSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("open sqlite: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("open sqlite: create parent dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serializes writers anyway; one connection avoids SQLITE_BUSY between them
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode=WAL`, `PRAGMA busy_timeout=5000`} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure sqlite (%s): %w", pragma, err)
		}
	}

	if err := RunMigrations(db, SQLite, DefaultMigrations()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// InitPostgres connects to dsn and applies migrations.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := RunMigrations(db, Postgres, DefaultMigrations()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
