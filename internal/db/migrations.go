package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrSchemaTooNew is returned when the database was migrated by a newer build.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

// Migration moves the schema from Version-1 to Version.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx, d Dialect) error
}

var defaultMigrations = []Migration{
	{
		Version:     1,
		Description: "create photos table",
		Up: func(tx *sql.Tx, _ Dialect) error {
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS photos (
				filename TEXT PRIMARY KEY,
				image_url TEXT NOT NULL,
				date_taken BIGINT,
				thumbnail_file_uri TEXT,
				original_file_uri TEXT
			)`)
			return err
		},
	},
	{
		Version:     2,
		Description: "add date_added, date_modified and is_private",
		Up: func(tx *sql.Tx, d Dialect) error {
			statements := []string{
				`ALTER TABLE photos ADD COLUMN date_added BIGINT NOT NULL DEFAULT 0`,
				`ALTER TABLE photos ADD COLUMN date_modified BIGINT`,
				`ALTER TABLE photos ADD COLUMN is_private BOOLEAN NOT NULL DEFAULT FALSE`,
			}
			for _, stmt := range statements {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			// rows from v1 have no insertion time; stamp them with the migration time
			_, err := tx.Exec(`UPDATE photos SET date_added = `+d.Placeholder(1), time.Now().UnixMilli())
			return err
		},
	},
}

// DefaultMigrations returns a copy of the built-in migrations.
func DefaultMigrations() []Migration {
	out := make([]Migration, len(defaultMigrations))
	copy(out, defaultMigrations)
	return out
}

// CurrentSchemaVersion is the version the built-in migrations end at.
func CurrentSchemaVersion() int {
	return maxMigrationVersion(defaultMigrations)
}

// RunMigrations applies every migration newer than the recorded schema version,
// each in its own transaction.
func RunMigrations(db *sql.DB, d Dialect, migrations []Migration) error {
	if db == nil {
		return fmt.Errorf("run migrations: db is nil")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at BIGINT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if maxVersion := maxMigrationVersion(ordered); current > maxVersion {
		return fmt.Errorf("%w: db=%d code=%d", ErrSchemaTooNew, current, maxVersion)
	}

	for _, m := range ordered {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.Version, err)
		}
		if err := m.Up(tx, d); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration v%d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, applied_at) VALUES (`+d.Placeholder(1)+`, `+d.Placeholder(2)+`)`,
			m.Version, time.Now().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, 0 for a fresh database.
func SchemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func maxMigrationVersion(migrations []Migration) int {
	maxVersion := 0
	for _, m := range migrations {
		if m.Version > maxVersion {
			maxVersion = m.Version
		}
	}
	return maxVersion
}
