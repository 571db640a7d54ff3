package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/photos-network/photos-sync/internal/db"
	"github.com/photos-network/photos-sync/internal/models"
)

// ErrPhotoNotFound is returned by Get for an unknown filename.
var ErrPhotoNotFound = errors.New("photo not found")

const photoColumns = `filename, image_url, date_added, date_taken, date_modified, original_file_uri, is_private`

// PhotoRepository implements the local photo index on top of database/sql.
type PhotoRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB      *sql.DB
	dialect db.Dialect
}

// NewPhotoRepository creates a PhotoRepository for a database opened by db.Open.
func NewPhotoRepository(conn *sql.DB, dialect db.Dialect) *PhotoRepository {
	return &PhotoRepository{DB: conn, dialect: dialect}
}

func (r *PhotoRepository) ph(n int) string { return r.dialect.Placeholder(n) }

// Upsert inserts each photo or replaces the row with the same filename, all in one
// transaction. It returns the number of rows written.
func (r *PhotoRepository) Upsert(ctx context.Context, photos []models.Photo) (int, error) {
	if len(photos) == 0 {
		return 0, nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO photos (` + photoColumns + `)
		VALUES (` + strings.Join([]string{r.ph(1), r.ph(2), r.ph(3), r.ph(4), r.ph(5), r.ph(6), r.ph(7)}, ", ") + `)
		ON CONFLICT (filename) DO UPDATE SET
			image_url = EXCLUDED.image_url,
			date_added = EXCLUDED.date_added,
			date_taken = EXCLUDED.date_taken,
			date_modified = EXCLUDED.date_modified,
			original_file_uri = EXCLUDED.original_file_uri,
			is_private = EXCLUDED.is_private`

	for _, p := range photos {
		if _, err := tx.ExecContext(ctx, query,
			p.Filename, p.ImageURL, p.DateAdded.UnixMilli(),
			nullMillis(p.DateTaken), nullMillis(p.DateModified), nullString(p.URI), p.IsPrivate,
		); err != nil {
			return 0, fmt.Errorf("upsert %s: %w", p.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(photos), nil
}

// List returns photos newest first. Private photos are left out unless includePrivate is set.
func (r *PhotoRepository) List(ctx context.Context, includePrivate bool) ([]models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos`
	if !includePrivate {
		query += ` WHERE is_private = FALSE`
	}
	query += ` ORDER BY date_added DESC, filename`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	photos := []models.Photo{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return photos, nil
}

// Get returns the photo stored under filename.
func (r *PhotoRepository) Get(ctx context.Context, filename string) (*models.Photo, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE filename = `+r.ph(1), filename)
	p, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPhotoNotFound
	}
	return p, err
}

// Count returns the number of rows in the index.
func (r *PhotoRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return n, nil
}

// DeleteMissing removes every row whose filename is not in keep.
func (r *PhotoRepository) DeleteMissing(ctx context.Context, keep []string) (int64, error) {
	if r.dialect == db.Postgres {
		res, err := r.DB.ExecContext(ctx, `DELETE FROM photos WHERE NOT (filename = ANY($1))`, pq.Array(keep))
		if err != nil {
			return 0, fmt.Errorf("delete missing photos: %w", err)
		}
		return res.RowsAffected()
	}

	keepSet := make(map[string]struct{}, len(keep))
	for _, f := range keep {
		keepSet[f] = struct{}{}
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT filename FROM photos`)
	if err != nil {
		return 0, fmt.Errorf("list filenames: %w", err)
	}
	var stale []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan: %w", err)
		}
		if _, ok := keepSet[f]; !ok {
			stale = append(stale, f)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("list filenames: %w", err)
	}

	var removed int64
	for _, f := range stale {
		res, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE filename = ?`, f)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", f, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return removed, nil
}

// Clear removes every row.
func (r *PhotoRepository) Clear(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM photos`); err != nil {
		return fmt.Errorf("clear photos: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*models.Photo, error) {
	var (
		p            models.Photo
		dateAdded    int64
		dateTaken    sql.NullInt64
		dateModified sql.NullInt64
		uri          sql.NullString
	)
	if err := row.Scan(&p.Filename, &p.ImageURL, &dateAdded, &dateTaken, &dateModified, &uri, &p.IsPrivate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}
	p.DateAdded = time.UnixMilli(dateAdded).UTC()
	p.DateTaken = fromNullMillis(dateTaken)
	p.DateModified = fromNullMillis(dateModified)
	p.URI = uri.String
	return &p, nil
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
