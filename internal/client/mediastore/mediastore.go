// Package mediastore enumerates the photos available on this device.
package mediastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/photos-network/photos-sync/internal/models"
)

// privateDir marks everything below it as private.
const privateDir = ".private"

var (
	// ErrNotFound is returned when the media root does not exist or is not a directory.
	ErrNotFound = errors.New("media root not found")
	// ErrPermissionDenied is returned when the media root cannot be listed.
	ErrPermissionDenied = errors.New("media root not readable")
)

// DirStore exposes the image files below a directory as device media entries.
type DirStore struct {
	root string
	log  *zap.Logger
}

// NewDirStore returns a store rooted at root.
func NewDirStore(root string, log *zap.Logger) *DirStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &DirStore{root: root, log: log}
}

// Root returns the scanned directory.
func (d *DirStore) Root() string { return d.root }

// CheckAccess reports whether the root can be scanned.
func (d *DirStore) CheckAccess() error {
	info, err := os.Stat(d.root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, d.root)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, d.root)
	case err != nil:
		return fmt.Errorf("stat media root: %w", err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s is not a directory", ErrNotFound, d.root)
	}

	f, err := os.Open(d.root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return nil
}

// Scan walks the root and returns one entry per image file. Hidden directories
// other than the private one are skipped; unreadable subdirectories are logged and
// skipped.
func (d *DirStore) Scan(ctx context.Context) ([]models.Photo, error) {
	var photos []models.Photo

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == d.root {
				return err
			}
			d.log.Warn("skip unreadable media path", zap.String("path", path), zap.Error(err))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := entry.Name()
		if entry.IsDir() {
			if path != d.root && strings.HasPrefix(name, ".") && name != privateDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			return nil
		}

		photo, ok, err := d.entry(path, entry)
		if err != nil {
			d.log.Warn("skip media file", zap.String("path", path), zap.Error(err))
			return nil
		}
		if ok {
			photos = append(photos, photo)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan media root: %w", err)
	}
	return photos, nil
}

func (d *DirStore) entry(path string, entry fs.DirEntry) (models.Photo, bool, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return models.Photo{}, false, err
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return models.Photo{}, false, nil
	}

	info, err := entry.Info()
	if err != nil {
		return models.Photo{}, false, err
	}
	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		return models.Photo{}, false, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return models.Photo{}, false, err
	}

	uri := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	modified := info.ModTime().UTC()
	return models.Photo{
		Filename:     filepath.ToSlash(rel),
		ImageURL:     uri,
		DateAdded:    modified,
		DateModified: &modified,
		URI:          uri,
		IsPrivate:    isPrivate(rel),
	}, true, nil
}

func isPrivate(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == privateDir {
			return true
		}
	}
	return false
}
