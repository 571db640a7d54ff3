package mediastore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photos-network/photos-sync/internal/models"
)

var (
	jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	pngHeader  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R'}
)

func writeFile(t *testing.T, root, rel string, content []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func byFilename(photos []models.Photo) map[string]models.Photo {
	out := make(map[string]models.Photo, len(photos))
	for _, p := range photos {
		out[p.Filename] = p
	}
	return out
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "beach.jpg", jpegHeader)
	writeFile(t, root, "2024/summer/sunset.png", pngHeader)
	writeFile(t, root, "notes.txt", []byte("just some text"))
	writeFile(t, root, ".thumbnails/beach.jpg", jpegHeader)
	writeFile(t, root, ".hidden.jpg", jpegHeader)
	writeFile(t, root, ".private/me.jpg", jpegHeader)

	photos, err := NewDirStore(root, nil).Scan(context.Background())
	require.NoError(t, err)

	got := byFilename(photos)
	names := make([]string, 0, len(got))
	for n := range got {
		names = append(names, n)
	}
	sort.Strings(names)
	assert.Equal(t, []string{".private/me.jpg", "2024/summer/sunset.png", "beach.jpg"}, names)

	beach := got["beach.jpg"]
	assert.False(t, beach.IsPrivate)
	assert.Contains(t, beach.URI, "file://")
	assert.Contains(t, beach.URI, "beach.jpg")
	assert.Equal(t, beach.URI, beach.ImageURL)
	require.NotNil(t, beach.DateModified)
	assert.Equal(t, beach.DateAdded, *beach.DateModified)
	assert.Nil(t, beach.DateTaken)

	assert.True(t, got[".private/me.jpg"].IsPrivate)
}

func TestScan_EmptyRoot(t *testing.T) {
	photos, err := NewDirStore(t.TempDir(), nil).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, photos)
}

func TestScan_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.jpg", jpegHeader)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDirStore(root, nil).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckAccess(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, NewDirStore(root, nil).CheckAccess())

	assert.ErrorIs(t, NewDirStore(filepath.Join(root, "missing"), nil).CheckAccess(), ErrNotFound)

	file := filepath.Join(root, "file.jpg")
	require.NoError(t, os.WriteFile(file, jpegHeader, 0o644))
	assert.ErrorIs(t, NewDirStore(file, nil).CheckAccess(), ErrNotFound)
}

func TestCheckAccess_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	root := filepath.Join(t.TempDir(), "locked")
	require.NoError(t, os.Mkdir(root, 0o000))
	t.Cleanup(func() { _ = os.Chmod(root, 0o755) })

	assert.ErrorIs(t, NewDirStore(root, nil).CheckAccess(), ErrPermissionDenied)
}
