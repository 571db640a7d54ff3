package photosync

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/photos-network/photos-sync/internal/client/mediastore"
	"github.com/photos-network/photos-sync/internal/db"
	"github.com/photos-network/photos-sync/internal/models"
	"github.com/photos-network/photos-sync/internal/repository"
)

type fakeSource struct {
	accessErr error
	photos    []models.Photo
	scanErr   error
	scanHook  func()
}

func (f *fakeSource) CheckAccess() error { return f.accessErr }

func (f *fakeSource) Scan(context.Context) ([]models.Photo, error) {
	if f.scanHook != nil {
		f.scanHook()
	}
	return f.photos, f.scanErr
}

type fakeStore struct {
	UpsertFunc        func(ctx context.Context, photos []models.Photo) (int, error)
	DeleteMissingFunc func(ctx context.Context, keep []string) (int64, error)
}

func (f *fakeStore) Upsert(ctx context.Context, photos []models.Photo) (int, error) {
	return f.UpsertFunc(ctx, photos)
}

func (f *fakeStore) DeleteMissing(ctx context.Context, keep []string) (int64, error) {
	return f.DeleteMissingFunc(ctx, keep)
}

func newSQLiteStore(t *testing.T) *repository.PhotoRepository {
	t.Helper()
	conn, err := db.InitSQLite(filepath.Join(t.TempDir(), "photos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return repository.NewPhotoRepository(conn, db.SQLite)
}

func TestRun_SkippedWithoutAccess(t *testing.T) {
	src := &fakeSource{accessErr: mediastore.ErrPermissionDenied}
	store := &fakeStore{}
	w := New(src, store, nil)

	res := w.Run(context.Background())
	assert.Equal(t, SyncSkipped, res.Outcome)
	assert.ErrorIs(t, res.Err, mediastore.ErrPermissionDenied)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, &res, w.LastResult())
}

func TestRun_ScanFailure(t *testing.T) {
	w := New(&fakeSource{scanErr: errors.New("io error")}, &fakeStore{}, nil)

	res := w.Run(context.Background())
	assert.Equal(t, SyncFailed, res.Outcome)
	assert.Equal(t, "io error", res.Reason)
}

func TestRun_StoreFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.ErrorLevel,
	)
	store := &fakeStore{UpsertFunc: func(context.Context, []models.Photo) (int, error) {
		return 0, errors.New("db fail")
	}}
	w := New(&fakeSource{photos: []models.Photo{{Filename: "a.jpg"}}}, store, zap.New(core))

	res := w.Run(context.Background())
	assert.Equal(t, SyncFailed, res.Outcome)
	assert.Equal(t, 1, res.Scanned)
	assert.True(t, strings.Contains(buf.String(), "photo sync failed"), "got %q", buf.String())
}

func TestRun_PruneOnlyWhenEnabled(t *testing.T) {
	var pruned []string
	store := &fakeStore{
		UpsertFunc: func(_ context.Context, photos []models.Photo) (int, error) { return len(photos), nil },
		DeleteMissingFunc: func(_ context.Context, keep []string) (int64, error) {
			pruned = keep
			return 4, nil
		},
	}
	src := &fakeSource{photos: []models.Photo{{Filename: "a.jpg"}, {Filename: "b.jpg"}}}

	res := New(src, store, nil).Run(context.Background())
	assert.Equal(t, SyncSucceeded, res.Outcome)
	assert.Nil(t, pruned, "additive by default")

	res = New(src, store, nil, WithPrune(true)).Run(context.Background())
	assert.Equal(t, SyncSucceeded, res.Outcome)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, pruned)
	assert.EqualValues(t, 4, res.Removed)
}

func TestRun_SecondConcurrentRunSkipped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	src := &fakeSource{scanHook: func() {
		close(entered)
		<-release
	}}
	store := &fakeStore{UpsertFunc: func(context.Context, []models.Photo) (int, error) { return 0, nil }}
	w := New(src, store, nil)

	done := make(chan Result)
	go func() { done <- w.Run(context.Background()) }()
	<-entered

	second := w.Run(context.Background())
	assert.Equal(t, SyncSkipped, second.Outcome)
	assert.ErrorIs(t, second.Err, ErrAlreadyRunning)

	close(release)
	assert.Equal(t, SyncSucceeded, (<-done).Outcome)
}

func TestRun_EmptyDeviceEmptyTable(t *testing.T) {
	store := newSQLiteStore(t)
	w := New(mediastore.NewDirStore(t.TempDir(), nil), store, nil)

	res := w.Run(context.Background())
	assert.Equal(t, SyncSucceeded, res.Outcome)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun_MissingMediaRootSkipped(t *testing.T) {
	store := newSQLiteStore(t)
	w := New(mediastore.NewDirStore(filepath.Join(t.TempDir(), "nope"), nil), store, nil)

	assert.Equal(t, SyncSkipped, w.Run(context.Background()).Outcome)
}

func TestRun_Idempotent(t *testing.T) {
	root := t.TempDir()
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	for _, name := range []string{"a.jpg", "b.jpg", "album/c.jpg"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, jpeg, 0o644))
	}

	store := newSQLiteStore(t)
	w := New(mediastore.NewDirStore(root, nil), store, nil)
	ctx := context.Background()

	first := w.Run(ctx)
	require.Equal(t, SyncSucceeded, first.Outcome)
	n1, err := store.Count(ctx)
	require.NoError(t, err)

	second := w.Run(ctx)
	require.Equal(t, SyncSucceeded, second.Outcome)
	n2, err := store.Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, n1)
	assert.Equal(t, n1, n2)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_AdditiveKeepsRemovedFiles(t *testing.T) {
	root := t.TempDir()
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0}
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.jpg"), jpeg, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.jpg"), jpeg, 0o644))

	store := newSQLiteStore(t)
	ctx := context.Background()
	require.Equal(t, SyncSucceeded, New(mediastore.NewDirStore(root, nil), store, nil).Run(ctx).Outcome)

	require.NoError(t, os.Remove(filepath.Join(root, "b.jpg")))
	require.Equal(t, SyncSucceeded, New(mediastore.NewDirStore(root, nil), store, nil).Run(ctx).Outcome)
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res := New(mediastore.NewDirStore(root, nil), store, nil, WithPrune(true)).Run(ctx)
	require.Equal(t, SyncSucceeded, res.Outcome)
	assert.EqualValues(t, 1, res.Removed)
}

func TestStart_RunsPeriodically(t *testing.T) {
	var runs atomic.Int32
	store := &fakeStore{UpsertFunc: func(context.Context, []models.Photo) (int, error) {
		runs.Add(1)
		return 0, nil
	}}
	w := New(&fakeSource{}, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestOutcome_MarshalText(t *testing.T) {
	b, err := SyncSkipped.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "skipped", string(b))
}
