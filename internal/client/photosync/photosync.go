// Package photosync reconciles the device media store into the local photo index.
package photosync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photos-network/photos-sync/internal/models"
)

// Outcome is the tri-state result of one run.
type Outcome int

const (
	// SyncSucceeded means every scanned entry was written.
	SyncSucceeded Outcome = iota
	// SyncFailed means the scan or a database write failed; nothing is reported per item.
	SyncFailed
	// SyncSkipped means preconditions were not met and nothing was attempted.
	SyncSkipped
)

func (o Outcome) String() string {
	switch o {
	case SyncSucceeded:
		return "succeeded"
	case SyncFailed:
		return "failed"
	case SyncSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText lets Outcome appear by name in JSON.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ErrAlreadyRunning is the skip reason when a run is already in progress.
var ErrAlreadyRunning = errors.New("sync already running")

// MediaSource enumerates the device photos.
type MediaSource interface {
	// CheckAccess returns an error when the source cannot be scanned.
	CheckAccess() error
	Scan(ctx context.Context) ([]models.Photo, error)
}

// PhotoStore is the local index written by the worker.
type PhotoStore interface {
	Upsert(ctx context.Context, photos []models.Photo) (int, error)
	DeleteMissing(ctx context.Context, keep []string) (int64, error)
}

// Result describes one run.
type Result struct {
	RunID    string        `json:"run_id"`
	Outcome  Outcome       `json:"outcome"`
	Scanned  int           `json:"scanned"`
	Upserted int           `json:"upserted"`
	Removed  int64         `json:"removed"`
	Duration time.Duration `json:"duration"`
	// Reason explains a skip or failure.
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// Worker runs one reconciliation at a time.
type Worker struct {
	source MediaSource
	store  PhotoStore
	// prune removes index rows whose file is no longer on the device. Off by
	// default: sync only adds and replaces.
	prune bool
	log   *zap.Logger

	running atomic.Bool
	last    atomic.Pointer[Result]
}

// Option configures a Worker.
type Option func(*Worker)

// WithPrune enables removal of rows missing from the scan.
func WithPrune(prune bool) Option {
	return func(w *Worker) { w.prune = prune }
}

// New builds a Worker.
func New(source MediaSource, store PhotoStore, log *zap.Logger, opts ...Option) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Worker{source: source, store: store, log: log}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run performs one reconciliation. A run started while another is in progress
// is skipped.
func (w *Worker) Run(ctx context.Context) Result {
	start := time.Now()
	res := Result{RunID: uuid.NewString()}
	log := w.log.With(zap.String("run_id", res.RunID))

	finish := func(o Outcome, err error) Result {
		res.Outcome = o
		res.Duration = time.Since(start)
		if err != nil {
			res.Err = err
			res.Reason = err.Error()
		}
		switch o {
		case SyncSucceeded:
			log.Info("photo sync finished",
				zap.Int("scanned", res.Scanned), zap.Int("upserted", res.Upserted),
				zap.Int64("removed", res.Removed), zap.Duration("took", res.Duration))
		case SyncSkipped:
			log.Info("photo sync skipped", zap.String("reason", res.Reason))
		default:
			log.Error("photo sync failed", zap.Error(err))
		}
		if !errors.Is(err, ErrAlreadyRunning) {
			w.last.Store(&res)
		}
		return res
	}

	if !w.running.CompareAndSwap(false, true) {
		return finish(SyncSkipped, ErrAlreadyRunning)
	}
	defer w.running.Store(false)

	if err := w.source.CheckAccess(); err != nil {
		return finish(SyncSkipped, err)
	}

	photos, err := w.source.Scan(ctx)
	if err != nil {
		return finish(SyncFailed, err)
	}
	res.Scanned = len(photos)

	n, err := w.store.Upsert(ctx, photos)
	if err != nil {
		return finish(SyncFailed, err)
	}
	res.Upserted = n

	if w.prune {
		keep := make([]string, 0, len(photos))
		for _, p := range photos {
			keep = append(keep, p.Filename)
		}
		removed, err := w.store.DeleteMissing(ctx, keep)
		if err != nil {
			return finish(SyncFailed, err)
		}
		res.Removed = removed
	}

	return finish(SyncSucceeded, nil)
}

// LastResult returns the outcome of the most recent run, or nil.
func (w *Worker) LastResult() *Result {
	return w.last.Load()
}

// Start runs the worker once immediately and then every interval until ctx is done.
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		w.Run(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Run(ctx)
			}
		}
	}()
}
