package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/photos-network/photos-sync/internal/models"
)

// SettingsStore is the durable home of the settings document.
type SettingsStore interface {
	// Load returns the stored settings and whether any were found.
	Load() (models.Settings, bool)
	// Save replaces the stored settings.
	Save(models.Settings) error
	// Delete removes the stored settings.
	Delete() error
}

// SettingsRepository serves the settings document from memory, loading it from
// the store on first use.
//
// Mutations read the cache, derive a new value and write it back without holding
// a lock across the three steps: two concurrent mutations may both start from the
// same value and the later write wins.
type SettingsRepository struct {
	store SettingsStore
	cache *Cache[models.Settings]
	log   *zap.Logger

	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// NewSettingsRepository builds the repository. A nil cache gets a fresh one.
func NewSettingsRepository(store SettingsStore, cache *Cache[models.Settings], log *zap.Logger) *SettingsRepository {
	if cache == nil {
		cache = NewCache[models.Settings]()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SettingsRepository{
		store: store,
		cache: cache,
		log:   log,
		subs:  make(map[chan struct{}]struct{}),
	}
}

// Current returns the cached settings, loading them on first access. Missing or
// unreadable documents yield DefaultSettings.
func (r *SettingsRepository) Current() models.Settings {
	if s := r.cache.Get(); s != nil {
		return *s
	}
	s, ok := r.store.Load()
	if !ok {
		s = models.DefaultSettings()
	}
	return *r.cache.SetIfEmpty(&s)
}

// Host returns the configured server URL.
func (r *SettingsRepository) Host() string {
	return r.Current().Host
}

// UpdateHost replaces the server URL.
func (r *SettingsRepository) UpdateHost(host string) (models.Settings, error) {
	return r.update("host", func(s models.Settings) models.Settings { return s.WithHost(host) })
}

// UpdateClientID replaces the OAuth client id.
func (r *SettingsRepository) UpdateClientID(clientID string) (models.Settings, error) {
	return r.update("client_id", func(s models.Settings) models.Settings { return s.WithClientID(clientID) })
}

// UpdateClientSecret replaces the OAuth client secret.
func (r *SettingsRepository) UpdateClientSecret(secret string) (models.Settings, error) {
	return r.update("client_secret", func(s models.Settings) models.Settings { return s.WithClientSecret(secret) })
}

// TogglePrivacy flips the privacy state.
func (r *SettingsRepository) TogglePrivacy() (models.Settings, error) {
	return r.update("privacy_state", func(s models.Settings) models.Settings { return s.WithPrivacyToggled() })
}

// Replace stores a complete settings document.
func (r *SettingsRepository) Replace(s models.Settings) (models.Settings, error) {
	return r.update("all", func(models.Settings) models.Settings { return s })
}

func (r *SettingsRepository) update(field string, change func(models.Settings) models.Settings) (models.Settings, error) {
	next := change(r.Current())
	r.cache.Set(&next)
	if err := r.store.Save(next); err != nil {
		return next, fmt.Errorf("save settings: %w", err)
	}
	r.log.Info("settings updated", zap.String("field", field))
	r.notify()
	return next, nil
}

// DeleteSettings clears the cache and the stored document.
func (r *SettingsRepository) DeleteSettings() error {
	r.cache.Clear()
	if err := r.store.Delete(); err != nil {
		return fmt.Errorf("delete settings: %w", err)
	}
	r.log.Info("settings deleted")
	r.notify()
	return nil
}

// Watch emits the current settings right away, then every interval and after
// every write through this repository. The channel is closed once ctx is done.
func (r *SettingsRepository) Watch(ctx context.Context, interval time.Duration) <-chan models.Settings {
	out := make(chan models.Settings)
	changed := r.subscribe()

	go func() {
		defer close(out)
		defer r.unsubscribe(changed)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case out <- r.Current():
			case <-ctx.Done():
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-changed:
			}
		}
	}()
	return out
}

func (r *SettingsRepository) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

func (r *SettingsRepository) unsubscribe(ch chan struct{}) {
	r.mu.Lock()
	delete(r.subs, ch)
	r.mu.Unlock()
}

func (r *SettingsRepository) notify() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
