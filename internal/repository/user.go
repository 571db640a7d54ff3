package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/photos-network/photos-sync/internal/client/api"
	"github.com/photos-network/photos-sync/internal/models"
)

// ErrNotConfigured is returned when authorization is attempted before a server
// and client id are set.
var ErrNotConfigured = errors.New("server settings incomplete")

// UserStore is the durable home of the signed-in user.
type UserStore interface {
	Load() (models.User, bool)
	Save(models.User) error
	Delete() error
}

// UserAPI is the part of the Photos.network client the repository needs.
type UserAPI interface {
	GetUser(ctx context.Context, accessToken string) (*models.User, error)
	ExchangeCode(ctx context.Context, creds api.Credentials, code string) (*api.Token, error)
	Revoke(ctx context.Context, creds api.Credentials, token, hint string) error
}

// SettingsProvider yields the current connection settings.
type SettingsProvider interface {
	Current() models.Settings
}

// UserRepository resolves the signed-in user from cache, then the encrypted
// document, then the server.
type UserRepository struct {
	store       UserStore
	remote      UserAPI
	settings    SettingsProvider
	cache       *Cache[models.User]
	redirectURL string
	log         *zap.Logger

	// session holds tokens from an authorization whose profile fetch has not
	// succeeded yet; it is what the remote fallback authenticates with.
	mu      sync.Mutex
	session *api.Token
}

// NewUserRepository builds the repository. A nil cache gets a fresh one.
func NewUserRepository(
	store UserStore,
	remote UserAPI,
	settings SettingsProvider,
	cache *Cache[models.User],
	redirectURL string,
	log *zap.Logger,
) *UserRepository {
	if cache == nil {
		cache = NewCache[models.User]()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UserRepository{
		store:       store,
		remote:      remote,
		settings:    settings,
		cache:       cache,
		redirectURL: redirectURL,
		log:         log,
	}
}

// CurrentUser returns the signed-in user or nil. Successive calls return the same
// cached instance until the user is invalidated; callers must treat it as
// read-only and copy it before changing fields. A remote failure is logged and
// reported as no user; the pending session is kept for the next call.
func (r *UserRepository) CurrentUser(ctx context.Context) *models.User {
	if u := r.cache.Get(); u != nil {
		return u
	}
	if u, ok := r.store.Load(); ok {
		return r.cache.SetIfEmpty(&u)
	}

	tok := r.sessionToken()
	if tok == nil {
		return nil
	}
	u, err := r.remote.GetUser(ctx, tok.AccessToken)
	if err != nil {
		r.log.Warn("fetch user failed", zap.Error(err))
		return nil
	}
	u.AccessToken = tok.AccessToken
	u.RefreshToken = tok.RefreshToken

	cached := r.cache.SetIfEmpty(u)
	if cached != u {
		// another caller resolved the user first
		return cached
	}
	if err := r.store.Save(*u); err != nil {
		r.log.Error("persist user failed", zap.Error(err))
	}
	r.clearSession()
	return u
}

// RequestAuthorization exchanges an authorization code issued to clientID for
// tokens and resolves the user's profile with them.
func (r *UserRepository) RequestAuthorization(ctx context.Context, code, clientID string) (*models.User, error) {
	settings := r.settings.Current()
	if settings.Host == "" || clientID == "" {
		return nil, ErrNotConfigured
	}

	tok, err := r.remote.ExchangeCode(ctx, r.credentials(clientID, settings), code)
	if err != nil {
		return nil, fmt.Errorf("request authorization: %w", err)
	}

	r.mu.Lock()
	r.session = tok
	r.mu.Unlock()

	// a new session replaces whatever user was signed in before
	r.cache.Clear()
	if err := r.store.Delete(); err != nil {
		r.log.Warn("drop previous user failed", zap.Error(err))
	}

	u := r.CurrentUser(ctx)
	if u == nil {
		return nil, fmt.Errorf("request authorization: profile unavailable")
	}
	r.log.Info("user authorized", zap.String("user_id", u.ID))
	return u, nil
}

// InvalidateAuthorization revokes the session on the server and forgets the user
// locally. Local state is cleared even when revocation fails.
func (r *UserRepository) InvalidateAuthorization(ctx context.Context) error {
	settings := r.settings.Current()
	token, hint := "", ""
	if u := r.CurrentUser(ctx); u != nil {
		token, hint = u.RefreshToken, "refresh_token"
		if token == "" {
			token, hint = u.AccessToken, "access_token"
		}
	}

	if token != "" {
		if err := r.remote.Revoke(ctx, r.credentials(settings.ClientID, settings), token, hint); err != nil {
			r.log.Warn("revoke token failed", zap.Error(err))
		}
	}

	r.clearSession()
	r.cache.Clear()
	if err := r.store.Delete(); err != nil {
		return fmt.Errorf("invalidate authorization: %w", err)
	}
	r.log.Info("user signed out")
	return nil
}

func (r *UserRepository) credentials(clientID string, s models.Settings) api.Credentials {
	return api.Credentials{
		ClientID:     clientID,
		ClientSecret: s.ClientSecret,
		RedirectURL:  r.redirectURL,
	}
}

func (r *UserRepository) sessionToken() *api.Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *UserRepository) clearSession() {
	r.mu.Lock()
	r.session = nil
	r.mu.Unlock()
}
