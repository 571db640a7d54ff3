package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photos-network/photos-sync/internal/client/api"
	"github.com/photos-network/photos-sync/internal/models"
)

type memUserStore struct {
	mu    sync.Mutex
	doc   *models.User
	loads int
}

func (m *memUserStore) Load() (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.doc == nil {
		return models.User{}, false
	}
	return *m.doc, true
}

func (m *memUserStore) Save(u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = &u
	return nil
}

func (m *memUserStore) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = nil
	return nil
}

// fakeUserAPI records calls and returns preconfigured results.
type fakeUserAPI struct {
	GetUserFunc      func(ctx context.Context, accessToken string) (*models.User, error)
	ExchangeCodeFunc func(ctx context.Context, creds api.Credentials, code string) (*api.Token, error)
	RevokeFunc       func(ctx context.Context, creds api.Credentials, token, hint string) error

	getUserCalls int
}

func (f *fakeUserAPI) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	f.getUserCalls++
	return f.GetUserFunc(ctx, accessToken)
}

func (f *fakeUserAPI) ExchangeCode(ctx context.Context, creds api.Credentials, code string) (*api.Token, error) {
	return f.ExchangeCodeFunc(ctx, creds, code)
}

func (f *fakeUserAPI) Revoke(ctx context.Context, creds api.Credentials, token, hint string) error {
	return f.RevokeFunc(ctx, creds, token, hint)
}

type staticSettings models.Settings

func (s staticSettings) Current() models.Settings { return models.Settings(s) }

var configured = staticSettings{Host: "https://photos.example.com", ClientID: "client", ClientSecret: "secret"}

func TestCurrentUser_NoSourcesYieldsNil(t *testing.T) {
	remote := &fakeUserAPI{}
	repo := NewUserRepository(&memUserStore{}, remote, configured, nil, "", nil)

	assert.Nil(t, repo.CurrentUser(context.Background()))
	assert.Equal(t, 0, remote.getUserCalls, "without a session there is nothing to authenticate with")
}

func TestCurrentUser_FromStorageThenCache(t *testing.T) {
	store := &memUserStore{doc: &models.User{ID: "u1", AccessToken: "at"}}
	repo := NewUserRepository(store, &fakeUserAPI{}, configured, nil, "", nil)

	first := repo.CurrentUser(context.Background())
	second := repo.CurrentUser(context.Background())

	require.NotNil(t, first)
	assert.Equal(t, "u1", first.ID)
	assert.Same(t, first, second, "second call must return the cached instance")
	assert.Equal(t, 1, store.loads)
}

func TestRequestAuthorization_Success(t *testing.T) {
	store := &memUserStore{}
	remote := &fakeUserAPI{
		ExchangeCodeFunc: func(_ context.Context, creds api.Credentials, code string) (*api.Token, error) {
			assert.Equal(t, "client-x", creds.ClientID)
			assert.Equal(t, "secret", creds.ClientSecret)
			assert.Equal(t, "photosapp://callback", creds.RedirectURL)
			assert.Equal(t, "code-1", code)
			return &api.Token{AccessToken: "at", RefreshToken: "rt"}, nil
		},
		GetUserFunc: func(_ context.Context, accessToken string) (*models.User, error) {
			assert.Equal(t, "at", accessToken)
			return &models.User{ID: "u1", Firstname: "Jane"}, nil
		},
	}
	repo := NewUserRepository(store, remote, configured, nil, "photosapp://callback", nil)

	u, err := repo.RequestAuthorization(context.Background(), "code-1", "client-x")
	require.NoError(t, err)
	assert.Equal(t, &models.User{ID: "u1", Firstname: "Jane", AccessToken: "at", RefreshToken: "rt"}, u)
	assert.Equal(t, *u, *store.doc)

	// no further remote round trip once cached
	again := repo.CurrentUser(context.Background())
	assert.Same(t, u, again)
	assert.Equal(t, 1, remote.getUserCalls)
}

func TestRequestAuthorization_NotConfigured(t *testing.T) {
	repo := NewUserRepository(&memUserStore{}, &fakeUserAPI{}, staticSettings{}, nil, "", nil)

	_, err := repo.RequestAuthorization(context.Background(), "code", "client")
	assert.ErrorIs(t, err, ErrNotConfigured)

	repo = NewUserRepository(&memUserStore{}, &fakeUserAPI{}, configured, nil, "", nil)
	_, err = repo.RequestAuthorization(context.Background(), "code", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRequestAuthorization_ExchangeFails(t *testing.T) {
	store := &memUserStore{doc: &models.User{ID: "old"}}
	remote := &fakeUserAPI{
		ExchangeCodeFunc: func(context.Context, api.Credentials, string) (*api.Token, error) {
			return nil, errors.New("invalid_grant")
		},
	}
	repo := NewUserRepository(store, remote, configured, nil, "", nil)

	_, err := repo.RequestAuthorization(context.Background(), "bad", "client")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.NotNil(t, store.doc, "a failed exchange leaves the signed-in user alone")
}

func TestRequestAuthorization_ProfileFailureRetriedOnNextAccess(t *testing.T) {
	store := &memUserStore{}
	fail := true
	remote := &fakeUserAPI{
		ExchangeCodeFunc: func(context.Context, api.Credentials, string) (*api.Token, error) {
			return &api.Token{AccessToken: "at"}, nil
		},
		GetUserFunc: func(context.Context, string) (*models.User, error) {
			if fail {
				return nil, api.ErrUnauthorized
			}
			return &models.User{ID: "u1"}, nil
		},
	}
	repo := NewUserRepository(store, remote, configured, nil, "", nil)

	_, err := repo.RequestAuthorization(context.Background(), "code", "client")
	require.Error(t, err)
	assert.Nil(t, store.doc)

	fail = false
	u := repo.CurrentUser(context.Background())
	require.NotNil(t, u)
	assert.Equal(t, "at", u.AccessToken)
	assert.Equal(t, 2, remote.getUserCalls)
}

func TestInvalidateAuthorization(t *testing.T) {
	store := &memUserStore{doc: &models.User{ID: "u1", AccessToken: "at", RefreshToken: "rt"}}
	var revoked, hint string
	remote := &fakeUserAPI{
		RevokeFunc: func(_ context.Context, creds api.Credentials, token, h string) error {
			assert.Equal(t, "client", creds.ClientID)
			revoked, hint = token, h
			return nil
		},
	}
	repo := NewUserRepository(store, remote, configured, nil, "", nil)
	require.NotNil(t, repo.CurrentUser(context.Background()))

	require.NoError(t, repo.InvalidateAuthorization(context.Background()))
	assert.Equal(t, "rt", revoked)
	assert.Equal(t, "refresh_token", hint)
	assert.Nil(t, store.doc)
	assert.Nil(t, repo.CurrentUser(context.Background()))
}

func TestInvalidateAuthorization_RevokeFailureStillSignsOut(t *testing.T) {
	store := &memUserStore{doc: &models.User{ID: "u1", AccessToken: "at"}}
	var hint string
	remote := &fakeUserAPI{
		RevokeFunc: func(_ context.Context, _ api.Credentials, _ string, h string) error {
			hint = h
			return errors.New("server down")
		},
	}
	repo := NewUserRepository(store, remote, configured, nil, "", nil)

	require.NoError(t, repo.InvalidateAuthorization(context.Background()))
	assert.Equal(t, "access_token", hint)
	assert.Nil(t, store.doc)
}

func TestInvalidateAuthorization_NoUser(t *testing.T) {
	remote := &fakeUserAPI{
		RevokeFunc: func(context.Context, api.Credentials, string, string) error {
			t.Fatal("nothing to revoke")
			return nil
		},
	}
	repo := NewUserRepository(&memUserStore{}, remote, configured, nil, "", nil)
	assert.NoError(t, repo.InvalidateAuthorization(context.Background()))
}

// gatedUserStore blocks its first Load until release is closed.
type gatedUserStore struct {
	memUserStore
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedUserStore) Load() (models.User, bool) {
	u, ok := g.memUserStore.Load()
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return u, ok
}

func TestCurrentUser_SlowColdReadKeepsFirstCachedInstance(t *testing.T) {
	store := &gatedUserStore{
		memUserStore: memUserStore{doc: &models.User{ID: "u1", AccessToken: "at"}},
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	repo := NewUserRepository(store, &fakeUserAPI{}, configured, nil, "", nil)

	slow := make(chan *models.User)
	go func() { slow <- repo.CurrentUser(context.Background()) }()
	<-store.entered

	fast := repo.CurrentUser(context.Background())
	close(store.release)

	assert.Same(t, fast, <-slow, "a late load must not replace the cached instance")
	assert.Same(t, fast, repo.CurrentUser(context.Background()))
}
