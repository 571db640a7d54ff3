// Package service holds the use cases behind the control API, composed from
// the settings, user and photo repositories.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/photos-network/photos-sync/internal/client/api"
	"github.com/photos-network/photos-sync/internal/models"
)

// ErrNotSignedIn is returned when an operation needs a signed-in user and there is none.
var ErrNotSignedIn = errors.New("not signed in")

// SettingsReader exposes the current settings document.
type SettingsReader interface {
	Current() models.Settings
}

// UserRepository defines the user operations required by AuthService.
type UserRepository interface {
	// CurrentUser returns the signed-in user or nil.
	CurrentUser(ctx context.Context) *models.User
	// RequestAuthorization exchanges an authorization code and stores the resulting user.
	RequestAuthorization(ctx context.Context, code, clientID string) (*models.User, error)
	// InvalidateAuthorization signs the user out locally and on the server.
	InvalidateAuthorization(ctx context.Context) error
}

// AuthURLBuilder builds the server's authorization page URL.
type AuthURLBuilder interface {
	AuthCodeURL(creds api.Credentials, state string) (string, error)
}

// AuthService implements sign-in and sign-out on top of a UserRepository.
type AuthService struct {
	users       UserRepository
	settings    SettingsReader
	urls        AuthURLBuilder
	redirectURL string
}

// NewAuthService constructs an AuthService.
func NewAuthService(users UserRepository, settings SettingsReader, urls AuthURLBuilder, redirectURL string) *AuthService {
	return &AuthService{users: users, settings: settings, urls: urls, redirectURL: redirectURL}
}

// AuthorizeURL returns the URL the user opens to grant access, and the state
// value embedded in it. An empty state is replaced by a random one.
func (s *AuthService) AuthorizeURL(state string) (string, string, error) {
	if state == "" {
		state = uuid.NewString()
	}
	cur := s.settings.Current()
	u, err := s.urls.AuthCodeURL(api.Credentials{
		ClientID:     cur.ClientID,
		ClientSecret: cur.ClientSecret,
		RedirectURL:  s.redirectURL,
	}, state)
	if err != nil {
		return "", "", err
	}
	return u, state, nil
}

// SignIn completes the authorization-code flow with the configured client id.
func (s *AuthService) SignIn(ctx context.Context, code string) (*models.User, error) {
	return s.users.RequestAuthorization(ctx, code, s.settings.Current().ClientID)
}

// CurrentUser returns the signed-in user or ErrNotSignedIn.
func (s *AuthService) CurrentUser(ctx context.Context) (*models.User, error) {
	u := s.users.CurrentUser(ctx)
	if u == nil {
		return nil, ErrNotSignedIn
	}
	return u, nil
}

// SignOut revokes and forgets the signed-in user.
func (s *AuthService) SignOut(ctx context.Context) error {
	return s.users.InvalidateAuthorization(ctx)
}
