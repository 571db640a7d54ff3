package service

import (
	"context"

	"github.com/photos-network/photos-sync/internal/client/api"
	"github.com/photos-network/photos-sync/internal/models"
	"github.com/photos-network/photos-sync/internal/repository"
)

// PhotoRepository defines the local index reads needed by PhotoService.
type PhotoRepository interface {
	List(ctx context.Context, includePrivate bool) ([]models.Photo, error)
	Get(ctx context.Context, filename string) (*models.Photo, error)
}

// RemotePhotos is the server photo API.
type RemotePhotos interface {
	ListPhotos(ctx context.Context, accessToken string, offset, limit int) (*api.PhotoPage, error)
	GetPhoto(ctx context.Context, accessToken, id string) (*models.RemotePhoto, error)
}

// CurrentUserProvider resolves the signed-in user.
type CurrentUserProvider interface {
	CurrentUser(ctx context.Context) *models.User
}

// PhotoService serves photos from the local index and the server.
// While privacy is ACTIVE private photos are hidden from both.
type PhotoService struct {
	photos   PhotoRepository
	remote   RemotePhotos
	users    CurrentUserProvider
	settings SettingsReader
}

// NewPhotoService constructs a PhotoService.
func NewPhotoService(photos PhotoRepository, remote RemotePhotos, users CurrentUserProvider, settings SettingsReader) *PhotoService {
	return &PhotoService{photos: photos, remote: remote, users: users, settings: settings}
}

func (s *PhotoService) showPrivate() bool {
	return s.settings.Current().PrivacyState != models.PrivacyActive
}

// List returns the local index, newest first.
func (s *PhotoService) List(ctx context.Context) ([]models.Photo, error) {
	return s.photos.List(ctx, s.showPrivate())
}

// Get returns one indexed photo. A private photo is reported as not found while privacy is active.
func (s *PhotoService) Get(ctx context.Context, filename string) (*models.Photo, error) {
	p, err := s.photos.Get(ctx, filename)
	if err != nil {
		return nil, err
	}
	if p.IsPrivate && !s.showPrivate() {
		return nil, repository.ErrPhotoNotFound
	}
	return p, nil
}

// RemoteList returns one page of the signed-in user's server photos.
func (s *PhotoService) RemoteList(ctx context.Context, offset, limit int) (*api.PhotoPage, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	page, err := s.remote.ListPhotos(ctx, token, offset, limit)
	if err != nil {
		return nil, err
	}
	if !s.showPrivate() {
		visible := make([]models.RemotePhoto, 0, len(page.Photos))
		for _, p := range page.Photos {
			if !p.IsPrivate {
				visible = append(visible, p)
			}
		}
		page.Photos = visible
	}
	return page, nil
}

// RemoteGet returns one server photo.
func (s *PhotoService) RemoteGet(ctx context.Context, id string) (*models.RemotePhoto, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.remote.GetPhoto(ctx, token, id)
	if err != nil {
		return nil, err
	}
	if p.IsPrivate && !s.showPrivate() {
		return nil, api.ErrNotFound
	}
	return p, nil
}

func (s *PhotoService) accessToken(ctx context.Context) (string, error) {
	u := s.users.CurrentUser(ctx)
	if u == nil || u.AccessToken == "" {
		return "", ErrNotSignedIn
	}
	return u.AccessToken, nil
}
