package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/photos-network/photos-sync/internal/client/api"
	"github.com/photos-network/photos-sync/internal/models"
	"github.com/photos-network/photos-sync/internal/repository"
)

const defaultPageSize = 50

// PhotoService defines the photo reads required by PhotoHandler.
type PhotoService interface {
	List(ctx context.Context) ([]models.Photo, error)
	Get(ctx context.Context, filename string) (*models.Photo, error)
	RemoteList(ctx context.Context, offset, limit int) (*api.PhotoPage, error)
	RemoteGet(ctx context.Context, id string) (*models.RemotePhoto, error)
}

// PhotoHandler serves the local index and the signed-in user's server photos.
type PhotoHandler struct {
	PhotoService PhotoService
}

// List handles GET /api/photos.
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	photos, err := h.PhotoService.List(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, photos)
}

// Get handles GET /api/photos/{filename}.
func (h *PhotoHandler) Get(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "*")
	if filename == "" {
		http.Error(w, "missing filename", http.StatusBadRequest)
		return
	}
	p, err := h.PhotoService.Get(r.Context(), filename)
	switch {
	case errors.Is(err, repository.ErrPhotoNotFound):
		http.Error(w, "photo not found", http.StatusNotFound)
	case err != nil:
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

// RemoteList handles GET /api/remote/photos?offset=&limit=.
func (h *PhotoHandler) RemoteList(w http.ResponseWriter, r *http.Request) {
	offset, ok := queryInt(r, "offset", 0)
	if !ok {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}
	limit, ok := queryInt(r, "limit", defaultPageSize)
	if !ok || limit <= 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	page, err := h.PhotoService.RemoteList(r.Context(), offset, limit)
	if err != nil {
		writeRemoteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// RemoteGet handles GET /api/remote/photos/{id}.
func (h *PhotoHandler) RemoteGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.PhotoService.RemoteGet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRemoteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeRemoteError(w http.ResponseWriter, err error) {
	if errors.Is(err, api.ErrNotFound) {
		http.Error(w, "photo not found", http.StatusNotFound)
		return
	}
	writeUserError(w, err)
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
