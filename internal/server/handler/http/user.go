package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/photos-network/photos-sync/internal/client/api"
	"github.com/photos-network/photos-sync/internal/models"
	"github.com/photos-network/photos-sync/internal/repository"
	"github.com/photos-network/photos-sync/internal/service"
)

// AuthService defines the sign-in operations required by UserHandler.
type AuthService interface {
	AuthorizeURL(state string) (string, string, error)
	SignIn(ctx context.Context, code string) (*models.User, error)
	CurrentUser(ctx context.Context) (*models.User, error)
	SignOut(ctx context.Context) error
}

// UserHandler serves /api/user.
type UserHandler struct {
	AuthService AuthService
}

// userView is User without its tokens.
type userView struct {
	ID              string `json:"id"`
	Lastname        string `json:"lastname"`
	Firstname       string `json:"firstname"`
	ProfileImageURL string `json:"profile_image_url"`
}

func viewUser(u *models.User) userView {
	return userView{ID: u.ID, Lastname: u.Lastname, Firstname: u.Firstname, ProfileImageURL: u.ProfileImageURL}
}

// Get handles GET /api/user.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.AuthService.CurrentUser(r.Context())
	if err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewUser(u))
}

// AuthorizeURL handles GET /api/user/authorize-url?state=...
func (h *UserHandler) AuthorizeURL(w http.ResponseWriter, r *http.Request) {
	u, state, err := h.AuthService.AuthorizeURL(r.URL.Query().Get("state"))
	if err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u, "state": state})
}

// Authorize handles POST /api/user/authorize with body {"code": "..."}.
func (h *UserHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(r, &req) || req.Code == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	u, err := h.AuthService.SignIn(r.Context(), req.Code)
	if err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewUser(u))
}

// Logout handles POST /api/user/logout.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.AuthService.SignOut(r.Context()); err != nil {
		http.Error(w, "failed to sign out", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotSignedIn), errors.Is(err, api.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, repository.ErrNotConfigured), errors.Is(err, api.ErrNoHost):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
