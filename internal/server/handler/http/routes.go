// Package http provides HTTP routing and handlers for the local control API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/photos-network/photos-sync/internal/middleware"
)

// Handlers groups the handlers mounted by NewRouter.
type Handlers struct {
	Settings *SettingsHandler
	User     *UserHandler
	Photos   *PhotoHandler
	Sync     *SyncHandler
}

// NewRouter constructs the control API. Request logging runs first so every
// response, rejections included, carries a request id. JSON content-type
// enforcement and optional bearer-token auth follow. Every route is mounted
// under /api.
//
// Routes:
//
//	GET    /api/settings                → Settings.Get
//	PUT    /api/settings/host           → Settings.UpdateHost
//	PUT    /api/settings/client-id      → Settings.UpdateClientID
//	PUT    /api/settings/client-secret  → Settings.UpdateClientSecret
//	POST   /api/settings/privacy/toggle → Settings.TogglePrivacy
//	DELETE /api/settings                → Settings.Delete
//	GET    /api/user                    → User.Get
//	GET    /api/user/authorize-url      → User.AuthorizeURL
//	POST   /api/user/authorize          → User.Authorize
//	POST   /api/user/logout             → User.Logout
//	GET    /api/photos                  → Photos.List
//	GET    /api/photos/*                → Photos.Get
//	GET    /api/remote/photos           → Photos.RemoteList
//	GET    /api/remote/photos/{id}      → Photos.RemoteGet
//	POST   /api/sync                    → Sync.Run
//	GET    /api/sync                    → Sync.Last
func NewRouter(h Handlers, apiToken string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.TokenAuth(apiToken))

	r.Route("/api", func(r chi.Router) {
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.Settings.Get)
			r.Delete("/", h.Settings.Delete)
			r.Put("/host", h.Settings.UpdateHost)
			r.Put("/client-id", h.Settings.UpdateClientID)
			r.Put("/client-secret", h.Settings.UpdateClientSecret)
			r.Post("/privacy/toggle", h.Settings.TogglePrivacy)
		})

		r.Route("/user", func(r chi.Router) {
			r.Get("/", h.User.Get)
			r.Get("/authorize-url", h.User.AuthorizeURL)
			r.Post("/authorize", h.User.Authorize)
			r.Post("/logout", h.User.Logout)
		})

		r.Get("/photos", h.Photos.List)
		// filenames are paths relative to the media root and may contain slashes
		r.Get("/photos/*", h.Photos.Get)
		r.Get("/remote/photos", h.Photos.RemoteList)
		r.Get("/remote/photos/{id}", h.Photos.RemoteGet)

		r.Post("/sync", h.Sync.Run)
		r.Get("/sync", h.Sync.Last)
	})

	return r
}
