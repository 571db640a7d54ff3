package http

import (
	"net/http"
	"strings"

	"github.com/photos-network/photos-sync/internal/models"
)

// SettingsService defines the settings operations required by SettingsHandler.
type SettingsService interface {
	Current() models.Settings
	UpdateHost(host string) (models.Settings, error)
	UpdateClientID(clientID string) (models.Settings, error)
	UpdateClientSecret(secret string) (models.Settings, error)
	TogglePrivacy() (models.Settings, error)
	DeleteSettings() error
}

// SettingsHandler serves /api/settings.
type SettingsHandler struct {
	Settings SettingsService
}

// settingsView is Settings without the client secret.
type settingsView struct {
	Host            string              `json:"host"`
	ClientID        string              `json:"client_id"`
	HasClientSecret bool                `json:"has_client_secret"`
	PrivacyState    models.PrivacyState `json:"privacy_state"`
}

func viewSettings(s models.Settings) settingsView {
	return settingsView{
		Host:            s.Host,
		ClientID:        s.ClientID,
		HasClientSecret: s.ClientSecret != "",
		PrivacyState:    s.PrivacyState,
	}
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewSettings(h.Settings.Current()))
}

// UpdateHost handles PUT /api/settings/host with body {"value": "https://..."}.
func (h *SettingsHandler) UpdateHost(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(v string) (models.Settings, error) {
		return h.Settings.UpdateHost(strings.TrimSuffix(v, "/"))
	})
}

// UpdateClientID handles PUT /api/settings/client-id.
func (h *SettingsHandler) UpdateClientID(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.Settings.UpdateClientID)
}

// UpdateClientSecret handles PUT /api/settings/client-secret.
func (h *SettingsHandler) UpdateClientSecret(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.Settings.UpdateClientSecret)
}

// TogglePrivacy handles POST /api/settings/privacy/toggle.
func (h *SettingsHandler) TogglePrivacy(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settings.TogglePrivacy()
	if err != nil {
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, viewSettings(s))
}

// Delete handles DELETE /api/settings.
func (h *SettingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Settings.DeleteSettings(); err != nil {
		http.Error(w, "failed to delete settings", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request, apply func(string) (models.Settings, error)) {
	var req struct {
		Value string `json:"value"`
	}
	if !decodeJSON(r, &req) {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	s, err := apply(req.Value)
	if err != nil {
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, viewSettings(s))
}
