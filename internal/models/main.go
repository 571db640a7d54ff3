// Package models defines the core data structures shared by storage, repositories,
// the Photos.network API client and the local photo index.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// PrivacyState gates whether private photos are included in listings.
type PrivacyState int

const (
	// PrivacyNone shows every photo, private ones included.
	PrivacyNone PrivacyState = iota
	// PrivacyActive hides photos flagged as private.
	PrivacyActive
)

// String returns the wire name of the state.
func (p PrivacyState) String() string {
	switch p {
	case PrivacyActive:
		return "ACTIVE"
	default:
		return "NONE"
	}
}

// Toggle returns the opposite state.
func (p PrivacyState) Toggle() PrivacyState {
	if p == PrivacyActive {
		return PrivacyNone
	}
	return PrivacyActive
}

// MarshalJSON encodes the state as its name.
func (p PrivacyState) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts "NONE" or "ACTIVE".
func (p *PrivacyState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("privacy state: %w", err)
	}
	switch s {
	case "NONE", "":
		*p = PrivacyNone
	case "ACTIVE":
		*p = PrivacyActive
	default:
		return fmt.Errorf("privacy state: unknown value %q", s)
	}
	return nil
}

// Settings holds the user-configurable connection parameters.
type Settings struct {
	// Host is the base URL of the Photos.network server.
	Host string `json:"host"`
	// ClientID is the OAuth client identifier registered on the server.
	ClientID string `json:"client_id"`
	// ClientSecret is the OAuth client secret.
	ClientSecret string `json:"client_secret"`
	// PrivacyState controls visibility of private photos.
	PrivacyState PrivacyState `json:"privacy_state"`
}

// DefaultSettings returns the value used when nothing has been saved yet.
func DefaultSettings() Settings {
	return Settings{PrivacyState: PrivacyNone}
}

// WithHost returns a copy of s with Host replaced.
func (s Settings) WithHost(host string) Settings {
	s.Host = host
	return s
}

// WithClientID returns a copy of s with ClientID replaced.
func (s Settings) WithClientID(clientID string) Settings {
	s.ClientID = clientID
	return s
}

// WithClientSecret returns a copy of s with ClientSecret replaced.
func (s Settings) WithClientSecret(secret string) Settings {
	s.ClientSecret = secret
	return s
}

// WithPrivacyToggled returns a copy of s with the privacy state flipped.
func (s Settings) WithPrivacyToggled() Settings {
	s.PrivacyState = s.PrivacyState.Toggle()
	return s
}

// User is the signed-in Photos.network user.
type User struct {
	ID              string `json:"id"`
	Lastname        string `json:"lastname"`
	Firstname       string `json:"firstname"`
	ProfileImageURL string `json:"profile_image_url"`
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
}

// Photo is a row of the local photo index.
type Photo struct {
	// Filename is the unique key, relative to the media root.
	Filename string `json:"filename"`
	// ImageURL points at the full-size image.
	ImageURL string `json:"image_url"`
	// DateAdded is when the photo entered the device media store.
	DateAdded time.Time `json:"date_added"`
	// DateTaken is the capture time, when known.
	DateTaken *time.Time `json:"date_taken,omitempty"`
	// DateModified is the last modification time, when known.
	DateModified *time.Time `json:"date_modified,omitempty"`
	// URI is the device content reference, when known.
	URI string `json:"uri,omitempty"`
	// IsPrivate hides the photo while privacy is active.
	IsPrivate bool `json:"is_private"`
}

// RemotePhoto is a photo as returned by the Photos.network server.
type RemotePhoto struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	ImageURL     string     `json:"image_url"`
	DateAdded    time.Time  `json:"date_added"`
	DateTaken    *time.Time `json:"date_taken,omitempty"`
	DateModified *time.Time `json:"date_modified,omitempty"`
	IsPrivate    bool       `json:"is_private"`
}
