// Package api is a client for the Photos.network REST API and its OAuth endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/photos-network/photos-sync/internal/models"
)

const (
	pathUser   = "/v1/user/"
	pathPhotos = "/api/photos"
	pathPhoto  = "/api/photo/"
	pathToken  = "/api/oauth/token"
	pathAuth   = "/api/oauth/authorize"
	pathRevoke = "/api/oauth/revoke"

	maxErrorBody = 4 << 10
)

// Client talks to the server whose base URL is returned by Host. Host is consulted
// on every call so a changed setting takes effect without rebuilding the client.
type Client struct {
	http *http.Client
	host func() string
	log  *zap.Logger
}

// New builds a Client. A nil httpClient falls back to a client with a default timeout.
func New(httpClient *http.Client, host func() string, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{http: httpClient, host: host, log: log}
}

// PhotoPage is one page of GET /api/photos.
type PhotoPage struct {
	Offset int                  `json:"offset"`
	Limit  int                  `json:"limit"`
	Total  int                  `json:"total"`
	Photos []models.RemotePhoto `json:"photos"`
}

type userResponse struct {
	ID              string `json:"id"`
	Lastname        string `json:"lastname"`
	Firstname       string `json:"firstname"`
	ProfileImageURL string `json:"profile_image"`
}

// GetUser fetches the profile of the user owning accessToken. The returned user
// carries no tokens.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	var resp userResponse
	if err := c.getJSON(ctx, pathUser, nil, accessToken, &resp); err != nil {
		return nil, err
	}
	return &models.User{
		ID:              resp.ID,
		Lastname:        resp.Lastname,
		Firstname:       resp.Firstname,
		ProfileImageURL: resp.ProfileImageURL,
	}, nil
}

// ListPhotos fetches one page of the remote library.
func (c *Client) ListPhotos(ctx context.Context, accessToken string, offset, limit int) (*PhotoPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var page PhotoPage
	if err := c.getJSON(ctx, pathPhotos, q, accessToken, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetPhoto fetches a single remote photo.
func (c *Client) GetPhoto(ctx context.Context, accessToken, id string) (*models.RemotePhoto, error) {
	var photo models.RemotePhoto
	if err := c.getJSON(ctx, pathPhoto+url.PathEscape(id), nil, accessToken, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

func (c *Client) baseURL() (string, error) {
	host := strings.TrimRight(strings.TrimSpace(c.host()), "/")
	if host == "" {
		return "", ErrNoHost
	}
	return host, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, accessToken string, out any) error {
	base, err := c.baseURL()
	if err != nil {
		return err
	}
	target := base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.MethodGet, path); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: invalid response: %w", path, err)
	}
	c.log.Debug("api request", zap.String("path", path), zap.Int("status", resp.StatusCode))
	return nil
}

func checkStatus(resp *http.Response, method, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method: method,
		Path:   path,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}
