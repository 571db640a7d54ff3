package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// Credentials identify this installation as an OAuth client of the server.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Token is the result of an authorization-code exchange.
type Token struct {
	AccessToken  string
	RefreshToken string
}

func (c *Client) oauthConfig(creds Credentials) (*oauth2.Config, error) {
	base, err := c.baseURL()
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + pathAuth,
			TokenURL:  base + pathToken,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}, nil
}

// AuthCodeURL returns the page the user opens to grant access.
func (c *Client) AuthCodeURL(creds Credentials, state string) (string, error) {
	cfg, err := c.oauthConfig(creds)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state), nil
}

// ExchangeCode trades an authorization code for tokens (RFC 6749 section 4.1.3).
func (c *Client) ExchangeCode(ctx context.Context, creds Credentials, code string) (*Token, error) {
	cfg, err := c.oauthConfig(creds)
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return &Token{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}

// Revoke invalidates a token on the server (RFC 7009). hint is "access_token",
// "refresh_token" or empty.
func (c *Client) Revoke(ctx context.Context, creds Credentials, token, hint string) error {
	base, err := c.baseURL()
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("token", token)
	if hint != "" {
		form.Set("token_type_hint", hint)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+pathRevoke, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(creds.ClientID), url.QueryEscape(creds.ClientSecret))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("revoke failed: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.MethodPost, pathRevoke)
}
