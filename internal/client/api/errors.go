package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoHost is returned when no server has been configured yet.
	ErrNoHost = errors.New("photos.network host not configured")
	// ErrUnauthorized is wrapped by StatusError for 401 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is wrapped by StatusError for 404 responses.
	ErrNotFound = errors.New("not found")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: server error %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}
