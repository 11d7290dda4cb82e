package connectedvehicle

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized means the access token or API key was rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited means the API quota is exhausted for now.
	ErrRateLimited = errors.New("rate limited")
	// ErrVehicleUnavailable means the vehicle is unknown to the account or cannot be reached.
	ErrVehicleUnavailable = errors.New("vehicle unavailable")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// Is maps status codes onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrVehicleUnavailable:
		return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusServiceUnavailable
	}
	return false
}
