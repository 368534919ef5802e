package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured signals that no hosted backend credentials are present.
	// Callers treat it as "degrade to empty", never as a fatal condition.
	ErrNotConfigured = errors.New("backend not configured")
	// ErrNotFound indicates the referenced row or object does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBadCredentials is returned by SignIn for rejected email/password pairs.
	ErrBadCredentials = errors.New("invalid email or password")
)

// APIError carries the hosted service's HTTP status and message payload.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}
