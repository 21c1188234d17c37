package jubelio

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound covers upstream 404s, other non-500 failures and empty bodies
	ErrNotFound = errors.New("jubelio: item not found")
	// ErrInternal is returned for upstream HTTP 500 on item endpoints
	ErrInternal = errors.New("jubelio: upstream internal error")

	ErrInvalidCredentials      = errors.New("jubelio: invalid username or password")
	ErrNoCredentialsConfigured = errors.New("jubelio: no credentials configured in environment nor provided")
	ErrUnableToObtainToken     = errors.New("jubelio: unable to obtain token")
)

// StatusError is a non-2xx answer from an item endpoint.
// It unwraps to ErrInternal for 500 and to ErrNotFound otherwise.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jubelio: upstream status %d: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusInternalServerError {
		return ErrInternal
	}
	return ErrNotFound
}

// Unauthorized reports whether the upstream rejected the bearer token
func (e *StatusError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// AuthError is a rejected login. Raw holds the decoded upstream body.
type AuthError struct {
	Status int
	Raw    any
}

func (e *AuthError) Error() string {
	return ErrInvalidCredentials.Error()
}

func (e *AuthError) Unwrap() error {
	return ErrInvalidCredentials
}
