package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested key or resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderNotFound indicates the provider is unknown or not configured
	ErrProviderNotFound = errors.New("provider not found")

	// ErrMissingState indicates the callback carried no state parameter
	ErrMissingState = errors.New("missing state")

	// ErrMalformedState indicates the state parameter could not be decoded
	ErrMalformedState = errors.New("malformed state")

	// ErrStateMismatch indicates no pending state matches the callback
	ErrStateMismatch = errors.New("state does not match")

	// ErrNoCredentials indicates credentials were never issued, expired or were already taken
	ErrNoCredentials = errors.New("no credentials found")

	// ErrMissingAccessToken indicates a credential record without an access token
	ErrMissingAccessToken = errors.New("no access token in credentials")

	// ErrTokenExchange indicates the provider rejected the code exchange
	ErrTokenExchange = errors.New("token exchange failed")

	// ErrUpstreamAPI indicates the provider API returned a non-success status
	ErrUpstreamAPI = errors.New("upstream api error")
)

// ProviderError is an error reported by the provider on the OAuth redirect.
type ProviderError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// UpstreamError carries the status and body of a failed provider call.
type UpstreamError struct {
	// Kind is ErrTokenExchange or ErrUpstreamAPI.
	Kind       error
	Provider   ProviderType
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s api error: %v: status %d: %s", e.Provider, e.Kind, e.StatusCode, e.Body)
}

// Is reports whether target is the sentinel this error belongs to.
func (e *UpstreamError) Is(target error) bool {
	return target == e.Kind
}
