package http

import (
	"errors"
	"net/http"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
)

// statusForError maps a service error to an HTTP status.
func statusForError(err error) int {
	var providerErr *domain.ProviderError
	var upstream *domain.UpstreamError

	switch {
	case errors.As(err, &providerErr),
		errors.Is(err, domain.ErrMissingState),
		errors.Is(err, domain.ErrMalformedState),
		errors.Is(err, domain.ErrStateMismatch),
		errors.Is(err, domain.ErrNoCredentials),
		errors.Is(err, domain.ErrMissingAccessToken),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProviderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTokenExchange):
		return http.StatusBadGateway
	case errors.As(err, &upstream):
		if upstream.StatusCode >= 400 && upstream.StatusCode < 600 {
			return upstream.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageForError is the client-facing text for err.
func messageForError(err error, status int) string {
	var providerErr *domain.ProviderError
	var upstream *domain.UpstreamError

	switch {
	case status == http.StatusInternalServerError:
		return "internal server error"
	case errors.As(err, &providerErr):
		return providerErr.Error()
	case errors.As(err, &upstream):
		return upstream.Provider.DisplayName() + " API error: " + upstream.Body
	case errors.Is(err, domain.ErrStateMismatch):
		return "State does not match."
	case errors.Is(err, domain.ErrNoCredentials):
		return "No credentials found."
	default:
		return err.Error()
	}
}

// writeServiceError is the single place service errors become responses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	attrs := []any{
		"request_id", GetRequestID(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"error", err,
	}
	if status >= 500 {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Debug("request rejected", attrs...)
	}
	writeError(w, status, messageForError(err, status))
}
