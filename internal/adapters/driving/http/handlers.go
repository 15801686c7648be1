package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driving"
)

// maxRequestBody caps form and JSON request bodies.
const maxRequestBody = 1 << 20

// callbackHTML closes the popup window the provider redirected into.
const callbackHTML = `<html><script>window.close();</script></html>`

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"state does not match"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ProvidersResponse lists the enabled providers
// @Description Enabled providers
type ProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
}

// ProviderInfo describes one enabled provider
type ProviderInfo struct {
	Type domain.ProviderType `json:"type" example:"hubspot"`
	Name string              `json:"name" example:"HubSpot"`
}

// Health endpoints

// handleRoot godoc
// @Summary      Liveness probe
// @Tags         Health
// @Produce      json
// @Router       / [get]
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"Ping": "Pong"})
}

// handlePing godoc
// @Summary      Liveness probe
// @Tags         Health
// @Produce      json
// @Router       /ping [get]
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"msg": "pong"})
}

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns ready once the key-value store answers
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "request_id", GetRequestID(r.Context()), "error", err)
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Integration endpoints

// handleListProviders godoc
// @Summary      List enabled providers
// @Tags         Integrations
// @Produce      json
// @Success      200  {object}  ProvidersResponse
// @Router       /integrations [get]
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers := s.integrationService.Providers()
	resp := ProvidersResponse{Providers: make([]ProviderInfo, 0, len(providers))}
	for _, p := range providers {
		resp.Providers = append(resp.Providers, ProviderInfo{Type: p, Name: p.DisplayName()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAuthorize godoc
// @Summary      Start an OAuth authorization
// @Tags         Integrations
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        provider  path      string  true  "Provider"  Enums(hubspot, airtable, notion)
// @Param        user_id   formData  string  true  "User ID"
// @Param        org_id    formData  string  true  "Organization ID"
// @Success      200  {object}  driving.AuthorizeResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /integrations/{provider}/authorize [post]
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	provider, userID, orgID, err := s.parseIdentityForm(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp, err := s.integrationService.Authorize(r.Context(), provider, userID, orgID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleOAuthCallback godoc
// @Summary      OAuth redirect target
// @Description  Verifies state, exchanges the code and closes the popup window
// @Tags         Integrations
// @Produce      html
// @Param        provider  path   string  true   "Provider"
// @Param        code      query  string  false  "Authorization code"
// @Param        state     query  string  false  "Encoded state"
// @Param        error     query  string  false  "Provider error"
// @Success      200
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /integrations/{provider}/oauth2callback [get]
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider, err := pathProvider(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.integrationService.Callback(r.Context(), provider, r.URL.Query()); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(callbackHTML))
}

// handleCredentials godoc
// @Summary      Hand out exchanged credentials once
// @Tags         Integrations
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        provider  path      string  true  "Provider"
// @Param        user_id   formData  string  true  "User ID"
// @Param        org_id    formData  string  true  "Organization ID"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  ErrorResponse
// @Router       /integrations/{provider}/credentials [post]
func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	provider, userID, orgID, err := s.parseIdentityForm(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	creds, err := s.integrationService.Credentials(r.Context(), provider, userID, orgID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, creds)
}

// handleLoad godoc
// @Summary      List provider items
// @Description  Uses inline credentials when sent, otherwise takes them from the vault
// @Tags         Integrations
// @Accept       json
// @Produce      json
// @Param        provider  path  string               true  "Provider"
// @Param        request   body  driving.LoadRequest  true  "Load request"
// @Success      200  {array}   domain.IntegrationItem
// @Failure      400  {object}  ErrorResponse
// @Router       /integrations/{provider}/load [post]
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	provider, err := pathProvider(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.load(w, r, provider)
}

func (s *Server) handleLegacyHubSpotItems(w http.ResponseWriter, r *http.Request) {
	s.load(w, r, domain.ProviderTypeHubSpot)
}

func (s *Server) load(w http.ResponseWriter, r *http.Request, provider domain.ProviderType) {
	var req driving.LoadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items, err := s.integrationService.Load(r.Context(), provider, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// parseIdentityForm reads the provider path value and the user_id/org_id
// form fields. Both urlencoded and multipart bodies are accepted.
func (s *Server) parseIdentityForm(w http.ResponseWriter, r *http.Request) (domain.ProviderType, string, string, error) {
	provider, err := pathProvider(r)
	if err != nil {
		return "", "", "", err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseMultipartForm(maxRequestBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return "", "", "", fmt.Errorf("%w: parse form: %v", domain.ErrInvalidInput, err)
	}

	userID := r.PostFormValue("user_id")
	orgID := r.PostFormValue("org_id")
	if userID == "" || orgID == "" {
		return "", "", "", fmt.Errorf("%w: user_id and org_id are required", domain.ErrInvalidInput)
	}
	return provider, userID, orgID, nil
}

func pathProvider(r *http.Request) (domain.ProviderType, error) {
	provider, ok := domain.ParseProviderType(r.PathValue("provider"))
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrProviderNotFound, r.PathValue("provider"))
	}
	return provider, nil
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
