package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
)

// DefaultTimeout bounds every outbound provider call.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps how much of a provider response is read.
const maxBodySize = 1 << 20

// NewHTTPClient returns the client shared by OAuth and API calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// OAuth2Client implements the authorization-code half of driven.OAuthHandler
// for providers that follow RFC 6749. Provider connectors embed it.
type OAuth2Client struct {
	provider   domain.ProviderType
	defaults   driven.OAuthDefaults
	httpClient *http.Client
}

// NewOAuth2Client creates an OAuth client for one provider.
func NewOAuth2Client(provider domain.ProviderType, defaults driven.OAuthDefaults, httpClient *http.Client) *OAuth2Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultTimeout)
	}
	return &OAuth2Client{
		provider:   provider,
		defaults:   defaults,
		httpClient: httpClient,
	}
}

// BuildAuthURL constructs the provider authorization URL.
func (c *OAuth2Client) BuildAuthURL(cfg domain.ProviderConfig, state, codeChallenge string) string {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = c.defaults.Scopes
	}

	params := url.Values{
		"client_id":     {cfg.ClientID},
		"redirect_uri":  {cfg.RedirectURI},
		"state":         {state},
		"response_type": {"code"},
	}
	if len(scopes) > 0 {
		params.Set("scope", strings.Join(scopes, " "))
	}
	if codeChallenge != "" {
		params.Set("code_challenge", codeChallenge)
		params.Set("code_challenge_method", "S256")
	}
	for k, v := range c.defaults.ExtraAuthParams {
		params.Set(k, v)
	}

	sep := "?"
	if strings.Contains(c.defaults.AuthURL, "?") {
		sep = "&"
	}
	return c.defaults.AuthURL + sep + params.Encode()
}

// ExchangeCode exchanges an authorization code for the provider's token
// response. The JSON body is returned as-is.
func (c *OAuth2Client) ExchangeCode(ctx context.Context, cfg domain.ProviderConfig, code, codeVerifier string) (domain.CredentialRecord, error) {
	params := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {cfg.RedirectURI},
	}
	if codeVerifier != "" {
		params.Set("code_verifier", codeVerifier)
	}
	if c.defaults.AuthStyle == driven.AuthStyleInParams {
		params.Set("client_id", cfg.ClientID)
		params.Set("client_secret", cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.defaults.TokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.defaults.AuthStyle == driven.AuthStyleInHeader {
		req.SetBasicAuth(url.QueryEscape(cfg.ClientID), url.QueryEscape(cfg.ClientSecret))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.UpstreamError{
			Kind:       domain.ErrTokenExchange,
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	record, err := domain.DecodeCredentialRecord(body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return record, nil
}

// DefaultConfig returns the provider's OAuth endpoints.
func (c *OAuth2Client) DefaultConfig() driven.OAuthDefaults {
	return c.defaults
}

// APIClient performs bearer-authenticated JSON calls against a provider API.
type APIClient struct {
	provider   domain.ProviderType
	httpClient *http.Client
	headers    map[string]string
}

// NewAPIClient creates an API client. headers are sent on every request.
func NewAPIClient(provider domain.ProviderType, httpClient *http.Client, headers map[string]string) *APIClient {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultTimeout)
	}
	return &APIClient{
		provider:   provider,
		httpClient: httpClient,
		headers:    headers,
	}
}

// Do sends a request and decodes a successful JSON response into out.
// payload, when non-nil, is sent as a JSON body.
func (c *APIClient) Do(ctx context.Context, method, endpoint, accessToken string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.UpstreamError{
			Kind:       domain.ErrUpstreamAPI,
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
