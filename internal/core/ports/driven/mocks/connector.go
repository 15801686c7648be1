package mocks

import (
	"context"
	"net/url"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
)

// MockConnector is a mock implementation of Connector for testing
type MockConnector struct {
	TypeFn          func() domain.ProviderType
	BuildAuthURLFn  func(cfg domain.ProviderConfig, state, codeChallenge string) string
	ExchangeCodeFn  func(ctx context.Context, cfg domain.ProviderConfig, code, codeVerifier string) (domain.CredentialRecord, error)
	ListItemsFn     func(ctx context.Context, accessToken string) ([]domain.IntegrationItem, error)
	DefaultConfigFn func() driven.OAuthDefaults

	// ListItemsCalls counts ListItems invocations.
	ListItemsCalls int
}

func NewMockConnector() *MockConnector {
	return &MockConnector{}
}

func (m *MockConnector) Type() domain.ProviderType {
	if m.TypeFn != nil {
		return m.TypeFn()
	}
	return domain.ProviderTypeHubSpot
}

// BuildAuthURL defaults to a URL that echoes the parameters it was given.
func (m *MockConnector) BuildAuthURL(cfg domain.ProviderConfig, state, codeChallenge string) string {
	if m.BuildAuthURLFn != nil {
		return m.BuildAuthURLFn(cfg, state, codeChallenge)
	}
	params := url.Values{
		"client_id":     {cfg.ClientID},
		"redirect_uri":  {cfg.RedirectURI},
		"state":         {state},
		"response_type": {"code"},
	}
	if codeChallenge != "" {
		params.Set("code_challenge", codeChallenge)
	}
	return "https://provider.test/oauth/authorize?" + params.Encode()
}

func (m *MockConnector) ExchangeCode(ctx context.Context, cfg domain.ProviderConfig, code, codeVerifier string) (domain.CredentialRecord, error) {
	if m.ExchangeCodeFn != nil {
		return m.ExchangeCodeFn(ctx, cfg, code, codeVerifier)
	}
	return domain.CredentialRecord{"access_token": "token-" + code}, nil
}

func (m *MockConnector) ListItems(ctx context.Context, accessToken string) ([]domain.IntegrationItem, error) {
	m.ListItemsCalls++
	if m.ListItemsFn != nil {
		return m.ListItemsFn(ctx, accessToken)
	}
	return nil, nil
}

func (m *MockConnector) DefaultConfig() driven.OAuthDefaults {
	if m.DefaultConfigFn != nil {
		return m.DefaultConfigFn()
	}
	return driven.OAuthDefaults{
		AuthURL:  "https://provider.test/oauth/authorize",
		TokenURL: "https://provider.test/oauth/token",
		Scopes:   []string{"read"},
	}
}

// MockConnectorRegistry is a map-backed ConnectorRegistry for testing
type MockConnectorRegistry struct {
	Connectors map[domain.ProviderType]driven.Connector
}

func NewMockConnectorRegistry(connectors ...driven.Connector) *MockConnectorRegistry {
	r := &MockConnectorRegistry{Connectors: make(map[domain.ProviderType]driven.Connector)}
	for _, c := range connectors {
		r.Connectors[c.Type()] = c
	}
	return r
}

func (r *MockConnectorRegistry) Get(provider domain.ProviderType) (driven.Connector, bool) {
	c, ok := r.Connectors[provider]
	return c, ok
}
