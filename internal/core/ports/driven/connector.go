package driven

import (
	"context"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
)

// AuthStyle controls how the OAuth client authenticates at the token endpoint.
type AuthStyle int

const (
	// AuthStyleInParams sends client_id and client_secret in the form body.
	AuthStyleInParams AuthStyle = iota

	// AuthStyleInHeader sends client credentials with HTTP Basic auth.
	AuthStyleInHeader
)

// OAuthDefaults contains a provider's fixed OAuth endpoints.
type OAuthDefaults struct {
	// AuthURL is the OAuth authorization endpoint.
	AuthURL string

	// TokenURL is the OAuth token exchange endpoint.
	TokenURL string

	// Scopes are requested when the configuration does not name any.
	Scopes []string

	// SupportsPKCE indicates the provider expects a code_challenge.
	SupportsPKCE bool

	// AuthStyle is the client authentication method at TokenURL.
	AuthStyle AuthStyle

	// ExtraAuthParams are appended to the authorization URL as-is.
	ExtraAuthParams map[string]string
}

// OAuthHandler provides the OAuth operations for a specific provider.
type OAuthHandler interface {
	// BuildAuthURL constructs the authorization URL the user is sent to.
	// codeChallenge is empty for providers without PKCE.
	BuildAuthURL(cfg domain.ProviderConfig, state, codeChallenge string) string

	// ExchangeCode exchanges an authorization code for the provider's token
	// bundle, returned verbatim. A non-success status yields a
	// *domain.UpstreamError matching domain.ErrTokenExchange.
	ExchangeCode(ctx context.Context, cfg domain.ProviderConfig, code, codeVerifier string) (domain.CredentialRecord, error)

	// DefaultConfig returns the provider's OAuth endpoints and default scopes.
	DefaultConfig() OAuthDefaults
}

// ItemLister fetches the first page of remote objects and normalizes them.
type ItemLister interface {
	// ListItems calls the provider list API with accessToken.
	// A non-success status yields a *domain.UpstreamError matching
	// domain.ErrUpstreamAPI.
	ListItems(ctx context.Context, accessToken string) ([]domain.IntegrationItem, error)
}

// Connector bundles the OAuth and listing operations of one provider.
type Connector interface {
	OAuthHandler
	ItemLister

	// Type returns the provider type.
	Type() domain.ProviderType
}

// ConnectorRegistry resolves connectors by provider type.
type ConnectorRegistry interface {
	// Get returns the connector for provider, or false if none is registered.
	Get(provider domain.ProviderType) (Connector, bool)
}
