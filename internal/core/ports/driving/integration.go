package driving

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
)

// IntegrationService drives the OAuth round-trip and item loading for the
// connected providers.
type IntegrationService interface {
	// Authorize mints a pending state for (user, org) and returns the
	// provider authorization URL.
	Authorize(ctx context.Context, provider domain.ProviderType, userID, orgID string) (*AuthorizeResponse, error)

	// Callback verifies the redirect query, exchanges the code and stores the
	// resulting credentials for one-time pickup.
	Callback(ctx context.Context, provider domain.ProviderType, query url.Values) error

	// Credentials returns the stored credentials and consumes them.
	Credentials(ctx context.Context, provider domain.ProviderType, userID, orgID string) (domain.CredentialRecord, error)

	// Load lists the provider's items using inline credentials when given,
	// otherwise credentials taken from the vault.
	Load(ctx context.Context, provider domain.ProviderType, req LoadRequest) ([]domain.IntegrationItem, error)

	// Providers lists the configured providers.
	Providers() []domain.ProviderType
}

// AuthorizeResponse contains the provider authorization URL.
type AuthorizeResponse struct {
	AuthURL string `json:"auth_url"`
}

// LoadRequest is the body of a load call.
type LoadRequest struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`

	// Credentials may hold the record previously returned by Credentials,
	// either as an object or as its JSON-encoded string.
	Credentials json.RawMessage `json:"credentials,omitempty"`
}

// HasCredentials reports whether inline credentials were supplied.
func (r LoadRequest) HasCredentials() bool {
	s := string(r.Credentials)
	return s != "" && s != "null"
}
