package airtable

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/sercha-relay/internal/adapters/driven/connectors"
	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector lists the Airtable bases the user granted access to.
// Airtable requires PKCE and HTTP Basic client authentication.
type Connector struct {
	*connectors.OAuth2Client
	api    *connectors.APIClient
	config *Config
}

// NewConnector creates an Airtable connector.
func NewConnector(config *Config, httpClient *http.Client) *Connector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Connector{
		OAuth2Client: connectors.NewOAuth2Client(domain.ProviderTypeAirtable, driven.OAuthDefaults{
			AuthURL:      config.AuthURL,
			TokenURL:     config.TokenURL,
			Scopes:       []string{"data.records:read", "schema.bases:read"},
			SupportsPKCE: true,
			AuthStyle:    driven.AuthStyleInHeader,
		}, httpClient),
		api:    connectors.NewAPIClient(domain.ProviderTypeAirtable, httpClient, nil),
		config: config,
	}
}

// Type returns the provider type.
func (c *Connector) Type() domain.ProviderType {
	return domain.ProviderTypeAirtable
}

type base struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PermissionLevel string `json:"permissionLevel"`
}

type listBasesResponse struct {
	Bases  []base `json:"bases"`
	Offset string `json:"offset"`
}

// ListItems fetches the first page of bases. The offset cursor is ignored.
func (c *Connector) ListItems(ctx context.Context, accessToken string) ([]domain.IntegrationItem, error) {
	endpoint := strings.TrimSuffix(c.config.APIBaseURL, "/") + "/v0/meta/bases"

	var resp listBasesResponse
	if err := c.api.Do(ctx, http.MethodGet, endpoint, accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("list bases: %w", err)
	}

	items := make([]domain.IntegrationItem, 0, len(resp.Bases))
	for _, b := range resp.Bases {
		name := b.Name
		if name == "" {
			name = domain.FallbackItemName(domain.ItemTypeBase, b.ID)
		}
		items = append(items, domain.IntegrationItem{
			ID:   b.ID,
			Name: name,
			Type: domain.ItemTypeBase,
		})
	}
	return items, nil
}
