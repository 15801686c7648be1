package hubspot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-relay/internal/adapters/driven/connectors"
	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector lists HubSpot CRM contacts.
type Connector struct {
	*connectors.OAuth2Client
	api    *connectors.APIClient
	config *Config
}

// NewConnector creates a HubSpot connector.
func NewConnector(config *Config, httpClient *http.Client) *Connector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Connector{
		OAuth2Client: connectors.NewOAuth2Client(domain.ProviderTypeHubSpot, driven.OAuthDefaults{
			AuthURL:   config.AuthURL,
			TokenURL:  config.TokenURL,
			Scopes:    []string{"contacts", "content"},
			AuthStyle: driven.AuthStyleInParams,
		}, httpClient),
		api:    connectors.NewAPIClient(domain.ProviderTypeHubSpot, httpClient, nil),
		config: config,
	}
}

// Type returns the provider type.
func (c *Connector) Type() domain.ProviderType {
	return domain.ProviderTypeHubSpot
}

// contact is a CRM contact as returned by /crm/v3/objects/contacts.
type contact struct {
	ID         string `json:"id"`
	Properties struct {
		FirstName string `json:"firstname"`
		LastName  string `json:"lastname"`
		Email     string `json:"email"`
	} `json:"properties"`
}

type listContactsResponse struct {
	Results []contact `json:"results"`
}

// ListItems fetches the first page of contacts.
func (c *Connector) ListItems(ctx context.Context, accessToken string) ([]domain.IntegrationItem, error) {
	params := url.Values{
		"limit":      {strconv.Itoa(c.config.PageSize)},
		"properties": {"firstname,lastname,email"},
	}
	endpoint := strings.TrimSuffix(c.config.APIBaseURL, "/") + "/crm/v3/objects/contacts?" + params.Encode()

	var resp listContactsResponse
	if err := c.api.Do(ctx, http.MethodGet, endpoint, accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	items := make([]domain.IntegrationItem, 0, len(resp.Results))
	for _, obj := range resp.Results {
		items = append(items, contactItem(obj))
	}
	return items, nil
}

// contactItem names a contact by full name, then email, then id.
func contactItem(obj contact) domain.IntegrationItem {
	name := strings.TrimSpace(obj.Properties.FirstName + " " + obj.Properties.LastName)
	if name == "" {
		name = obj.Properties.Email
	}
	if name == "" {
		name = domain.FallbackItemName(domain.ItemTypeContact, obj.ID)
	}
	return domain.IntegrationItem{
		ID:   obj.ID,
		Name: name,
		Type: domain.ItemTypeContact,
	}
}
