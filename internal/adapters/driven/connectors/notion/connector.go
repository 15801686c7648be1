package notion

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

// Connector lists the pages and databases shared with the integration.
type Connector struct {
	*connectors.OAuth2Client
	api    *connectors.APIClient
	config *Config
}

// NewConnector creates a Notion connector.
func NewConnector(config *Config, httpClient *http.Client) *Connector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Connector{
		OAuth2Client: connectors.NewOAuth2Client(domain.ProviderTypeNotion, driven.OAuthDefaults{
			AuthURL:         config.AuthURL,
			TokenURL:        config.TokenURL,
			AuthStyle:       driven.AuthStyleInHeader,
			ExtraAuthParams: map[string]string{"owner": "user"},
		}, httpClient),
		api: connectors.NewAPIClient(domain.ProviderTypeNotion, httpClient, map[string]string{
			"Notion-Version": config.APIVersion,
		}),
		config: config,
	}
}

// Type returns the provider type.
func (c *Connector) Type() domain.ProviderType {
	return domain.ProviderTypeNotion
}

type richText struct {
	PlainText string `json:"plain_text"`
}

type property struct {
	Type  string     `json:"type"`
	Title []richText `json:"title"`
}

// object is a page or database search result.
type object struct {
	Object     string              `json:"object"`
	ID         string              `json:"id"`
	Title      []richText          `json:"title"`
	Properties map[string]property `json:"properties"`
}

type searchRequest struct {
	PageSize int `json:"page_size"`
}

type searchResponse struct {
	Results    []object `json:"results"`
	HasMore    bool     `json:"has_more"`
	NextCursor *string  `json:"next_cursor"`
}

// ListItems runs an empty search and returns the first page of results.
func (c *Connector) ListItems(ctx context.Context, accessToken string) ([]domain.IntegrationItem, error) {
	endpoint := strings.TrimSuffix(c.config.APIBaseURL, "/") + "/v1/search"

	var resp searchResponse
	if err := c.api.Do(ctx, http.MethodPost, endpoint, accessToken, searchRequest{PageSize: c.config.PageSize}, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	items := make([]domain.IntegrationItem, 0, len(resp.Results))
	for _, obj := range resp.Results {
		itemType := domain.ItemTypePage
		if obj.Object == "database" {
			itemType = domain.ItemTypeDatabase
		}

		name := obj.title()
		if name == "" {
			name = domain.FallbackItemName(itemType, obj.ID)
		}
		items = append(items, domain.IntegrationItem{
			ID:   obj.ID,
			Name: name,
			Type: itemType,
		})
	}
	return items, nil
}

// title returns the plain text of the first title fragment. Databases carry
// it at the top level, pages in their title-typed property.
func (o object) title() string {
	if len(o.Title) > 0 {
		return o.Title[0].PlainText
	}
	for _, p := range o.Properties {
		if p.Type == "title" && len(p.Title) > 0 {
			return p.Title[0].PlainText
		}
	}
	return ""
}
