package domain

// ProviderType identifies a third-party SaaS provider
type ProviderType string

const (
	ProviderTypeHubSpot  ProviderType = "hubspot"
	ProviderTypeAirtable ProviderType = "airtable"
	ProviderTypeNotion   ProviderType = "notion"
)

// ProviderConfig holds the OAuth application settings for one provider.
type ProviderConfig struct {
	Type         ProviderType `json:"type"`
	ClientID     string       `json:"client_id"`
	ClientSecret string       `json:"-"` // never serialize
	RedirectURI  string       `json:"redirect_uri"`
	Scopes       []string     `json:"scopes"`
}

// IsConfigured reports whether the OAuth app credentials are present.
func (c ProviderConfig) IsConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// SupportedProviders returns the providers this relay can connect.
func SupportedProviders() []ProviderType {
	return []ProviderType{
		ProviderTypeHubSpot,
		ProviderTypeAirtable,
		ProviderTypeNotion,
	}
}

// ParseProviderType validates a provider name from a request path.
func ParseProviderType(s string) (ProviderType, bool) {
	for _, p := range SupportedProviders() {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// DisplayName returns a human-readable name for a provider.
func (p ProviderType) DisplayName() string {
	switch p {
	case ProviderTypeHubSpot:
		return "HubSpot"
	case ProviderTypeAirtable:
		return "Airtable"
	case ProviderTypeNotion:
		return "Notion"
	default:
		return string(p)
	}
}
