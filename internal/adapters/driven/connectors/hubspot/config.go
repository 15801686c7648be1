package hubspot

// Config contains endpoint settings for the HubSpot connector.
type Config struct {
	// APIBaseURL is the base URL for the HubSpot CRM API.
	APIBaseURL string

	// AuthURL is the OAuth authorization endpoint.
	AuthURL string

	// TokenURL is the OAuth token endpoint.
	TokenURL string

	// PageSize is the number of contacts fetched. HubSpot caps it at 100.
	PageSize int
}

// DefaultConfig returns the production HubSpot endpoints.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: "https://api.hubapi.com",
		AuthURL:    "https://app.hubspot.com/oauth/authorize",
		TokenURL:   "https://api.hubapi.com/oauth/v1/token",
		PageSize:   50,
	}
}
