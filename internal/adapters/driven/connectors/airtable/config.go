package airtable

// Config contains endpoint settings for the Airtable connector.
type Config struct {
	// APIBaseURL is the base URL for the Airtable Web API.
	APIBaseURL string

	// AuthURL is the OAuth authorization endpoint.
	AuthURL string

	// TokenURL is the OAuth token endpoint.
	TokenURL string
}

// DefaultConfig returns the production Airtable endpoints.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: "https://api.airtable.com",
		AuthURL:    "https://airtable.com/oauth2/v1/authorize",
		TokenURL:   "https://airtable.com/oauth2/v1/token",
	}
}
