package notion

// Config contains endpoint settings for the Notion connector.
type Config struct {
	// APIBaseURL is the base URL for the Notion API.
	APIBaseURL string

	// AuthURL is the OAuth authorization endpoint.
	AuthURL string

	// TokenURL is the OAuth token endpoint.
	TokenURL string

	// APIVersion is sent as the Notion-Version header.
	APIVersion string

	// PageSize is the number of search results fetched. Maximum is 100.
	PageSize int
}

// DefaultConfig returns the production Notion endpoints.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: "https://api.notion.com",
		AuthURL:    "https://api.notion.com/v1/oauth/authorize",
		TokenURL:   "https://api.notion.com/v1/oauth/token",
		APIVersion: "2022-06-28",
		PageSize:   50,
	}
}
