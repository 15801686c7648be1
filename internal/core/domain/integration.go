package domain

import "time"

// Item types produced by each provider
const (
	ItemTypeContact  = "contact"
	ItemTypeBase     = "base"
	ItemTypePage     = "page"
	ItemTypeDatabase = "database"
)

// IntegrationItem is the normalized view of a remote provider object.
// Items are recomputed on every fetch and never cached.
type IntegrationItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// FallbackItemName is the synthetic label used when a provider record has no
// usable name.
func FallbackItemName(itemType, id string) string {
	return itemType + "-" + id
}

// DefaultHandoffTTL is how long pending state and exchanged credentials live.
const DefaultHandoffTTL = 600 * time.Second
