package connectors

import (
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-relay/internal/core/domain"
	"github.com/custodia-labs/sercha-relay/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ConnectorRegistry = (*Registry)(nil)

// Registry maps provider types to their connectors.
type Registry struct {
	mu         sync.RWMutex
	connectors map[domain.ProviderType]driven.Connector
}

// NewRegistry creates a registry holding the given connectors.
func NewRegistry(connectors ...driven.Connector) *Registry {
	r := &Registry{
		connectors: make(map[domain.ProviderType]driven.Connector, len(connectors)),
	}
	for _, c := range connectors {
		r.Register(c)
	}
	return r
}

// Register registers a connector under its provider type, replacing any
// earlier registration.
func (r *Registry) Register(connector driven.Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[connector.Type()] = connector
}

// Get returns the connector for a provider type.
func (r *Registry) Get(providerType domain.ProviderType) (driven.Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[providerType]
	return c, ok
}

// SupportedTypes returns all registered provider types in name order.
func (r *Registry) SupportedTypes() []domain.ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.ProviderType, 0, len(r.connectors))
	for t := range r.connectors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
