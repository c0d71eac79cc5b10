package connector

import (
	"fmt"

	"github.com/commercesync/backend/internal/domain/sync"
)

// Registry holds the configured platform connectors. It is constructed once
// at startup and injected wherever connectors are needed.
type Registry struct {
	connectors map[sync.SystemCode]sync.Connector
	order      []sync.SystemCode
}

// NewRegistry creates a registry over the given connectors
func NewRegistry(connectors ...sync.Connector) *Registry {
	r := &Registry{
		connectors: make(map[sync.SystemCode]sync.Connector, len(connectors)),
	}
	for _, c := range connectors {
		if _, exists := r.connectors[c.System()]; !exists {
			r.order = append(r.order, c.System())
		}
		r.connectors[c.System()] = c
	}
	return r
}

// Get returns the connector for the given system
func (r *Registry) Get(system sync.SystemCode) (sync.Connector, error) {
	c, ok := r.connectors[system]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sync.ErrUnknownConnector, system)
	}
	return c, nil
}

// List returns all registered connectors in registration order
func (r *Registry) List() []sync.Connector {
	out := make([]sync.Connector, 0, len(r.order))
	for _, system := range r.order {
		out = append(out, r.connectors[system])
	}
	return out
}

// Ensure Registry implements ConnectorRegistry
var _ sync.ConnectorRegistry = (*Registry)(nil)
