package connector

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/commercesync/backend/internal/domain/sync"
)

// MemoryConnector is an in-process connector used in tests and local
// development. Pages are preloaded per entity kind, applied records are
// collected for inspection.
type MemoryConnector struct {
	system sync.SystemCode

	mu      gosync.Mutex
	pages   map[sync.EntityKind][]sync.Page
	applied []sync.ExternalRecord
	nextID  int

	// AuthErr, when set, is returned from Authenticate
	AuthErr error
	// ApplyErr, when set, is returned from every ApplyRecord call
	ApplyErr error
}

// NewMemoryConnector creates a memory connector posing as the given system
func NewMemoryConnector(system sync.SystemCode) *MemoryConnector {
	return &MemoryConnector{
		system: system,
		pages:  make(map[sync.EntityKind][]sync.Page),
	}
}

// LoadPages preloads the pages GetPage serves for one entity kind
func (c *MemoryConnector) LoadPages(kind sync.EntityKind, pages []sync.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[kind] = pages
}

// Applied returns a copy of all records pushed through ApplyRecord
func (c *MemoryConnector) Applied() []sync.ExternalRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sync.ExternalRecord, len(c.applied))
	copy(out, c.applied)
	return out
}

// System returns the platform this connector poses as
func (c *MemoryConnector) System() sync.SystemCode {
	return c.system
}

// Authenticate returns the configured AuthErr, nil by default
func (c *MemoryConnector) Authenticate(ctx context.Context) error {
	return c.AuthErr
}

// TestConnection reports whether Authenticate would succeed
func (c *MemoryConnector) TestConnection(ctx context.Context) bool {
	return c.AuthErr == nil
}

// GetPage serves the preloaded pages in order. The cursor is the page index.
func (c *MemoryConnector) GetPage(ctx context.Context, kind sync.EntityKind, cursor string, filters sync.PageFilters) (*sync.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pages := c.pages[kind]
	if len(pages) == 0 {
		return &sync.Page{}, nil
	}

	idx := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "page-%d", &idx); err != nil {
			return nil, fmt.Errorf("%w: bad cursor %q", sync.ErrConnectorBadResponse, cursor)
		}
	}
	if idx >= len(pages) {
		return &sync.Page{}, nil
	}

	page := pages[idx]
	if idx < len(pages)-1 {
		page.HasMore = true
		page.NextCursor = fmt.Sprintf("page-%d", idx+1)
	}
	return &page, nil
}

// ApplyRecord collects the pushed record and assigns an external ID to
// records without one
func (c *MemoryConnector) ApplyRecord(ctx context.Context, kind sync.EntityKind, record *sync.ExternalRecord) (*sync.ApplyResult, error) {
	if c.ApplyErr != nil {
		return nil, c.ApplyErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = append(c.applied, *record)

	if record.ExternalID != "" {
		return &sync.ApplyResult{ExternalID: record.ExternalID}, nil
	}
	c.nextID++
	return &sync.ApplyResult{
		ExternalID: fmt.Sprintf("mem-%d", c.nextID),
		Created:    true,
	}, nil
}

// Ensure MemoryConnector implements Connector
var _ sync.Connector = (*MemoryConnector)(nil)
