package sync

import (
	"context"
	"errors"
	"time"
)

// ---------------------------------------------------------------------------
// Connector errors
// ---------------------------------------------------------------------------

var (
	// Connector-level errors abort the enclosing sync job.
	ErrConnectorNotConfigured = errors.New("sync: connector not configured")
	ErrConnectorAuthFailed    = errors.New("sync: connector authentication failed")
	ErrConnectorRateLimited   = errors.New("sync: connector rate limited")
	ErrConnectorUnavailable   = errors.New("sync: connector temporarily unavailable")
	ErrConnectorBadResponse   = errors.New("sync: invalid connector response")

	// Per-record errors are captured in SyncResult, never propagated.
	ErrMappingNotFound  = errors.New("sync: no mapping for external record")
	ErrRecordInvalid    = errors.New("sync: record failed validation")
	ErrUnsupportedKind  = errors.New("sync: entity kind not supported by connector")
	ErrUnknownConnector = errors.New("sync: no connector registered for system")
)

// IsFatalConnectorError reports whether err aborts the whole job rather
// than a single record.
func IsFatalConnectorError(err error) bool {
	return errors.Is(err, ErrConnectorAuthFailed) ||
		errors.Is(err, ErrConnectorRateLimited) ||
		errors.Is(err, ErrConnectorUnavailable) ||
		errors.Is(err, ErrConnectorNotConfigured)
}

// ---------------------------------------------------------------------------
// ExternalRecord
// ---------------------------------------------------------------------------

// ExternalRecord is a single unit fetched from an external system.
// It is transient: consumed by the mapper and conflict detector, never
// persisted as its own entity.
type ExternalRecord struct {
	// System identifies the platform this record came from
	System SystemCode
	// Kind is the entity kind of the record
	Kind EntityKind
	// ExternalID is the record's identifier on the platform
	ExternalID string
	// SKU is the natural key used for auto-mapping (may be empty)
	SKU string
	// Fields holds the normalized field values
	Fields map[string]any
	// UpdatedAt is when the record was last modified on the platform
	UpdatedAt time.Time
	// Raw is the original platform payload (JSON)
	Raw string
}

// NaturalKey returns the best human-readable key for error reporting
func (r *ExternalRecord) NaturalKey() string {
	if r.SKU != "" {
		return r.SKU
	}
	return r.ExternalID
}

// ---------------------------------------------------------------------------
// Pagination
// ---------------------------------------------------------------------------

// PageFilters narrows a paginated fetch
type PageFilters struct {
	// WarehouseCode limits inventory fetches to one warehouse (optional)
	WarehouseCode string
	// ProductIDs limits fetches to specific local products (optional)
	ProductIDs []string
	// UpdatedSince limits fetches to records changed after this time (optional)
	UpdatedSince *time.Time
}

// Page is one page of records from a paginated fetch
type Page struct {
	// Items contains the fetched records
	Items []ExternalRecord
	// HasMore indicates if there are more pages
	HasMore bool
	// NextCursor is the opaque cursor for the next page (when HasMore)
	NextCursor string
	// EstimatedTotal is the total record count if the platform reports one;
	// zero means unknown (streaming progress approximation applies)
	EstimatedTotal int
}

// ApplyResult is the outcome of pushing one record to a platform
type ApplyResult struct {
	// ExternalID is the platform identifier of the created/updated record
	ExternalID string
	// Created indicates the record was newly created on the platform
	Created bool
}

// ---------------------------------------------------------------------------
// Connector Port Interface
// ---------------------------------------------------------------------------

// Connector is the port interface for one external platform. Concrete
// adapters (Shopify, Magento, NetSuite) live in the infrastructure layer.
type Connector interface {
	// System returns the platform this connector handles
	System() SystemCode

	// Authenticate establishes or refreshes the platform session
	Authenticate(ctx context.Context) error

	// TestConnection reports whether the platform is reachable
	TestConnection(ctx context.Context) bool

	// GetPage fetches one page of records for the given entity kind.
	// An empty cursor requests the first page.
	GetPage(ctx context.Context, kind EntityKind, cursor string, filters PageFilters) (*Page, error)

	// ApplyRecord pushes one mapped record to the platform
	ApplyRecord(ctx context.Context, kind EntityKind, record *ExternalRecord) (*ApplyResult, error)
}

// ConnectorRegistry provides access to the configured platform connectors.
// It is an explicitly constructed, injected instance; its lifecycle is owned
// by the host process.
type ConnectorRegistry interface {
	// Get returns the connector for the given system
	Get(system SystemCode) (Connector, error)

	// List returns all registered connectors
	List() []Connector
}
