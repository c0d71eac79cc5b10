package mapping

import (
	"context"
	"errors"
	"time"

	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
)

// Sentinel errors for mapping resolution
var (
	ErrMappingNotFound  = errors.New("mapping: no mapping for external record")
	ErrDuplicateMapping = errors.New("mapping: external record already mapped")
	ErrAmbiguousSKU     = errors.New("mapping: sku matches more than one local record")
)

// ---------------------------------------------------------------------------
// ProductMapping Entity
// ---------------------------------------------------------------------------

// ProductMapping links a local record to its identifier in one external
// system. One local record carries at most one mapping per system.
type ProductMapping struct {
	shared.BaseEntity
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_mapping_external,priority:1;uniqueIndex:idx_mapping_local,priority:1"`
	Kind       sync.EntityKind `gorm:"type:varchar(32);not null;uniqueIndex:idx_mapping_external,priority:2;uniqueIndex:idx_mapping_local,priority:2"`
	System     sync.SystemCode `gorm:"type:varchar(32);not null;uniqueIndex:idx_mapping_external,priority:3;uniqueIndex:idx_mapping_local,priority:3"`
	ExternalID string          `gorm:"type:varchar(128);not null;uniqueIndex:idx_mapping_external,priority:4"`
	LocalID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_mapping_local,priority:4"`
	SKU        string          `gorm:"type:varchar(128);index"`

	// AutoMapped marks mappings created by SKU matching rather than by an
	// operator
	AutoMapped bool `gorm:"not null;default:false"`

	// LastAppliedHash holds the field hash of the most recent write this
	// service applied through the mapping. An incoming record carrying the
	// same hash is our own change echoed back.
	LastAppliedHash string `gorm:"type:varchar(64)"`
	LastAppliedAt   *time.Time
}

// TableName returns the table name for GORM
func (ProductMapping) TableName() string {
	return "product_mappings"
}

// NewProductMapping creates a mapping between a local record and an external one
func NewProductMapping(tenantID uuid.UUID, kind sync.EntityKind, system sync.SystemCode, localID uuid.UUID, externalID, sku string) (*ProductMapping, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENTITY_KIND", "Unknown entity kind: "+kind.String())
	}
	if !system.IsExternal() {
		return nil, shared.NewDomainError("INVALID_SYSTEM", "Mappings only exist for external systems")
	}
	if localID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MAPPING", "Local ID cannot be empty")
	}
	if externalID == "" {
		return nil, shared.NewDomainError("INVALID_MAPPING", "External ID cannot be empty")
	}

	return &ProductMapping{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Kind:       kind,
		System:     system,
		ExternalID: externalID,
		LocalID:    localID,
		SKU:        sku,
	}, nil
}

// MarkApplied records the hash of a write just applied through this mapping
func (m *ProductMapping) MarkApplied(fieldHash string) {
	now := time.Now()
	m.LastAppliedHash = fieldHash
	m.LastAppliedAt = &now
	m.UpdatedAt = now
}

// IsOwnEcho reports whether an incoming field hash matches the last write
// this service applied
func (m *ProductMapping) IsOwnEcho(fieldHash string) bool {
	return m.LastAppliedHash != "" && m.LastAppliedHash == fieldHash
}

// ---------------------------------------------------------------------------
// Repository Interface
// ---------------------------------------------------------------------------

// Repository defines persistence for product mappings
type Repository interface {
	// Save creates or updates a mapping
	Save(ctx context.Context, m *ProductMapping) error

	// FindByExternalID finds a mapping by its external identifier
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, system sync.SystemCode, externalID string) (*ProductMapping, error)

	// FindByLocalID finds a mapping for a local record in one system
	FindByLocalID(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, system sync.SystemCode, localID uuid.UUID) (*ProductMapping, error)

	// FindBySKU returns all mappings in one system sharing a SKU
	FindBySKU(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, system sync.SystemCode, sku string) ([]ProductMapping, error)

	// List returns mappings for a tenant, optionally narrowed by kind and system
	List(ctx context.Context, tenantID uuid.UUID, kind *sync.EntityKind, system *sync.SystemCode, page, pageSize int) ([]ProductMapping, int64, error)

	// Delete removes a mapping
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// LocalLookup resolves local records by SKU for automatic mapping
type LocalLookup interface {
	// FindLocalIDsBySKU returns the IDs of local records carrying a SKU
	FindLocalIDsBySKU(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, sku string) ([]uuid.UUID, error)
}
