package mapping

import (
	"context"
	"errors"

	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
)

// Mapper resolves external records to local IDs, optionally creating
// mappings by SKU match when auto-mapping is enabled.
type Mapper struct {
	repo          Repository
	lookup        LocalLookup
	autoMapCreate bool
}

// NewMapper creates a new mapper. When autoMapCreate is false, unmapped
// records fail resolution instead of being matched by SKU.
func NewMapper(repo Repository, lookup LocalLookup, autoMapCreate bool) *Mapper {
	return &Mapper{
		repo:          repo,
		lookup:        lookup,
		autoMapCreate: autoMapCreate,
	}
}

// Resolve returns the mapping for an external record. Without an existing
// mapping it attempts a SKU match when auto-mapping is enabled: exactly one
// local record with the same SKU produces a new auto-mapped entry, zero or
// several fail.
func (m *Mapper) Resolve(ctx context.Context, tenantID uuid.UUID, rec *sync.ExternalRecord) (*ProductMapping, error) {
	existing, err := m.repo.FindByExternalID(ctx, tenantID, rec.Kind, rec.System, rec.ExternalID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrMappingNotFound) {
		return nil, err
	}

	if !m.autoMapCreate || rec.SKU == "" {
		return nil, ErrMappingNotFound
	}

	localIDs, err := m.lookup.FindLocalIDsBySKU(ctx, tenantID, rec.Kind, rec.SKU)
	if err != nil {
		return nil, err
	}
	switch len(localIDs) {
	case 0:
		return nil, ErrMappingNotFound
	case 1:
	default:
		return nil, ErrAmbiguousSKU
	}

	created, err := NewProductMapping(tenantID, rec.Kind, rec.System, localIDs[0], rec.ExternalID, rec.SKU)
	if err != nil {
		return nil, err
	}
	created.AutoMapped = true
	if err := m.repo.Save(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// Register creates an operator-confirmed mapping, rejecting duplicates for
// the same external record.
func (m *Mapper) Register(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, system sync.SystemCode, localID uuid.UUID, externalID, sku string) (*ProductMapping, error) {
	_, err := m.repo.FindByExternalID(ctx, tenantID, kind, system, externalID)
	if err == nil {
		return nil, ErrDuplicateMapping
	}
	if !errors.Is(err, ErrMappingNotFound) {
		return nil, err
	}

	created, err := NewProductMapping(tenantID, kind, system, localID, externalID, sku)
	if err != nil {
		return nil, err
	}
	if err := m.repo.Save(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}
