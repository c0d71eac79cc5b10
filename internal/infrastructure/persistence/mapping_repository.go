package persistence

import (
	"context"
	"errors"

	"github.com/commercesync/backend/internal/domain/mapping"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMappingRepository implements mapping.Repository using GORM
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

// Save creates or updates a mapping
func (r *GormMappingRepository) Save(ctx context.Context, m *mapping.ProductMapping) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// FindByExternalID finds a mapping by its external identifier
func (r *GormMappingRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, system sync.SystemCode, externalID string) (*mapping.ProductMapping, error) {
	var m mapping.ProductMapping
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND kind = ? AND system = ? AND external_id = ?", tenantID, kind, system, externalID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mapping.ErrMappingNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindByLocalID finds a mapping for a local record in one system
func (r *GormMappingRepository) FindByLocalID(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, system sync.SystemCode, localID uuid.UUID) (*mapping.ProductMapping, error) {
	var m mapping.ProductMapping
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND kind = ? AND system = ? AND local_id = ?", tenantID, kind, system, localID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mapping.ErrMappingNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindBySKU returns all mappings in one system sharing a SKU
func (r *GormMappingRepository) FindBySKU(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, system sync.SystemCode, sku string) ([]mapping.ProductMapping, error) {
	var mappings []mapping.ProductMapping
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND kind = ? AND system = ? AND sku = ?", tenantID, kind, system, sku).
		Order("created_at ASC").
		Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

// List returns mappings for a tenant, optionally narrowed by kind and system
func (r *GormMappingRepository) List(ctx context.Context, tenantID uuid.UUID, kind *sync.EntityKind, system *sync.SystemCode, page, pageSize int) ([]mapping.ProductMapping, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&mapping.ProductMapping{}).
		Where("tenant_id = ?", tenantID)

	if kind != nil && kind.IsValid() {
		query = query.Where("kind = ?", *kind)
	}
	if system != nil && system.IsValid() {
		query = query.Where("system = ?", *system)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	var mappings []mapping.ProductMapping
	if err := query.Order("created_at DESC").Find(&mappings).Error; err != nil {
		return nil, 0, err
	}
	return mappings, total, nil
}

// Delete removes a mapping
func (r *GormMappingRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Delete(&mapping.ProductMapping{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return mapping.ErrMappingNotFound
	}
	return nil
}

// Ensure GormMappingRepository implements mapping.Repository
var _ mapping.Repository = (*GormMappingRepository)(nil)
