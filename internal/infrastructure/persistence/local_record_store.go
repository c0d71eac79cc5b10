package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/commercesync/backend/internal/domain/mapping"
	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LocalRecordModel is the persistence model for canonical local records.
// The flexible field payload is stored as JSON, the columns used in lookups
// and sync filters are lifted out.
type LocalRecordModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_local_tenant_kind,priority:1"`
	Kind          sync.EntityKind `gorm:"type:varchar(32);not null;index:idx_local_tenant_kind,priority:2"`
	SKU           string          `gorm:"type:varchar(128);index"`
	WarehouseCode string          `gorm:"type:varchar(64);index"`
	Fields        map[string]any  `gorm:"serializer:json"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (LocalRecordModel) TableName() string {
	return "local_records"
}

// ToDomain converts the model to a domain local record
func (m *LocalRecordModel) ToDomain() *sync.LocalRecord {
	return &sync.LocalRecord{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Kind:      m.Kind,
		SKU:       m.SKU,
		Fields:    m.Fields,
		UpdatedAt: m.UpdatedAt,
	}
}

func localRecordModelFromDomain(r *sync.LocalRecord) *LocalRecordModel {
	warehouse := ""
	if w, ok := r.Fields["warehouse_code"].(string); ok {
		warehouse = w
	}
	return &LocalRecordModel{
		ID:            r.ID,
		TenantID:      r.TenantID,
		Kind:          r.Kind,
		SKU:           r.SKU,
		WarehouseCode: warehouse,
		Fields:        r.Fields,
		UpdatedAt:     r.UpdatedAt,
	}
}

// GormLocalStore implements the internal store for synchronized entities.
// It also serves SKU lookups during automatic mapping.
type GormLocalStore struct {
	db *gorm.DB
}

// NewGormLocalStore creates a new GormLocalStore
func NewGormLocalStore(db *gorm.DB) *GormLocalStore {
	return &GormLocalStore{db: db}
}

// Get loads one local record by ID
func (s *GormLocalStore) Get(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, id uuid.UUID) (*sync.LocalRecord, error) {
	var model LocalRecordModel
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND kind = ? AND id = ?", tenantID, kind, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GetPage returns one page of local records using keyset pagination. The
// cursor is the ID of the last record on the previous page.
func (s *GormLocalStore) GetPage(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, filters sync.PageFilters, cursor string, limit int) (*sync.LocalPage, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.db.WithContext(ctx).
		Model(&LocalRecordModel{}).
		Where("tenant_id = ? AND kind = ?", tenantID, kind)

	if filters.WarehouseCode != "" {
		query = query.Where("warehouse_code = ?", filters.WarehouseCode)
	}
	if len(filters.ProductIDs) > 0 {
		query = query.Where("id IN ?", filters.ProductIDs)
	}
	if filters.UpdatedSince != nil {
		query = query.Where("updated_at > ?", *filters.UpdatedSince)
	}
	if cursor != "" {
		after, err := uuid.Parse(cursor)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_CURSOR", "Cursor is not a valid record ID")
		}
		query = query.Where("id > ?", after)
	}

	// Fetch one extra row to know whether another page exists
	var models []LocalRecordModel
	if err := query.Order("id ASC").Limit(limit + 1).Find(&models).Error; err != nil {
		return nil, err
	}

	page := &sync.LocalPage{}
	if len(models) > limit {
		page.HasMore = true
		models = models[:limit]
	}
	page.Items = make([]sync.LocalRecord, len(models))
	for i, m := range models {
		page.Items[i] = *m.ToDomain()
	}
	if page.HasMore && len(models) > 0 {
		page.NextCursor = models[len(models)-1].ID.String()
	}
	return page, nil
}

// Upsert creates or updates a local record, returning its ID and whether it
// was created
func (s *GormLocalStore) Upsert(ctx context.Context, record *sync.LocalRecord) (uuid.UUID, bool, error) {
	model := localRecordModelFromDomain(record)
	model.UpdatedAt = time.Now()

	if model.ID == uuid.Nil {
		model.ID = uuid.New()
		model.CreatedAt = model.UpdatedAt
		if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
			return uuid.Nil, false, err
		}
		return model.ID, true, nil
	}

	result := s.db.WithContext(ctx).
		Model(&LocalRecordModel{}).
		Where("id = ? AND tenant_id = ?", model.ID, model.TenantID).
		Updates(map[string]any{
			"sku":            model.SKU,
			"warehouse_code": model.WarehouseCode,
			"fields":         model.Fields,
			"updated_at":     model.UpdatedAt,
		})
	if result.Error != nil {
		return uuid.Nil, false, result.Error
	}
	if result.RowsAffected == 0 {
		model.CreatedAt = model.UpdatedAt
		if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
			return uuid.Nil, false, err
		}
		return model.ID, true, nil
	}
	return model.ID, false, nil
}

// Delete removes a local record
func (s *GormLocalStore) Delete(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, id uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("tenant_id = ? AND kind = ?", tenantID, kind).
		Delete(&LocalRecordModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindLocalIDsBySKU returns the IDs of local records carrying a SKU
func (s *GormLocalStore) FindLocalIDsBySKU(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, sku string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := s.db.WithContext(ctx).
		Model(&LocalRecordModel{}).
		Where("tenant_id = ? AND kind = ? AND sku = ?", tenantID, kind, sku).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Ensure GormLocalStore satisfies both ports
var (
	_ sync.StoreWriter    = (*GormLocalStore)(nil)
	_ mapping.LocalLookup = (*GormLocalStore)(nil)
)
