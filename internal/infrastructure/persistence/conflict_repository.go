package persistence

import (
	"context"
	"errors"

	"github.com/commercesync/backend/internal/domain/conflict"
	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormConflictRepository implements conflict.Repository using GORM
type GormConflictRepository struct {
	db *gorm.DB
}

// NewGormConflictRepository creates a new GormConflictRepository
func NewGormConflictRepository(db *gorm.DB) *GormConflictRepository {
	return &GormConflictRepository{db: db}
}

// Save creates or updates a conflict
func (r *GormConflictRepository) Save(ctx context.Context, c *conflict.DataConflict) error {
	return r.db.WithContext(ctx).Save(c).Error
}

// FindByID finds a conflict by ID
func (r *GormConflictRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*conflict.DataConflict, error) {
	var c conflict.DataConflict
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListOpen returns unresolved conflicts, oldest first
func (r *GormConflictRepository) ListOpen(ctx context.Context, tenantID uuid.UUID, kind *sync.EntityKind, page, pageSize int) ([]conflict.DataConflict, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&conflict.DataConflict{}).
		Where("tenant_id = ? AND status = ?", tenantID, conflict.ReviewStatusOpen)

	if kind != nil && kind.IsValid() {
		query = query.Where("kind = ?", *kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	var conflicts []conflict.DataConflict
	if err := query.Order("created_at ASC").Find(&conflicts).Error; err != nil {
		return nil, 0, err
	}
	return conflicts, total, nil
}

// Ensure GormConflictRepository implements conflict.Repository
var _ conflict.Repository = (*GormConflictRepository)(nil)
