package persistence

import (
	"context"
	"errors"

	"github.com/commercesync/backend/internal/domain/bulkops"
	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBulkOperationRepository implements bulkops.Repository using GORM
type GormBulkOperationRepository struct {
	db *gorm.DB
}

// NewGormBulkOperationRepository creates a new GormBulkOperationRepository
func NewGormBulkOperationRepository(db *gorm.DB) *GormBulkOperationRepository {
	return &GormBulkOperationRepository{db: db}
}

// Save creates or updates an operation
func (r *GormBulkOperationRepository) Save(ctx context.Context, op *bulkops.BulkOperation) error {
	return r.db.WithContext(ctx).Save(op).Error
}

// FindByID finds an operation by ID
func (r *GormBulkOperationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*bulkops.BulkOperation, error) {
	var op bulkops.BulkOperation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&op).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}

// List returns operations for a tenant, newest first
func (r *GormBulkOperationRepository) List(ctx context.Context, tenantID uuid.UUID, status *bulkops.OperationStatus, page, pageSize int) ([]bulkops.BulkOperation, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&bulkops.BulkOperation{}).
		Where("tenant_id = ?", tenantID)

	if status != nil && status.IsValid() {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	var ops []bulkops.BulkOperation
	if err := query.Order("created_at DESC").Find(&ops).Error; err != nil {
		return nil, 0, err
	}
	return ops, total, nil
}

// Ensure GormBulkOperationRepository implements bulkops.Repository
var _ bulkops.Repository = (*GormBulkOperationRepository)(nil)

// GormBulkRecordRepository implements bulkops.RecordRepository using GORM
type GormBulkRecordRepository struct {
	db *gorm.DB
}

// NewGormBulkRecordRepository creates a new GormBulkRecordRepository
func NewGormBulkRecordRepository(db *gorm.DB) *GormBulkRecordRepository {
	return &GormBulkRecordRepository{db: db}
}

// SaveBatch persists a batch of records
func (r *GormBulkRecordRepository) SaveBatch(ctx context.Context, records []*bulkops.BulkOperationRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(records, 500).Error
}

// Save persists one record
func (r *GormBulkRecordRepository) Save(ctx context.Context, record *bulkops.BulkOperationRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// ListByOperation returns all records of an operation ordered by index
func (r *GormBulkRecordRepository) ListByOperation(ctx context.Context, operationID uuid.UUID) ([]*bulkops.BulkOperationRecord, error) {
	var records []*bulkops.BulkOperationRecord
	if err := r.db.WithContext(ctx).
		Where("operation_id = ?", operationID).
		Order("record_index ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListSuccessful returns successfully applied records of an operation ordered
// by completion, newest first, so rollback can undo them in reverse order
func (r *GormBulkRecordRepository) ListSuccessful(ctx context.Context, operationID uuid.UUID) ([]*bulkops.BulkOperationRecord, error) {
	var records []*bulkops.BulkOperationRecord
	if err := r.db.WithContext(ctx).
		Where("operation_id = ? AND status = ?", operationID, bulkops.RecordStatusSuccess).
		Order("processed_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Ensure GormBulkRecordRepository implements bulkops.RecordRepository
var _ bulkops.RecordRepository = (*GormBulkRecordRepository)(nil)
