package persistence

import (
	"context"
	"errors"

	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSyncJobRepository implements SyncJobRepository using GORM
type GormSyncJobRepository struct {
	db *gorm.DB
}

// NewGormSyncJobRepository creates a new GormSyncJobRepository
func NewGormSyncJobRepository(db *gorm.DB) *GormSyncJobRepository {
	return &GormSyncJobRepository{db: db}
}

// Save creates or updates a job
func (r *GormSyncJobRepository) Save(ctx context.Context, job *sync.SyncJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// FindByID finds a job by its ID
func (r *GormSyncJobRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sync.SyncJob, error) {
	var job sync.SyncJob
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// FindRunning returns all jobs currently in progress for a tenant
func (r *GormSyncJobRepository) FindRunning(ctx context.Context, tenantID uuid.UUID) ([]sync.SyncJob, error) {
	var jobs []sync.SyncJob
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, sync.JobStatusInProgress).
		Order("started_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// List returns jobs matching the filter, newest first
func (r *GormSyncJobRepository) List(ctx context.Context, tenantID uuid.UUID, filter sync.SyncJobFilter) ([]sync.SyncJob, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&sync.SyncJob{}).
		Where("tenant_id = ?", tenantID)

	if filter.Kind != nil && filter.Kind.IsValid() {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Status != nil && filter.Status.IsValid() {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.System != nil && filter.System.IsValid() {
		query = query.Where("(source = ? OR target = ?)", *filter.System, *filter.System)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var jobs []sync.SyncJob
	if err := query.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// Ensure GormSyncJobRepository implements SyncJobRepository
var _ sync.SyncJobRepository = (*GormSyncJobRepository)(nil)
