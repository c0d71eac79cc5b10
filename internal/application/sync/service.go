package syncapp

import (
	"context"

	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TriggerSyncRequest asks for a new sync run
type TriggerSyncRequest struct {
	Kind       string   `json:"kind" binding:"required"`
	Direction  string   `json:"direction" binding:"required"`
	System     string   `json:"system" binding:"required"`
	Warehouse  string   `json:"warehouse,omitempty"`
	ProductIDs []string `json:"product_ids,omitempty"`
}

// Validate checks the request and normalizes it into domain values
func (r *TriggerSyncRequest) Validate() (sync.EntityKind, sync.SyncDirection, sync.SystemCode, error) {
	kind := sync.EntityKind(r.Kind)
	if !kind.IsValid() {
		return "", "", "", shared.NewDomainError("INVALID_ENTITY_KIND", "Unknown entity kind: "+r.Kind)
	}
	direction := sync.SyncDirection(r.Direction)
	if !direction.IsValid() {
		return "", "", "", shared.NewDomainError("INVALID_DIRECTION", "Direction must be pull or push")
	}
	system := sync.SystemCode(r.System)
	if !system.IsExternal() {
		return "", "", "", shared.NewDomainError("INVALID_SYSTEM", "System must be a configured external platform")
	}
	return kind, direction, system, nil
}

// Service exposes sync job use cases to the transport layer
type Service struct {
	orchestrator *Orchestrator
	jobs         sync.SyncJobRepository
	logger       *zap.Logger
}

// NewService creates a new sync application service
func NewService(orchestrator *Orchestrator, jobs sync.SyncJobRepository, logger *zap.Logger) *Service {
	return &Service{
		orchestrator: orchestrator,
		jobs:         jobs,
		logger:       logger,
	}
}

// Trigger creates a job and runs it in the background, returning the
// persisted job immediately
func (s *Service) Trigger(ctx context.Context, tenantID uuid.UUID, req *TriggerSyncRequest) (*sync.SyncJob, error) {
	kind, direction, system, err := req.Validate()
	if err != nil {
		return nil, err
	}

	source, target := system, sync.SystemCodeInternal
	if direction == sync.DirectionPush {
		source, target = sync.SystemCodeInternal, system
	}
	job, err := sync.NewSyncJob(tenantID, kind, direction, source, target)
	if err != nil {
		return nil, err
	}
	job.Warehouse = req.Warehouse
	job.ProductIDs = req.ProductIDs

	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, err
	}

	go func() {
		// detached from the request's lifetime on purpose
		runCtx := context.Background()
		if _, err := s.orchestrator.Run(runCtx, job, nil); err != nil {
			s.logger.Error("background sync run failed",
				zap.String("job_id", job.ID.String()),
				zap.Error(err))
		}
	}()
	return job, nil
}

// RunNow executes a pending job synchronously, used by the scheduler
func (s *Service) RunNow(ctx context.Context, job *sync.SyncJob, onProgress ProgressFunc) (*sync.SyncResult, error) {
	return s.orchestrator.Run(ctx, job, onProgress)
}

// GetJob loads one job
func (s *Service) GetJob(ctx context.Context, tenantID, id uuid.UUID) (*sync.SyncJob, error) {
	return s.jobs.FindByID(ctx, tenantID, id)
}

// ListJobs returns jobs matching the filter
func (s *Service) ListJobs(ctx context.Context, tenantID uuid.UUID, filter sync.SyncJobFilter) ([]sync.SyncJob, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.jobs.List(ctx, tenantID, filter)
}
