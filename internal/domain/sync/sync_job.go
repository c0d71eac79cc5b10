package sync

import (
	"context"
	"time"

	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// JobStatus
// ---------------------------------------------------------------------------

// JobStatus represents the lifecycle state of a sync job
type JobStatus string

const (
	JobStatusPending             JobStatus = "pending"
	JobStatusInProgress          JobStatus = "in_progress"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	JobStatusFailed              JobStatus = "failed"
)

// IsValid returns true if the status is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted,
		JobStatusCompletedWithErrors, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status is a final state
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// SyncJob Aggregate
// ---------------------------------------------------------------------------

// SyncJob represents one synchronization run between two systems.
// It is owned exclusively by the orchestrator while running.
type SyncJob struct {
	shared.TenantAggregateRoot
	Kind      EntityKind    `gorm:"type:varchar(32);not null;index"`
	Direction SyncDirection `gorm:"type:varchar(8);not null"`
	Source    SystemCode    `gorm:"type:varchar(32);not null"`
	Target    SystemCode    `gorm:"type:varchar(32);not null"`
	Status    JobStatus     `gorm:"type:varchar(32);not null;index"`

	// Filters narrows the records this job covers
	Warehouse  string   `gorm:"type:varchar(64)"`
	ProductIDs []string `gorm:"serializer:json"`

	// Cursor is the connector's opaque pagination state, persisted so an
	// interrupted job records where it stopped
	Cursor string `gorm:"type:text"`

	RecordsProcessed int `gorm:"not null;default:0"`
	RecordsUpdated   int `gorm:"not null;default:0"`
	RecordsFailed    int `gorm:"not null;default:0"`

	LastError   string `gorm:"type:text"`
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// TableName returns the table name for GORM
func (SyncJob) TableName() string {
	return "sync_jobs"
}

// NewSyncJob creates a new pending sync job
func NewSyncJob(tenantID uuid.UUID, kind EntityKind, direction SyncDirection, source, target SystemCode) (*SyncJob, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENTITY_KIND", "Unknown entity kind: "+kind.String())
	}
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Sync direction must be pull or push")
	}
	if !source.IsValid() || !target.IsValid() {
		return nil, shared.NewDomainError("INVALID_SYSTEM", "Unknown source or target system")
	}
	if source == target {
		return nil, shared.NewDomainError("INVALID_SYSTEM", "Source and target systems must differ")
	}
	if direction == DirectionPull && target != SystemCodeInternal {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Pull jobs must target the internal store")
	}
	if direction == DirectionPush && source != SystemCodeInternal {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Push jobs must source the internal store")
	}

	return &SyncJob{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Kind:                kind,
		Direction:           direction,
		Source:              source,
		Target:              target,
		Status:              JobStatusPending,
	}, nil
}

// ExternalSystem returns whichever side of the job is not the internal store
func (j *SyncJob) ExternalSystem() SystemCode {
	if j.Direction == DirectionPull {
		return j.Source
	}
	return j.Target
}

// Filters returns the page filters configured on this job
func (j *SyncJob) Filters() PageFilters {
	return PageFilters{
		WarehouseCode: j.Warehouse,
		ProductIDs:    j.ProductIDs,
	}
}

// Start transitions the job to in_progress
func (j *SyncJob) Start() error {
	if j.Status != JobStatusPending {
		return shared.ErrInvalidState
	}
	now := time.Now()
	j.Status = JobStatusInProgress
	j.StartedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()
	j.AddDomainEvent(NewSyncStartedEvent(j))
	return nil
}

// RecordPage accumulates the outcome of one consumed page
func (j *SyncJob) RecordPage(processed, updated, failed int, nextCursor string) {
	j.RecordsProcessed += processed
	j.RecordsUpdated += updated
	j.RecordsFailed += failed
	j.Cursor = nextCursor
	j.UpdatedAt = time.Now()
}

// Complete transitions the job to its terminal success state. The job
// finishes completed_with_errors when any record failed.
func (j *SyncJob) Complete() error {
	if j.Status != JobStatusInProgress {
		return shared.ErrInvalidState
	}
	now := time.Now()
	if j.RecordsFailed > 0 {
		j.Status = JobStatusCompletedWithErrors
	} else {
		j.Status = JobStatusCompleted
	}
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()
	j.AddDomainEvent(NewSyncCompletedEvent(j))
	return nil
}

// Fail transitions the job to failed with the fatal error message
func (j *SyncJob) Fail(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.LastError = errMsg
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()
	j.AddDomainEvent(NewSyncFailedEvent(j, errMsg))
}

// runSeconds reports how long the job ran. Zero until both timestamps exist.
func (j *SyncJob) runSeconds() float64 {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt).Seconds()
}

// ---------------------------------------------------------------------------
// SyncResult
// ---------------------------------------------------------------------------

// RecordError captures one per-record failure with its natural key
type RecordError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// SyncResult summarizes a completed sync run
type SyncResult struct {
	Success          bool          `json:"success"`
	RecordsProcessed int           `json:"records_processed"`
	RecordsUpdated   int           `json:"records_updated"`
	RecordsFailed    int           `json:"records_failed"`
	Errors           []RecordError `json:"errors,omitempty"`
}

// AddError records one per-record failure
func (r *SyncResult) AddError(key, message string) {
	r.RecordsFailed++
	r.Errors = append(r.Errors, RecordError{Key: key, Message: message})
}

// ---------------------------------------------------------------------------
// SyncJobRepository Interface
// ---------------------------------------------------------------------------

// SyncJobFilter defines filter criteria for listing sync jobs
type SyncJobFilter struct {
	Kind     *EntityKind
	Status   *JobStatus
	System   *SystemCode
	Page     int
	PageSize int
}

// SyncJobRepository defines persistence for sync jobs
type SyncJobRepository interface {
	// Save creates or updates a job
	Save(ctx context.Context, job *SyncJob) error

	// FindByID finds a job by its ID
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SyncJob, error)

	// FindRunning returns all jobs currently in progress for a tenant
	FindRunning(ctx context.Context, tenantID uuid.UUID) ([]SyncJob, error)

	// List returns jobs matching the filter, newest first
	List(ctx context.Context, tenantID uuid.UUID, filter SyncJobFilter) ([]SyncJob, int64, error)
}
