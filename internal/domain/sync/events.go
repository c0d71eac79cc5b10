package sync

import (
	"github.com/commercesync/backend/internal/domain/shared"
)

// Event types for sync jobs
const (
	EventTypeSyncStarted   = "sync.started"
	EventTypeSyncCompleted = "sync.completed"
	EventTypeSyncFailed    = "sync.failed"
)

const aggregateTypeSyncJob = "SyncJob"

// SyncStartedEvent is emitted when a sync job begins running
type SyncStartedEvent struct {
	shared.BaseDomainEvent
	Kind      EntityKind    `json:"kind"`
	Direction SyncDirection `json:"direction"`
	Source    SystemCode    `json:"source"`
	Target    SystemCode    `json:"target"`
}

// NewSyncStartedEvent creates a new sync started event
func NewSyncStartedEvent(job *SyncJob) *SyncStartedEvent {
	return &SyncStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSyncStarted, aggregateTypeSyncJob, job.ID, job.TenantID),
		Kind:            job.Kind,
		Direction:       job.Direction,
		Source:          job.Source,
		Target:          job.Target,
	}
}

// SyncCompletedEvent is emitted when a sync job reaches a terminal success state
type SyncCompletedEvent struct {
	shared.BaseDomainEvent
	Kind             EntityKind `json:"kind"`
	System           SystemCode `json:"system"`
	Status           JobStatus  `json:"status"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsUpdated   int        `json:"records_updated"`
	RecordsFailed    int        `json:"records_failed"`
	DurationSeconds  float64    `json:"duration_seconds"`
}

// NewSyncCompletedEvent creates a new sync completed event
func NewSyncCompletedEvent(job *SyncJob) *SyncCompletedEvent {
	return &SyncCompletedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeSyncCompleted, aggregateTypeSyncJob, job.ID, job.TenantID),
		Kind:             job.Kind,
		System:           job.ExternalSystem(),
		Status:           job.Status,
		RecordsProcessed: job.RecordsProcessed,
		RecordsUpdated:   job.RecordsUpdated,
		RecordsFailed:    job.RecordsFailed,
		DurationSeconds:  job.runSeconds(),
	}
}

// SyncFailedEvent is emitted when a sync job aborts on a fatal error
type SyncFailedEvent struct {
	shared.BaseDomainEvent
	Kind             EntityKind `json:"kind"`
	System           SystemCode `json:"system"`
	Reason           string     `json:"reason"`
	RecordsProcessed int        `json:"records_processed"`
	DurationSeconds  float64    `json:"duration_seconds"`
}

// NewSyncFailedEvent creates a new sync failed event
func NewSyncFailedEvent(job *SyncJob, reason string) *SyncFailedEvent {
	return &SyncFailedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeSyncFailed, aggregateTypeSyncJob, job.ID, job.TenantID),
		Kind:             job.Kind,
		System:           job.ExternalSystem(),
		Reason:           reason,
		RecordsProcessed: job.RecordsProcessed,
		DurationSeconds:  job.runSeconds(),
	}
}
