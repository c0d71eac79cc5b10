package bulkops

import (
	"context"
	"time"

	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
)

// Default chunking parameters
const (
	DefaultChunkSize     = 500
	DefaultMaxConcurrent = 3
)

// ---------------------------------------------------------------------------
// OperationType
// ---------------------------------------------------------------------------

// OperationType is the kind of bulk mutation being run
type OperationType string

const (
	OperationTypeImport OperationType = "import"
	OperationTypeUpdate OperationType = "update"
	OperationTypeDelete OperationType = "delete"
	OperationTypeExport OperationType = "export"
)

// IsValid returns true if the operation type is valid
func (t OperationType) IsValid() bool {
	switch t {
	case OperationTypeImport, OperationTypeUpdate, OperationTypeDelete, OperationTypeExport:
		return true
	default:
		return false
	}
}

// Mutates reports whether the operation writes to the store
func (t OperationType) Mutates() bool {
	return t != OperationTypeExport
}

// String returns the string representation of OperationType
func (t OperationType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// OperationStatus
// ---------------------------------------------------------------------------

// OperationStatus is the lifecycle state of a bulk operation
type OperationStatus string

const (
	OperationStatusPending             OperationStatus = "pending"
	OperationStatusInProgress          OperationStatus = "in_progress"
	OperationStatusCompleted           OperationStatus = "completed"
	OperationStatusCompletedWithErrors OperationStatus = "completed_with_errors"
	OperationStatusRolledBack          OperationStatus = "rolled_back"
	OperationStatusFailed              OperationStatus = "failed"
	OperationStatusCancelled           OperationStatus = "cancelled"
)

// IsValid returns true if the status is valid
func (s OperationStatus) IsValid() bool {
	switch s {
	case OperationStatusPending, OperationStatusInProgress, OperationStatusCompleted,
		OperationStatusCompletedWithErrors, OperationStatusRolledBack,
		OperationStatusFailed, OperationStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status is a final state
func (s OperationStatus) IsTerminal() bool {
	switch s {
	case OperationStatusCompleted, OperationStatusCompletedWithErrors,
		OperationStatusRolledBack, OperationStatusFailed, OperationStatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of OperationStatus
func (s OperationStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// BulkOperation Aggregate
// ---------------------------------------------------------------------------

// BulkOperation is one chunked mass mutation run against the internal store
type BulkOperation struct {
	shared.TenantAggregateRoot
	Type   OperationType   `gorm:"type:varchar(16);not null"`
	Kind   sync.EntityKind `gorm:"type:varchar(32);not null"`
	Status OperationStatus `gorm:"type:varchar(32);not null;index"`

	ChunkSize     int `gorm:"not null"`
	MaxConcurrent int `gorm:"not null"`

	ValidateOnly    bool `gorm:"not null;default:false"`
	RollbackOnError bool `gorm:"not null;default:false"`

	TotalRecords int `gorm:"not null;default:0"`
	SuccessCount int `gorm:"not null;default:0"`
	FailedCount  int `gorm:"not null;default:0"`

	// CancelRequested is the cooperative cancellation flag, checked by the
	// executor between chunks
	CancelRequested bool `gorm:"not null;default:false"`

	// InputFileKey and ReportFileKey locate the uploaded source file and
	// the generated outcome report in object storage
	InputFileKey  string `gorm:"type:varchar(512)"`
	ReportFileKey string `gorm:"type:varchar(512)"`

	Warnings  []string  `gorm:"serializer:json"`
	LastError string    `gorm:"type:text"`
	CreatedBy uuid.UUID `gorm:"type:uuid"`

	StartedAt   *time.Time
	CompletedAt *time.Time
}

// TableName returns the table name for GORM
func (BulkOperation) TableName() string {
	return "bulk_operations"
}

// NewBulkOperation creates a new pending bulk operation
func NewBulkOperation(tenantID uuid.UUID, opType OperationType, kind sync.EntityKind, createdBy uuid.UUID) (*BulkOperation, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !opType.IsValid() {
		return nil, shared.NewDomainError("INVALID_OPERATION_TYPE", "Unknown operation type: "+opType.String())
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENTITY_KIND", "Unknown entity kind: "+kind.String())
	}

	return &BulkOperation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Type:                opType,
		Kind:                kind,
		Status:              OperationStatusPending,
		ChunkSize:           DefaultChunkSize,
		MaxConcurrent:       DefaultMaxConcurrent,
		CreatedBy:           createdBy,
	}, nil
}

// SetChunking overrides the default chunk size and concurrency
func (o *BulkOperation) SetChunking(chunkSize, maxConcurrent int) error {
	if o.Status != OperationStatusPending {
		return shared.ErrInvalidState
	}
	if chunkSize > 0 {
		o.ChunkSize = chunkSize
	}
	if maxConcurrent > 0 {
		o.MaxConcurrent = maxConcurrent
	}
	return nil
}

// Start transitions the operation to in_progress
func (o *BulkOperation) Start(totalRecords int) error {
	if o.Status != OperationStatusPending {
		return shared.ErrInvalidState
	}
	now := time.Now()
	o.Status = OperationStatusInProgress
	o.TotalRecords = totalRecords
	o.StartedAt = &now
	o.UpdatedAt = now
	o.IncrementVersion()
	return nil
}

// RecordChunk accumulates the outcome of one completed chunk
func (o *BulkOperation) RecordChunk(succeeded, failed int) {
	o.SuccessCount += succeeded
	o.FailedCount += failed
	o.UpdatedAt = time.Now()
}

// AddWarning attaches a non-fatal caveat surfaced to the caller
func (o *BulkOperation) AddWarning(msg string) {
	o.Warnings = append(o.Warnings, msg)
}

// RequestCancel sets the cooperative cancellation flag. Chunks already
// dispatched run to completion.
func (o *BulkOperation) RequestCancel() error {
	if o.Status.IsTerminal() {
		return shared.ErrInvalidState
	}
	o.CancelRequested = true
	o.UpdatedAt = time.Now()
	return nil
}

// Complete settles the terminal status from the accumulated counts
func (o *BulkOperation) Complete() error {
	if o.Status != OperationStatusInProgress {
		return shared.ErrInvalidState
	}
	now := time.Now()
	switch {
	case o.CancelRequested:
		o.Status = OperationStatusCancelled
	case o.FailedCount > 0:
		o.Status = OperationStatusCompletedWithErrors
	default:
		o.Status = OperationStatusCompleted
	}
	o.CompletedAt = &now
	o.UpdatedAt = now
	o.IncrementVersion()
	return nil
}

// MarkRolledBack transitions the operation to rolled_back
func (o *BulkOperation) MarkRolledBack() {
	now := time.Now()
	o.Status = OperationStatusRolledBack
	o.CompletedAt = &now
	o.UpdatedAt = now
	o.IncrementVersion()
}

// Fail transitions the operation to failed with a fatal error
func (o *BulkOperation) Fail(errMsg string) {
	now := time.Now()
	o.Status = OperationStatusFailed
	o.LastError = errMsg
	o.CompletedAt = &now
	o.UpdatedAt = now
	o.IncrementVersion()
}

// Progress returns processed counts and a percentage for polling callers
func (o *BulkOperation) Progress() (processed, total int, percent float64) {
	processed = o.SuccessCount + o.FailedCount
	total = o.TotalRecords
	if total > 0 {
		percent = float64(processed) / float64(total) * 100
	}
	return processed, total, percent
}

// ---------------------------------------------------------------------------
// Repository Interface
// ---------------------------------------------------------------------------

// Repository defines persistence for bulk operations
type Repository interface {
	// Save creates or updates an operation
	Save(ctx context.Context, op *BulkOperation) error

	// FindByID finds an operation by ID
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*BulkOperation, error)

	// List returns operations for a tenant, newest first
	List(ctx context.Context, tenantID uuid.UUID, status *OperationStatus, page, pageSize int) ([]BulkOperation, int64, error)
}
