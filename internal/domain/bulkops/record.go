package bulkops

import (
	"context"
	"time"

	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// RecordStatus
// ---------------------------------------------------------------------------

// RecordStatus is the outcome of one row within a bulk operation
type RecordStatus string

const (
	RecordStatusPending    RecordStatus = "pending"
	RecordStatusSuccess    RecordStatus = "success"
	RecordStatusFailed     RecordStatus = "failed"
	RecordStatusSkipped    RecordStatus = "skipped"
	RecordStatusRolledBack RecordStatus = "rolled_back"
)

// String returns the string representation of RecordStatus
func (s RecordStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// RecordAction
// ---------------------------------------------------------------------------

// RecordAction is what the executor did with one row
type RecordAction string

const (
	RecordActionCreate   RecordAction = "create"
	RecordActionUpdate   RecordAction = "update"
	RecordActionDelete   RecordAction = "delete"
	RecordActionValidate RecordAction = "validate"
)

// String returns the string representation of RecordAction
func (a RecordAction) String() string {
	return string(a)
}

// ---------------------------------------------------------------------------
// BulkOperationRecord
// ---------------------------------------------------------------------------

// BulkOperationRecord is the row-level outcome of one input record. Append
// only, mutated after the fact solely to mark rollback.
type BulkOperationRecord struct {
	shared.BaseEntity
	OperationID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_bulk_record,priority:1"`
	RecordIndex int          `gorm:"not null;uniqueIndex:idx_bulk_record,priority:2"`
	Action      RecordAction `gorm:"type:varchar(16);not null"`
	Status      RecordStatus `gorm:"type:varchar(16);not null"`
	Error       string       `gorm:"type:text"`

	// EntityID is set once the record resolves to a store row
	EntityID *uuid.UUID `gorm:"type:uuid"`

	// BeforeData captures the pre-mutation state needed for rollback.
	// Empty for creates, always empty for deletes (which is why deletes
	// cannot be rolled back).
	BeforeData map[string]any `gorm:"serializer:json"`
	AfterData  map[string]any `gorm:"serializer:json"`

	ProcessedAt *time.Time
}

// TableName returns the table name for GORM
func (BulkOperationRecord) TableName() string {
	return "bulk_operation_records"
}

// NewBulkOperationRecord creates a pending row for one input record
func NewBulkOperationRecord(operationID uuid.UUID, index int) *BulkOperationRecord {
	return &BulkOperationRecord{
		BaseEntity:  shared.NewBaseEntity(),
		OperationID: operationID,
		RecordIndex: index,
		Status:      RecordStatusPending,
	}
}

// MarkSuccess records a successfully applied mutation
func (r *BulkOperationRecord) MarkSuccess(action RecordAction, entityID *uuid.UUID, before, after map[string]any) {
	now := time.Now()
	r.Action = action
	r.Status = RecordStatusSuccess
	r.EntityID = entityID
	r.BeforeData = before
	r.AfterData = after
	r.ProcessedAt = &now
	r.UpdatedAt = now
}

// MarkFailed records a per-record failure
func (r *BulkOperationRecord) MarkFailed(action RecordAction, errMsg string) {
	now := time.Now()
	r.Action = action
	r.Status = RecordStatusFailed
	r.Error = errMsg
	r.ProcessedAt = &now
	r.UpdatedAt = now
}

// MarkSkipped records a row never attempted, typically after a rollback
// trigger halted intake
func (r *BulkOperationRecord) MarkSkipped(reason string) {
	now := time.Now()
	r.Status = RecordStatusSkipped
	r.Error = reason
	r.ProcessedAt = &now
	r.UpdatedAt = now
}

// MarkRolledBack flags a previously successful row as reverted
func (r *BulkOperationRecord) MarkRolledBack() error {
	if r.Status != RecordStatusSuccess {
		return shared.ErrInvalidState
	}
	r.Status = RecordStatusRolledBack
	r.UpdatedAt = time.Now()
	return nil
}

// CanRollback reports whether the row's mutation is reversible
func (r *BulkOperationRecord) CanRollback() bool {
	if r.Status != RecordStatusSuccess {
		return false
	}
	switch r.Action {
	case RecordActionCreate:
		return r.EntityID != nil
	case RecordActionUpdate:
		return len(r.BeforeData) > 0
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// RecordRepository Interface
// ---------------------------------------------------------------------------

// RecordRepository defines persistence for per-row outcomes
type RecordRepository interface {
	// SaveBatch persists a batch of records
	SaveBatch(ctx context.Context, records []*BulkOperationRecord) error

	// Save persists one record
	Save(ctx context.Context, record *BulkOperationRecord) error

	// ListByOperation returns all records of an operation ordered by index
	ListByOperation(ctx context.Context, operationID uuid.UUID) ([]*BulkOperationRecord, error)

	// ListSuccessful returns successfully applied records of an operation
	// ordered by completion, newest first, for reverse-order rollback
	ListSuccessful(ctx context.Context, operationID uuid.UUID) ([]*BulkOperationRecord, error)
}
