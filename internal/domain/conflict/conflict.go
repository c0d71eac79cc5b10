package conflict

import (
	"context"
	"time"

	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// ConflictType
// ---------------------------------------------------------------------------

// ConflictType classifies a detected divergence
type ConflictType string

const (
	ConflictTypeUpdate           ConflictType = "update_conflict"
	ConflictTypeDuplicate        ConflictType = "duplicate"
	ConflictTypeMissingReference ConflictType = "missing_reference"
	ConflictTypeValidationError  ConflictType = "validation_error"
)

// IsValid returns true if the conflict type is valid
func (t ConflictType) IsValid() bool {
	switch t {
	case ConflictTypeUpdate, ConflictTypeDuplicate, ConflictTypeMissingReference, ConflictTypeValidationError:
		return true
	default:
		return false
	}
}

// String returns the string representation of ConflictType
func (t ConflictType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// ResolutionAction
// ---------------------------------------------------------------------------

// ResolutionAction is the kind of decision a resolution carries
type ResolutionAction string

const (
	ActionAcceptSource ResolutionAction = "accept_source"
	ActionMerge        ResolutionAction = "merge"
	ActionManualReview ResolutionAction = "manual_review"
)

// String returns the string representation of ResolutionAction
func (a ResolutionAction) String() string {
	return string(a)
}

// ---------------------------------------------------------------------------
// ConflictSource
// ---------------------------------------------------------------------------

// ConflictSource is one system's view of the disputed entity
type ConflictSource struct {
	System    sync.SystemCode `json:"system"`
	Timestamp time.Time       `json:"timestamp"`
	Data      map[string]any  `json:"data"`
}

// ---------------------------------------------------------------------------
// DataConflict
// ---------------------------------------------------------------------------

// ReviewStatus tracks whether a persisted conflict still awaits an operator
type ReviewStatus string

const (
	ReviewStatusOpen     ReviewStatus = "open"
	ReviewStatusResolved ReviewStatus = "resolved"
)

// DataConflict is a detected divergence for one entity across two or more
// sources. Resolution is all or nothing per conflict.
type DataConflict struct {
	shared.BaseEntity
	TenantID uuid.UUID        `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Kind     sync.EntityKind  `gorm:"type:varchar(32);not null" json:"kind"`
	EntityID uuid.UUID        `gorm:"type:uuid;not null;index" json:"entity_id"`
	Type     ConflictType     `gorm:"type:varchar(32);not null" json:"type"`
	Sources  []ConflictSource `gorm:"serializer:json" json:"sources"`

	// Review fields are only meaningful once a conflict lands in manual review
	Status     ReviewStatus `gorm:"type:varchar(16);not null;default:'open'" json:"status"`
	ReviewNote string       `gorm:"type:text" json:"review_note,omitempty"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
}

// TableName returns the table name for GORM
func (DataConflict) TableName() string {
	return "data_conflicts"
}

// NewDataConflict creates a conflict over an entity seen by multiple sources
func NewDataConflict(tenantID uuid.UUID, kind sync.EntityKind, entityID uuid.UUID, conflictType ConflictType, sources []ConflictSource) (*DataConflict, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENTITY_KIND", "Unknown entity kind: "+kind.String())
	}
	if !conflictType.IsValid() {
		return nil, shared.NewDomainError("INVALID_CONFLICT_TYPE", "Unknown conflict type: "+conflictType.String())
	}
	if len(sources) < 2 && conflictType != ConflictTypeValidationError && conflictType != ConflictTypeMissingReference {
		return nil, shared.NewDomainError("INVALID_CONFLICT", "A conflict needs at least two sources")
	}
	if len(sources) == 0 {
		return nil, shared.NewDomainError("INVALID_CONFLICT", "A conflict needs at least one source")
	}

	return &DataConflict{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Kind:       kind,
		EntityID:   entityID,
		Type:       conflictType,
		Sources:    sources,
		Status:     ReviewStatusOpen,
	}, nil
}

// MarkResolved closes a conflict that went through manual review
func (c *DataConflict) MarkResolved(note string) error {
	if c.Status == ReviewStatusResolved {
		return shared.ErrInvalidState
	}
	now := time.Now()
	c.Status = ReviewStatusResolved
	c.ReviewNote = note
	c.ResolvedAt = &now
	c.UpdatedAt = now
	return nil
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Resolution is the resolver's decision for one conflict. Immutable once
// produced.
type Resolution struct {
	ConflictID uuid.UUID        `json:"conflict_id"`
	Action     ResolutionAction `json:"action"`
	Winner     *ConflictSource  `json:"winner,omitempty"`
	MergedData map[string]any   `json:"merged_data,omitempty"`
	Reason     string           `json:"reason"`
}

// NeedsReview reports whether the decision defers to an operator
func (r *Resolution) NeedsReview() bool {
	return r.Action == ActionManualReview
}

// Payload returns the data the store writer should apply, nil for manual review
func (r *Resolution) Payload() map[string]any {
	switch r.Action {
	case ActionAcceptSource:
		if r.Winner != nil {
			return r.Winner.Data
		}
		return nil
	case ActionMerge:
		return r.MergedData
	default:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Repository Interface
// ---------------------------------------------------------------------------

// Repository defines persistence for conflicts parked in manual review
type Repository interface {
	// Save creates or updates a conflict
	Save(ctx context.Context, c *DataConflict) error

	// FindByID finds a conflict by ID
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*DataConflict, error)

	// ListOpen returns unresolved conflicts, oldest first
	ListOpen(ctx context.Context, tenantID uuid.UUID, kind *sync.EntityKind, page, pageSize int) ([]DataConflict, int64, error)
}
