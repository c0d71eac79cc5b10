package conflict

import (
	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
)

// EventTypeConflictParked is emitted when a conflict is parked for review
const EventTypeConflictParked = "conflict.parked"

const aggregateTypeDataConflict = "DataConflict"

// ConflictParkedEvent signals that sync divergence could not be resolved
// automatically and now waits for an operator decision
type ConflictParkedEvent struct {
	shared.BaseDomainEvent
	Kind sync.EntityKind `json:"kind"`
	Type ConflictType    `json:"type"`
}

// NewConflictParkedEvent creates a new conflict parked event
func NewConflictParkedEvent(c *DataConflict) *ConflictParkedEvent {
	return &ConflictParkedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeConflictParked, aggregateTypeDataConflict, c.ID, c.TenantID),
		Kind:            c.Kind,
		Type:            c.Type,
	}
}
