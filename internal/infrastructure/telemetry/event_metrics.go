package telemetry

import (
	"context"
	"time"

	"github.com/commercesync/backend/internal/domain/conflict"
	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
)

// SyncEventHandler feeds domain events into the sync instrument set. It
// subscribes to terminal sync job events and parked conflicts so metric
// recording stays off the hot path.
type SyncEventHandler struct {
	metrics *SyncMetrics
}

// NewSyncEventHandler creates an event handler recording onto metrics.
func NewSyncEventHandler(metrics *SyncMetrics) *SyncEventHandler {
	return &SyncEventHandler{metrics: metrics}
}

// EventTypes returns the event types this handler consumes.
func (h *SyncEventHandler) EventTypes() []string {
	return []string{
		sync.EventTypeSyncCompleted,
		sync.EventTypeSyncFailed,
		conflict.EventTypeConflictParked,
	}
}

// Handle records the metric matching the event. Unknown events are ignored.
func (h *SyncEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *sync.SyncCompletedEvent:
		h.metrics.RecordSyncJob(ctx,
			e.System.String(), e.Kind.String(), e.Status.String(),
			time.Duration(e.DurationSeconds*float64(time.Second)),
			int64(e.RecordsProcessed), int64(e.RecordsFailed))
	case *sync.SyncFailedEvent:
		h.metrics.RecordSyncJob(ctx,
			e.System.String(), e.Kind.String(), string(sync.JobStatusFailed),
			time.Duration(e.DurationSeconds*float64(time.Second)),
			int64(e.RecordsProcessed), 0)
	case *conflict.ConflictParkedEvent:
		h.metrics.RecordConflictDetected(ctx, e.Kind.String())
	}
	return nil
}
