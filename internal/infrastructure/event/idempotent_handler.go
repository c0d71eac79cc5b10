package event

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/commercesync/backend/internal/domain/shared"
)

// IdempotencyStats is a snapshot of dedup counters
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// IdempotentHandler wraps an EventHandler so redelivered events run at most
// once within the configured TTL. Webhook-triggered events go through this
// wrapper because platforms redeliver on slow acknowledgements.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	logger  *zap.Logger

	processed atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64
}

// NewIdempotentHandler wraps the given handler with dedup checking
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	config shared.IdempotencyConfig,
	logger *zap.Logger,
) *IdempotentHandler {
	return &IdempotentHandler{
		handler: handler,
		store:   store,
		config:  config,
		logger:  logger,
	}
}

// Handle processes the event unless it was already seen. When the dedup
// store errors, the event is processed anyway; a duplicate side effect beats
// a dropped event.
func (h *IdempotentHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, evt)
	}

	newlyMarked, err := h.store.MarkProcessed(ctx, evt.EventID().String(), h.config.TTL)
	if err != nil {
		h.logger.Warn("idempotency check failed, processing anyway",
			zap.String("event_id", evt.EventID().String()),
			zap.Error(err))
	} else if !newlyMarked {
		h.duplicate.Add(1)
		h.logger.Debug("duplicate event skipped",
			zap.String("event_type", evt.EventType()),
			zap.String("event_id", evt.EventID().String()))
		return nil
	}

	if err := h.handler.Handle(ctx, evt); err != nil {
		h.failed.Add(1)
		return err
	}
	h.processed.Add(1)
	return nil
}

// EventTypes delegates to the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Stats returns the current dedup counters
func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: h.processed.Load(),
		EventsDuplicate: h.duplicate.Load(),
		EventsFailed:    h.failed.Load(),
	}
}

// Ensure IdempotentHandler implements EventHandler
var _ shared.EventHandler = (*IdempotentHandler)(nil)
