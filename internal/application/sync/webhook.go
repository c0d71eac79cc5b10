package syncapp

import (
	"context"
	"strconv"
	"time"

	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// topicKinds maps webhook topics to the entity kind they carry. Topics not
// listed here are accepted and ignored so new platform event types never
// break ingestion.
var topicKinds = map[string]sync.EntityKind{
	"products/create":          sync.EntityKindProduct,
	"products/update":          sync.EntityKindProduct,
	"inventory_levels/update":  sync.EntityKindInventory,
	"inventory_levels/connect": sync.EntityKindInventory,
	"customers/create":         sync.EntityKindCustomer,
	"customers/update":         sync.EntityKindCustomer,
	"orders/create":            sync.EntityKindOrder,
	"orders/updated":           sync.EntityKindOrder,
	"price_rules/update":       sync.EntityKindPrice,
}

// WebhookEvent is one delivery from an external platform. Signature
// verification happens upstream in the transport layer.
type WebhookEvent struct {
	DeliveryID string
	System     sync.SystemCode
	Topic      string
	Payload    map[string]any
	ReceivedAt time.Time
}

// WebhookHandler feeds single webhook deliveries through the same pipeline
// a pull sync uses, deduplicating replayed deliveries.
type WebhookHandler struct {
	orchestrator *Orchestrator
	idempotency  shared.IdempotencyStore
	dedupTTL     time.Duration
	logger       *zap.Logger
}

// NewWebhookHandler creates a new webhook handler. A non-positive dedupTTL
// falls back to the default retention window.
func NewWebhookHandler(orchestrator *Orchestrator, idempotency shared.IdempotencyStore, dedupTTL time.Duration, logger *zap.Logger) *WebhookHandler {
	if dedupTTL <= 0 {
		dedupTTL = shared.DefaultIdempotencyConfig().TTL
	}
	return &WebhookHandler{
		orchestrator: orchestrator,
		idempotency:  idempotency,
		dedupTTL:     dedupTTL,
		logger:       logger,
	}
}

// Handle processes one delivery. Unknown topics and replayed deliveries
// return a nil error and an empty result.
func (h *WebhookHandler) Handle(ctx context.Context, tenantID uuid.UUID, event *WebhookEvent) (*sync.SyncResult, error) {
	kind, known := topicKinds[event.Topic]
	if !known {
		h.logger.Debug("ignoring unknown webhook topic",
			zap.String("system", event.System.String()),
			zap.String("topic", event.Topic))
		return &sync.SyncResult{Success: true}, nil
	}

	if event.DeliveryID != "" {
		seen, err := h.idempotency.IsProcessed(ctx, event.DeliveryID)
		if err != nil {
			return nil, err
		}
		if seen {
			h.logger.Debug("duplicate webhook delivery", zap.String("delivery_id", event.DeliveryID))
			return &sync.SyncResult{Success: true}, nil
		}
	}

	record, err := recordFromPayload(event.System, kind, event.Payload, event.ReceivedAt)
	if err != nil {
		return nil, err
	}

	result := &sync.SyncResult{}
	h.orchestrator.ApplyIncoming(ctx, tenantID, record, result)
	result.RecordsProcessed = 1
	result.Success = result.RecordsFailed == 0

	if event.DeliveryID != "" {
		if _, err := h.idempotency.MarkProcessed(ctx, event.DeliveryID, h.dedupTTL); err != nil {
			h.logger.Warn("mark webhook delivery processed", zap.Error(err))
		}
	}
	return result, nil
}

// recordFromPayload lifts a webhook payload into an external record keyed
// by the embedded external id
func recordFromPayload(system sync.SystemCode, kind sync.EntityKind, payload map[string]any, receivedAt time.Time) (*sync.ExternalRecord, error) {
	externalID := stringField(payload, "id")
	if externalID == "" {
		if n, ok := numericField(payload, "id"); ok {
			externalID = formatNumericID(n)
		}
	}
	if externalID == "" {
		return nil, shared.NewDomainError("INVALID_WEBHOOK", "Payload carries no external id")
	}

	updatedAt := receivedAt
	if ts := stringField(payload, "updated_at"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			updatedAt = parsed
		}
	}

	return &sync.ExternalRecord{
		System:     system,
		Kind:       kind,
		ExternalID: externalID,
		SKU:        stringField(payload, "sku"),
		Fields:     payload,
		UpdatedAt:  updatedAt,
	}, nil
}

func formatNumericID(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return ""
}
