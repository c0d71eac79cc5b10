package syncapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/commercesync/backend/internal/domain/conflict"
	"github.com/commercesync/backend/internal/domain/mapping"
	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProgressFunc receives the job's completion percentage after every page
type ProgressFunc func(percent float64)

// Orchestrator drives one sync job end to end: paginated fetch, mapping,
// conflict detection and resolution, store writes, progress reporting.
type Orchestrator struct {
	jobs       sync.SyncJobRepository
	connectors sync.ConnectorRegistry
	store      sync.StoreWriter
	mapper     *mapping.Mapper
	mappings   mapping.Repository
	detector   *conflict.Detector
	resolver   *conflict.Resolver
	conflicts  conflict.Repository
	eventBus   shared.EventPublisher
	logger     *zap.Logger
	pageSize   int
}

// NewOrchestrator creates a new sync orchestrator
func NewOrchestrator(
	jobs sync.SyncJobRepository,
	connectors sync.ConnectorRegistry,
	store sync.StoreWriter,
	mapper *mapping.Mapper,
	mappings mapping.Repository,
	resolver *conflict.Resolver,
	conflicts conflict.Repository,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
	pageSize int,
) *Orchestrator {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Orchestrator{
		jobs:       jobs,
		connectors: connectors,
		store:      store,
		mapper:     mapper,
		mappings:   mappings,
		detector:   conflict.NewDetector(),
		resolver:   resolver,
		conflicts:  conflicts,
		eventBus:   eventBus,
		logger:     logger,
		pageSize:   pageSize,
	}
}

// Run executes a pending job to completion. Per-record failures are
// collected into the result and never abort the run; connector-level
// failures abort immediately and fail the job.
func (o *Orchestrator) Run(ctx context.Context, job *sync.SyncJob, onProgress ProgressFunc) (*sync.SyncResult, error) {
	if err := job.Start(); err != nil {
		return nil, err
	}
	if err := o.saveJob(ctx, job); err != nil {
		return nil, err
	}

	connector, err := o.connectors.Get(job.ExternalSystem())
	if err != nil {
		return o.failJob(ctx, job, fmt.Errorf("connector for %s: %w", job.ExternalSystem(), err))
	}
	if err := connector.Authenticate(ctx); err != nil {
		return o.failJob(ctx, job, fmt.Errorf("authenticate against %s: %w", job.ExternalSystem(), err))
	}

	result := &sync.SyncResult{}
	if job.Direction == sync.DirectionPull {
		err = o.runPull(ctx, job, connector, result, onProgress)
	} else {
		err = o.runPush(ctx, job, connector, result, onProgress)
	}
	if err != nil {
		return o.failJob(ctx, job, err)
	}

	result.Success = result.RecordsFailed == 0
	if err := job.Complete(); err != nil {
		return nil, err
	}
	if err := o.saveJob(ctx, job); err != nil {
		return nil, err
	}

	o.logger.Info("sync job finished",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", job.Kind.String()),
		zap.String("direction", job.Direction.String()),
		zap.String("status", job.Status.String()),
		zap.Int("processed", result.RecordsProcessed),
		zap.Int("updated", result.RecordsUpdated),
		zap.Int("failed", result.RecordsFailed))
	return result, nil
}

// ---------------------------------------------------------------------------
// Pull
// ---------------------------------------------------------------------------

func (o *Orchestrator) runPull(ctx context.Context, job *sync.SyncJob, connector sync.Connector, result *sync.SyncResult, onProgress ProgressFunc) error {
	cursor := job.Cursor
	pages := 0
	for {
		page, err := connector.GetPage(ctx, job.Kind, cursor, job.Filters())
		if err != nil {
			return fmt.Errorf("fetch page from %s: %w", job.ExternalSystem(), err)
		}
		pages++

		updatedBefore := result.RecordsUpdated
		failedBefore := result.RecordsFailed
		for i := range page.Items {
			item := &page.Items[i]
			o.ApplyIncoming(ctx, job.TenantID, item, result)
			result.RecordsProcessed++
		}
		job.RecordPage(len(page.Items),
			result.RecordsUpdated-updatedBefore,
			result.RecordsFailed-failedBefore,
			page.NextCursor)
		if err := o.saveJob(ctx, job); err != nil {
			return err
		}

		reportProgress(onProgress, result.RecordsProcessed, page.EstimatedTotal, pages, !page.HasMore)
		if !page.HasMore {
			return nil
		}
		cursor = page.NextCursor
	}
}

// ApplyIncoming runs one external record through the map, validate, detect,
// resolve, write pipeline. Failures are recorded on the result, success
// counts as an update unless the record was our own echoed write.
func (o *Orchestrator) ApplyIncoming(ctx context.Context, tenantID uuid.UUID, item *sync.ExternalRecord, result *sync.SyncResult) {
	key := item.NaturalKey()

	m, err := o.mapper.Resolve(ctx, tenantID, item)
	if err != nil {
		result.AddError(key, fmt.Sprintf("mapping: %v", err))
		return
	}

	if err := validateRecord(item.Kind, item.Fields); err != nil {
		result.AddError(key, fmt.Sprintf("validation: %v", err))
		return
	}

	hash := sync.HashFields(item.Fields)
	if m.IsOwnEcho(hash) {
		// our own write coming back, nothing has diverged
		return
	}

	local, err := o.store.Get(ctx, tenantID, item.Kind, m.LocalID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		result.AddError(key, fmt.Sprintf("load local record: %v", err))
		return
	}

	payload := item.Fields
	if local != nil {
		detected, err := o.detector.Detect(local, item)
		if err != nil {
			result.AddError(key, fmt.Sprintf("conflict detection: %v", err))
			return
		}
		if detected != nil {
			resolution := o.resolver.ResolveConflict(detected)
			if resolution.NeedsReview() {
				if err := o.conflicts.Save(ctx, detected); err != nil {
					result.AddError(key, fmt.Sprintf("park conflict for review: %v", err))
					return
				}
				if o.eventBus != nil {
					if err := o.eventBus.Publish(ctx, conflict.NewConflictParkedEvent(detected)); err != nil {
						o.logger.Warn("publish conflict event", zap.Error(err))
					}
				}
				o.logger.Warn("conflict parked for manual review",
					zap.String("entity_id", detected.EntityID.String()),
					zap.String("kind", detected.Kind.String()),
					zap.String("reason", resolution.Reason))
				return
			}
			payload = resolution.Payload()
		}
	}

	record := &sync.LocalRecord{
		ID:        m.LocalID,
		TenantID:  tenantID,
		Kind:      item.Kind,
		SKU:       item.SKU,
		Fields:    payload,
		UpdatedAt: item.UpdatedAt,
	}
	if _, _, err := o.store.Upsert(ctx, record); err != nil {
		result.AddError(key, fmt.Sprintf("write: %v", err))
		return
	}

	m.MarkApplied(sync.HashFields(payload))
	if err := o.mappings.Save(ctx, m); err != nil {
		result.AddError(key, fmt.Sprintf("update mapping: %v", err))
		return
	}
	result.RecordsUpdated++
}

// ---------------------------------------------------------------------------
// Push
// ---------------------------------------------------------------------------

func (o *Orchestrator) runPush(ctx context.Context, job *sync.SyncJob, connector sync.Connector, result *sync.SyncResult, onProgress ProgressFunc) error {
	cursor := job.Cursor
	pages := 0
	for {
		page, err := o.store.GetPage(ctx, job.TenantID, job.Kind, job.Filters(), cursor, o.pageSize)
		if err != nil {
			return fmt.Errorf("read local page: %w", err)
		}
		pages++

		updatedBefore := result.RecordsUpdated
		failedBefore := result.RecordsFailed
		for i := range page.Items {
			if err := o.pushRecord(ctx, job, connector, &page.Items[i], result); err != nil {
				return err
			}
			result.RecordsProcessed++
		}
		job.RecordPage(len(page.Items),
			result.RecordsUpdated-updatedBefore,
			result.RecordsFailed-failedBefore,
			page.NextCursor)
		if err := o.saveJob(ctx, job); err != nil {
			return err
		}

		reportProgress(onProgress, result.RecordsProcessed, 0, pages, !page.HasMore)
		if !page.HasMore {
			return nil
		}
		cursor = page.NextCursor
	}
}

// pushRecord sends one local record to the external system. A non-nil error
// return means a fatal connector problem, per-record failures land on the
// result.
func (o *Orchestrator) pushRecord(ctx context.Context, job *sync.SyncJob, connector sync.Connector, local *sync.LocalRecord, result *sync.SyncResult) error {
	key := fmt.Sprintf("%s/%s/%s", job.Target, local.Kind, local.ID)
	hash := sync.HashFields(local.Fields)

	m, err := o.mappings.FindByLocalID(ctx, job.TenantID, local.Kind, job.Target, local.ID)
	switch {
	case err == nil:
		if m.IsOwnEcho(hash) {
			return nil
		}
	case errors.Is(err, mapping.ErrMappingNotFound):
		m = nil
	default:
		result.AddError(key, fmt.Sprintf("mapping lookup: %v", err))
		return nil
	}

	outgoing := &sync.ExternalRecord{
		System: job.Target,
		Kind:   local.Kind,
		SKU:    local.SKU,
		Fields: local.Fields,
	}
	if m != nil {
		outgoing.ExternalID = m.ExternalID
	}

	applied, err := connector.ApplyRecord(ctx, local.Kind, outgoing)
	if err != nil {
		if sync.IsFatalConnectorError(err) {
			return fmt.Errorf("push to %s: %w", job.Target, err)
		}
		result.AddError(key, fmt.Sprintf("push: %v", err))
		return nil
	}

	if m == nil {
		// the external system just created this record, remember its ID
		m, err = mapping.NewProductMapping(job.TenantID, local.Kind, job.Target, local.ID, applied.ExternalID, local.SKU)
		if err != nil {
			result.AddError(key, fmt.Sprintf("record new mapping: %v", err))
			return nil
		}
	}
	m.MarkApplied(hash)
	if err := o.mappings.Save(ctx, m); err != nil {
		result.AddError(key, fmt.Sprintf("update mapping: %v", err))
		return nil
	}
	result.RecordsUpdated++
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (o *Orchestrator) failJob(ctx context.Context, job *sync.SyncJob, cause error) (*sync.SyncResult, error) {
	job.Fail(cause.Error())
	if err := o.saveJob(ctx, job); err != nil {
		o.logger.Error("persist failed job", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
	o.logger.Error("sync job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", job.Kind.String()),
		zap.Error(cause))
	return nil, cause
}

func (o *Orchestrator) saveJob(ctx context.Context, job *sync.SyncJob) error {
	if err := o.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("persist sync job: %w", err)
	}
	if o.eventBus != nil {
		for _, event := range job.GetDomainEvents() {
			if err := o.eventBus.Publish(ctx, event); err != nil {
				o.logger.Warn("publish sync event", zap.String("type", event.EventType()), zap.Error(err))
			}
		}
	}
	job.ClearDomainEvents()
	return nil
}

// reportProgress emits percent complete after a page. Without an estimated
// total the percentage is a monotonically increasing approximation that
// stays under 100 until the final page.
func reportProgress(onProgress ProgressFunc, processed, estimatedTotal, pages int, done bool) {
	if onProgress == nil {
		return
	}
	if done {
		onProgress(100)
		return
	}
	if estimatedTotal > 0 {
		percent := float64(processed) / float64(estimatedTotal) * 100
		if percent >= 100 {
			percent = 99
		}
		onProgress(percent)
		return
	}
	onProgress(100 - 100/float64(pages+1))
}

// validateRecord applies per-kind field rules before any write
func validateRecord(kind sync.EntityKind, fields map[string]any) error {
	switch kind {
	case sync.EntityKindInventory:
		qty, ok := numericField(fields, "quantity")
		if !ok {
			return errors.New("quantity is required")
		}
		if qty < 0 {
			return errors.New("quantity cannot be negative")
		}
	case sync.EntityKindProduct:
		if stringField(fields, "sku") == "" && stringField(fields, "name") == "" {
			return errors.New("a product needs a sku or a name")
		}
		if price, ok := numericField(fields, "price"); ok && price < 0 {
			return errors.New("price cannot be negative")
		}
	case sync.EntityKindPrice:
		if price, ok := numericField(fields, "price"); ok && price < 0 {
			return errors.New("price cannot be negative")
		}
	}
	return nil
}

func numericField(fields map[string]any, key string) (float64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func stringField(fields map[string]any, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}
