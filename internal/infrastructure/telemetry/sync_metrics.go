package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a nil meter is passed to NewSyncMetrics.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// SyncMetrics tracks synchronization, conflict, and bulk operation activity.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	syncJobsTotal     *Counter
	syncRecordsTotal  *Counter
	syncJobDuration   *Histogram
	conflictsDetected *Counter
	conflictsResolved *Counter
	bulkOpsTotal      *Counter
	bulkRecordsTotal  *Counter
	webhooksTotal     *Counter
	queueDepth        *Gauge
}

// NewSyncMetrics registers the sync instruments on the given meter.
func NewSyncMetrics(meter metric.Meter, logger *zap.Logger) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{meter: meter, logger: logger}

	var err error
	sm.syncJobsTotal, err = NewCounter(meter,
		"csync_sync_jobs_total",
		"Total number of sync jobs finished",
		"{jobs}")
	if err != nil {
		return nil, err
	}
	sm.syncRecordsTotal, err = NewCounter(meter,
		"csync_sync_records_total",
		"Total number of records processed by sync jobs",
		"{records}")
	if err != nil {
		return nil, err
	}
	sm.syncJobDuration, err = NewHistogram(meter,
		"csync_sync_job_duration_seconds",
		"Duration of sync jobs",
		"s")
	if err != nil {
		return nil, err
	}
	sm.conflictsDetected, err = NewCounter(meter,
		"csync_conflicts_detected_total",
		"Total number of sync conflicts detected",
		"{conflicts}")
	if err != nil {
		return nil, err
	}
	sm.conflictsResolved, err = NewCounter(meter,
		"csync_conflicts_resolved_total",
		"Total number of sync conflicts resolved",
		"{conflicts}")
	if err != nil {
		return nil, err
	}
	sm.bulkOpsTotal, err = NewCounter(meter,
		"csync_bulk_operations_total",
		"Total number of bulk operations finished",
		"{operations}")
	if err != nil {
		return nil, err
	}
	sm.bulkRecordsTotal, err = NewCounter(meter,
		"csync_bulk_records_total",
		"Total number of bulk operation records processed",
		"{records}")
	if err != nil {
		return nil, err
	}
	sm.webhooksTotal, err = NewCounter(meter,
		"csync_webhook_deliveries_total",
		"Total number of webhook deliveries received",
		"{deliveries}")
	if err != nil {
		return nil, err
	}
	sm.queueDepth, err = NewGauge(meter,
		"csync_scheduler_queue_depth",
		"Current number of queued sync requests",
		"{requests}")
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordSyncJob records a finished sync job with its duration and record counts.
func (sm *SyncMetrics) RecordSyncJob(ctx context.Context, system, kind, status string, duration time.Duration, processed, failed int64) {
	attrs := []attribute.KeyValue{
		attribute.String("system", system),
		attribute.String("kind", kind),
		attribute.String("status", status),
	}
	sm.syncJobsTotal.Inc(ctx, attrs...)
	sm.syncJobDuration.RecordDuration(ctx, duration, attrs...)
	sm.syncRecordsTotal.Add(ctx, processed,
		attribute.String("system", system),
		attribute.String("kind", kind),
		attribute.String("outcome", "processed"))
	if failed > 0 {
		sm.syncRecordsTotal.Add(ctx, failed,
			attribute.String("system", system),
			attribute.String("kind", kind),
			attribute.String("outcome", "failed"))
	}
}

// RecordConflictDetected records a detected conflict.
func (sm *SyncMetrics) RecordConflictDetected(ctx context.Context, kind string) {
	sm.conflictsDetected.Inc(ctx, attribute.String("kind", kind))
}

// RecordConflictResolved records a resolved conflict with its strategy.
func (sm *SyncMetrics) RecordConflictResolved(ctx context.Context, kind, strategy string) {
	sm.conflictsResolved.Inc(ctx,
		attribute.String("kind", kind),
		attribute.String("strategy", strategy))
}

// RecordBulkOperation records a finished bulk operation and its record counts.
func (sm *SyncMetrics) RecordBulkOperation(ctx context.Context, opType, status string, succeeded, failed int64) {
	attrs := []attribute.KeyValue{
		attribute.String("type", opType),
		attribute.String("status", status),
	}
	sm.bulkOpsTotal.Inc(ctx, attrs...)
	sm.bulkRecordsTotal.Add(ctx, succeeded,
		attribute.String("type", opType),
		attribute.String("outcome", "success"))
	if failed > 0 {
		sm.bulkRecordsTotal.Add(ctx, failed,
			attribute.String("type", opType),
			attribute.String("outcome", "failed"))
	}
}

// RecordWebhookDelivery records a received webhook delivery.
func (sm *SyncMetrics) RecordWebhookDelivery(ctx context.Context, system string, duplicate bool) {
	sm.webhooksTotal.Inc(ctx,
		attribute.String("system", system),
		attribute.Bool("duplicate", duplicate))
}

// RecordQueueDepth records the scheduler queue depth.
func (sm *SyncMetrics) RecordQueueDepth(ctx context.Context, depth int64) {
	sm.queueDepth.Record(ctx, depth)
}
