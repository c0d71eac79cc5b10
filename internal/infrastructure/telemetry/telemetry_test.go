package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/commercesync/backend/internal/domain/conflict"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/commercesync/backend/internal/infrastructure/config"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetryConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, tp)

	// No-op provider shuts down cleanly
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), config.TelemetryConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, mp)

	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestNewSyncMetrics(t *testing.T) {
	t.Run("nil meter", func(t *testing.T) {
		_, err := NewSyncMetrics(nil, zap.NewNop())
		assert.ErrorIs(t, err, ErrMeterNil)
	})

	t.Run("records without panic", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

		sm, err := NewSyncMetrics(provider.Meter("test"), nil)
		require.NoError(t, err)

		ctx := context.Background()
		sm.RecordSyncJob(ctx, "SHOPIFY", "product", "completed", 2*time.Second, 100, 3)
		sm.RecordConflictDetected(ctx, "product")
		sm.RecordConflictResolved(ctx, "product", "latest_wins")
		sm.RecordBulkOperation(ctx, "import", "completed", 50, 2)
		sm.RecordWebhookDelivery(ctx, "MAGENTO", false)
		sm.RecordQueueDepth(ctx, 4)

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(ctx, &rm))
		require.NotEmpty(t, rm.ScopeMetrics)
		assert.NotEmpty(t, rm.ScopeMetrics[0].Metrics)
	})
}

func TestSyncEventHandler(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	sm, err := NewSyncMetrics(provider.Meter("test"), nil)
	require.NoError(t, err)
	handler := NewSyncEventHandler(sm)

	assert.ElementsMatch(t, []string{"sync.completed", "sync.failed", "conflict.parked"}, handler.EventTypes())

	tenantID := uuid.New()
	job, err := sync.NewSyncJob(tenantID, sync.EntityKindProduct, sync.DirectionPull, sync.SystemCodeShopify, sync.SystemCodeInternal)
	require.NoError(t, err)
	require.NoError(t, job.Start())
	job.RecordPage(10, 8, 2, "")
	require.NoError(t, job.Complete())

	ctx := context.Background()
	for _, event := range job.GetDomainEvents() {
		require.NoError(t, handler.Handle(ctx, event))
	}

	parked, err := conflict.NewDataConflict(tenantID, sync.EntityKindProduct, uuid.New(), conflict.ConflictTypeUpdate,
		[]conflict.ConflictSource{
			{System: sync.SystemCodeInternal, Timestamp: time.Now(), Data: map[string]any{"name": "a"}},
			{System: sync.SystemCodeShopify, Timestamp: time.Now(), Data: map[string]any{"name": "b"}},
		})
	require.NoError(t, err)
	require.NoError(t, handler.Handle(ctx, conflict.NewConflictParkedEvent(parked)))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	names := make(map[string]bool)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
	}
	assert.True(t, names["csync_sync_jobs_total"])
	assert.True(t, names["csync_conflicts_detected_total"])
}
