package inventoryapp

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/commercesync/backend/internal/domain/inventory"
)

func seedItem(t *testing.T, repo *memItemRepo, tenantID uuid.UUID, sku, warehouse string, onHand, reserved, reorderPoint int) *inventory.InventoryItem {
	t.Helper()
	item, err := inventory.NewInventoryItem(tenantID, uuid.New(), sku, warehouse)
	require.NoError(t, err)
	item.QuantityOnHand = onHand
	item.QuantityReserved = reserved
	item.ReorderPoint = reorderPoint
	require.NoError(t, repo.Save(context.Background(), item))
	return item
}

func TestServicePositions(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := newMemItemRepo()
	svc := NewService(repo, zap.NewNop())

	item := seedItem(t, repo, tenantID, "WIDGET-1", "EAST", 40, 5, 10)
	item.UnitCost = decimal.RequireFromString("2.50")
	require.NoError(t, repo.Save(ctx, item))
	seedItem(t, repo, tenantID, "WIDGET-1", "WEST", 3, 0, 10)

	t.Run("annotates every warehouse position", func(t *testing.T) {
		positions, err := svc.Positions(ctx, tenantID, "WIDGET-1")
		require.NoError(t, err)
		require.Len(t, positions, 2)

		byWarehouse := make(map[string]Position, len(positions))
		for _, p := range positions {
			byWarehouse[p.WarehouseCode] = p
		}

		east := byWarehouse["EAST"]
		assert.Equal(t, 35, east.AvailableQuantity)
		assert.Equal(t, inventory.StockStatusNormal, east.StockStatus)
		assert.Equal(t, "100", east.StockValue.String())

		west := byWarehouse["WEST"]
		assert.Equal(t, 3, west.AvailableQuantity)
		assert.Equal(t, inventory.StockStatusCritical, west.StockStatus)
	})

	t.Run("rejects an empty sku", func(t *testing.T) {
		_, err := svc.Positions(ctx, tenantID, "")
		assert.Error(t, err)
	})

	t.Run("unknown sku yields an empty list", func(t *testing.T) {
		positions, err := svc.Positions(ctx, tenantID, "NOPE")
		require.NoError(t, err)
		assert.Empty(t, positions)
	})
}

func TestServiceReorders(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := newMemItemRepo()
	svc := NewService(repo, zap.NewNop())

	low := seedItem(t, repo, tenantID, "WIDGET-1", "EAST", 8, 0, 10)
	low.ReorderQuantity = 50
	low.LeadTimeDays = 7
	require.NoError(t, repo.Save(ctx, low))
	seedItem(t, repo, tenantID, "WIDGET-2", "EAST", 200, 0, 10)

	t.Run("suggests quantities covering lead time usage", func(t *testing.T) {
		lines, err := svc.Reorders(ctx, tenantID, 4)
		require.NoError(t, err)
		require.Len(t, lines, 1)

		line := lines[0]
		assert.Equal(t, "WIDGET-1", line.SKU)
		assert.Equal(t, inventory.StockStatusLow, line.StockStatus)
		// 50 + 7*4 - 8 = 70, already a multiple of 10
		assert.Equal(t, 70, line.SuggestedQuantity)
	})

	t.Run("zero usage falls back to the base quantity", func(t *testing.T) {
		lines, err := svc.Reorders(ctx, tenantID, 0)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		// 50 - 8 = 42, rounded up to 50
		assert.Equal(t, 50, lines[0].SuggestedQuantity)
	})

	t.Run("rejects negative usage", func(t *testing.T) {
		_, err := svc.Reorders(ctx, tenantID, -1)
		assert.Error(t, err)
	})
}

func TestServicePlanSafetyStock(t *testing.T) {
	svc := NewService(newMemItemRepo(), zap.NewNop())

	day := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	req := &SafetyStockRequest{
		ServiceLevel: 0.95,
		LeadTimeDays: 4,
		Usage: []UsagePoint{
			{Date: day, Quantity: 10},
			{Date: day.AddDate(0, 0, 1), Quantity: 14},
			{Date: day.AddDate(0, 0, 2), Quantity: 6},
		},
	}

	t.Run("derives demand stats and safety stock", func(t *testing.T) {
		plan := svc.PlanSafetyStock(req)
		assert.Equal(t, 3, plan.Demand.Observations)
		assert.InDelta(t, 10, plan.Demand.AverageDailyUsage, 1e-9)
		assert.InDelta(t, 4, plan.Demand.StdDev, 1e-9)
		assert.InDelta(t, 1.65, plan.ZScore, 1e-9)
		// 1.65 * 4 * sqrt(4)
		assert.InDelta(t, 13.2, plan.SafetyStock, 1e-9)
		// all usage falls in January, the other months stay neutral
		assert.InDelta(t, 1, plan.SeasonalFactors[0], 1e-9)
		assert.InDelta(t, 1, plan.SeasonalFactors[5], 1e-9)
		// default sensitivity, bands are mean ± 1.5 std dev
		assert.InDelta(t, 4, plan.Bands.Lower, 1e-9)
		assert.InDelta(t, 16, plan.Bands.Upper, 1e-9)
		assert.Empty(t, plan.Anomalies)
	})

	t.Run("flags usage spikes outside the bands", func(t *testing.T) {
		spiked := &SafetyStockRequest{
			ServiceLevel: 0.95,
			LeadTimeDays: 4,
			Usage: []UsagePoint{
				{Date: day, Quantity: 8},
				{Date: day.AddDate(0, 0, 1), Quantity: 12},
				{Date: day.AddDate(0, 0, 2), Quantity: 8},
				{Date: day.AddDate(0, 0, 3), Quantity: 12},
				{Date: day.AddDate(0, 0, 4), Quantity: 10},
				{Date: day.AddDate(0, 0, 5), Quantity: 30},
			},
		}

		plan := svc.PlanSafetyStock(spiked)
		require.Len(t, plan.Anomalies, 1)
		assert.InDelta(t, 30, plan.Anomalies[0].Quantity, 1e-9)
		assert.Equal(t, inventory.AnomalySeverityLow, plan.Anomalies[0].Severity)

		// low sensitivity widens the bands past the spike
		zero := 0.0
		spiked.Sensitivity = &zero
		assert.Empty(t, svc.PlanSafetyStock(spiked).Anomalies)
	})
}
