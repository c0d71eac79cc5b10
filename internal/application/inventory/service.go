package inventoryapp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/commercesync/backend/internal/domain/inventory"
	"github.com/commercesync/backend/internal/domain/shared"
)

// Position is one stock position annotated with its derived figures
type Position struct {
	ID                uuid.UUID             `json:"id"`
	ProductID         uuid.UUID             `json:"product_id"`
	SKU               string                `json:"sku"`
	WarehouseCode     string                `json:"warehouse_code"`
	QuantityOnHand    int                   `json:"quantity_on_hand"`
	QuantityReserved  int                   `json:"quantity_reserved"`
	AvailableQuantity int                   `json:"available_quantity"`
	StockStatus       inventory.StockStatus `json:"stock_status"`
	ReorderPoint      int                   `json:"reorder_point"`
	StockValue        decimal.Decimal       `json:"stock_value"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// ReorderLine is one position at or under its reorder point, with the
// suggested order quantity
type ReorderLine struct {
	Position
	LeadTimeDays      int `json:"lead_time_days"`
	SuggestedQuantity int `json:"suggested_quantity"`
}

// UsagePoint is one day's recorded usage in a planning request
type UsagePoint struct {
	Date     time.Time `json:"date" binding:"required"`
	Quantity float64   `json:"quantity" binding:"min=0"`
}

// SafetyStockRequest asks for a replenishment plan from a usage history.
// Sensitivity tunes the outlier scan and defaults to 0.5.
type SafetyStockRequest struct {
	ServiceLevel float64      `json:"service_level" binding:"required,gt=0,lt=1"`
	LeadTimeDays int          `json:"lead_time_days" binding:"required,min=1"`
	Sensitivity  *float64     `json:"sensitivity" binding:"omitempty,gte=0,lte=1"`
	Usage        []UsagePoint `json:"usage" binding:"required,min=1,dive"`
}

// SafetyStockPlan is the computed replenishment plan. Anomalies lists usage
// observations outside the baseline bands so suspect days can be reviewed
// before the plan is trusted.
type SafetyStockPlan struct {
	Demand          inventory.DemandStats  `json:"demand"`
	ZScore          float64                `json:"z_score"`
	SafetyStock     float64                `json:"safety_stock"`
	SeasonalFactors [12]float64            `json:"seasonal_factors"`
	Bands           inventory.AnomalyBands `json:"bands"`
	Anomalies       []inventory.Anomaly    `json:"anomalies"`
}

// Service serves stock positions and replenishment planning figures
type Service struct {
	items  inventory.Repository
	logger *zap.Logger
}

// NewService creates a new inventory read service
func NewService(items inventory.Repository, logger *zap.Logger) *Service {
	return &Service{
		items:  items,
		logger: logger,
	}
}

// Positions returns every warehouse position for a SKU, annotated with
// available quantity, status and stock value
func (s *Service) Positions(ctx context.Context, tenantID uuid.UUID, sku string) ([]Position, error) {
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}

	items, err := s.items.FindBySKU(ctx, tenantID, sku)
	if err != nil {
		return nil, err
	}

	positions := make([]Position, 0, len(items))
	for i := range items {
		positions = append(positions, annotate(&items[i]))
	}
	return positions, nil
}

// Reorders returns every position at or under its reorder point. The
// caller's average daily usage estimate feeds the suggested quantities; zero
// means suggest the base reorder quantity alone.
func (s *Service) Reorders(ctx context.Context, tenantID uuid.UUID, avgDailyUsage float64) ([]ReorderLine, error) {
	if avgDailyUsage < 0 {
		return nil, shared.NewDomainError("INVALID_USAGE", "Average daily usage cannot be negative")
	}

	items, err := s.items.ListBelowReorderPoint(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	lines := make([]ReorderLine, 0, len(items))
	for i := range items {
		item := &items[i]
		lines = append(lines, ReorderLine{
			Position:     annotate(item),
			LeadTimeDays: item.LeadTimeDays,
			SuggestedQuantity: inventory.ReorderSuggestion(
				item.ReorderQuantity, item.LeadTimeDays, avgDailyUsage, item.Available()),
		})
	}
	return lines, nil
}

// PlanSafetyStock derives demand statistics from a usage history and
// computes the safety stock for the requested service level
func (s *Service) PlanSafetyStock(req *SafetyStockRequest) *SafetyStockPlan {
	observations := make([]inventory.UsageObservation, 0, len(req.Usage))
	for _, point := range req.Usage {
		observations = append(observations, inventory.UsageObservation{
			Date:     point.Date,
			Quantity: point.Quantity,
		})
	}

	sensitivity := 0.5
	if req.Sensitivity != nil {
		sensitivity = *req.Sensitivity
	}

	stats := inventory.ComputeDemandStats(observations)
	return &SafetyStockPlan{
		Demand:          stats,
		ZScore:          inventory.ZScore(req.ServiceLevel),
		SafetyStock:     inventory.SafetyStock(req.ServiceLevel, stats.StdDev, req.LeadTimeDays),
		SeasonalFactors: inventory.SeasonalFactors(observations),
		Bands:           inventory.ComputeAnomalyBands(observations, sensitivity),
		Anomalies:       inventory.DetectOutliers(observations, sensitivity),
	}
}

func annotate(item *inventory.InventoryItem) Position {
	return Position{
		ID:                item.ID,
		ProductID:         item.ProductID,
		SKU:               item.SKU,
		WarehouseCode:     item.WarehouseCode,
		QuantityOnHand:    item.QuantityOnHand,
		QuantityReserved:  item.QuantityReserved,
		AvailableQuantity: item.Available(),
		StockStatus:       item.Status(),
		ReorderPoint:      item.ReorderPoint,
		StockValue:        item.StockValue(),
		UpdatedAt:         item.UpdatedAt,
	}
}
