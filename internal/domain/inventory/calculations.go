package inventory

import (
	"math"
)

// ---------------------------------------------------------------------------
// StockStatus
// ---------------------------------------------------------------------------

// StockStatus classifies an inventory position by its available quantity
type StockStatus string

const (
	StockStatusOutOfStock StockStatus = "out_of_stock"
	StockStatusCritical   StockStatus = "critical"
	StockStatusLow        StockStatus = "low"
	StockStatusNormal     StockStatus = "normal"
)

// String returns the string representation of StockStatus
func (s StockStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Pure calculations
// ---------------------------------------------------------------------------

// AvailableQuantity returns stock not held by reservations, never negative
func AvailableQuantity(onHand, reserved int) int {
	available := onHand - reserved
	if available < 0 {
		return 0
	}
	return available
}

// ComputeStockStatus classifies an available quantity against a reorder
// point. At or below zero is out of stock, under half the reorder point is
// critical, at or below the reorder point is low.
func ComputeStockStatus(available, reorderPoint int) StockStatus {
	if available <= 0 {
		return StockStatusOutOfStock
	}
	if reorderPoint <= 0 {
		return StockStatusNormal
	}
	if float64(available) < float64(reorderPoint)*0.5 {
		return StockStatusCritical
	}
	if available <= reorderPoint {
		return StockStatusLow
	}
	return StockStatusNormal
}

// ReorderSuggestion returns the quantity to order now: the base reorder
// quantity plus expected usage over the lead time, less what is already
// available, rounded up to the nearest 10. Zero when stock already covers
// the need.
func ReorderSuggestion(baseQuantity, leadTimeDays int, avgDailyUsage float64, available int) int {
	raw := float64(baseQuantity) + float64(leadTimeDays)*avgDailyUsage - float64(available)
	if raw <= 0 {
		return 0
	}
	return int(math.Ceil(raw/10) * 10)
}

// zScores maps a service level to its standard normal quantile. Lookup
// floors to the nearest listed level.
var zScores = []struct {
	level float64
	z     float64
}{
	{0.99, 2.33},
	{0.975, 1.96},
	{0.95, 1.65},
	{0.90, 1.28},
}

// ZScore returns the z value for a service level, flooring to the nearest
// supported level. Levels under 0.90 use the 0.90 value.
func ZScore(serviceLevel float64) float64 {
	for _, entry := range zScores {
		if serviceLevel >= entry.level {
			return entry.z
		}
	}
	return zScores[len(zScores)-1].z
}

// SafetyStock returns the buffer quantity covering demand variability over
// the replenishment lead time at the requested service level.
func SafetyStock(serviceLevel, demandStdDev float64, leadTimeDays int) float64 {
	if demandStdDev <= 0 || leadTimeDays <= 0 {
		return 0
	}
	return ZScore(serviceLevel) * demandStdDev * math.Sqrt(float64(leadTimeDays))
}
