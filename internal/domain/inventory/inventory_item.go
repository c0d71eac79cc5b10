package inventory

import (
	"context"

	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// InventoryItem Entity
// ---------------------------------------------------------------------------

// InventoryItem tracks one product's stock position in one warehouse
type InventoryItem struct {
	shared.TenantAggregateRoot
	ProductID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_position,priority:2"`
	SKU           string    `gorm:"type:varchar(128);not null;index"`
	WarehouseCode string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_inventory_position,priority:3"`

	QuantityOnHand   int `gorm:"not null;default:0"`
	QuantityReserved int `gorm:"not null;default:0"`

	ReorderPoint    int `gorm:"not null;default:0"`
	ReorderQuantity int `gorm:"not null;default:0"`
	LeadTimeDays    int `gorm:"not null;default:0"`

	UnitCost decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (InventoryItem) TableName() string {
	return "inventory_items"
}

// NewInventoryItem creates a new inventory position
func NewInventoryItem(tenantID, productID uuid.UUID, sku, warehouseCode string) (*InventoryItem, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if warehouseCode == "" {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse code cannot be empty")
	}

	tenantRoot := shared.NewTenantAggregateRoot(tenantID)
	return &InventoryItem{
		TenantAggregateRoot: tenantRoot,
		ProductID:           productID,
		SKU:                 sku,
		WarehouseCode:       warehouseCode,
		UnitCost:            decimal.Zero,
	}, nil
}

// Validate checks the position's business invariants
func (i *InventoryItem) Validate() error {
	if i.QuantityOnHand < 0 {
		return shared.NewDomainError("NEGATIVE_QUANTITY", "Quantity on hand cannot be negative")
	}
	if i.QuantityReserved < 0 {
		return shared.NewDomainError("NEGATIVE_QUANTITY", "Reserved quantity cannot be negative")
	}
	if i.ReorderPoint < 0 {
		return shared.NewDomainError("NEGATIVE_REORDER_POINT", "Reorder point cannot be negative")
	}
	if i.UnitCost.IsNegative() {
		return shared.NewDomainError("NEGATIVE_COST", "Unit cost cannot be negative")
	}
	return nil
}

// Available returns the quantity not held by reservations
func (i *InventoryItem) Available() int {
	return AvailableQuantity(i.QuantityOnHand, i.QuantityReserved)
}

// Status returns the current stock status
func (i *InventoryItem) Status() StockStatus {
	return ComputeStockStatus(i.Available(), i.ReorderPoint)
}

// StockValue returns on-hand quantity priced at unit cost
func (i *InventoryItem) StockValue() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromInt(int64(i.QuantityOnHand)))
}

// ---------------------------------------------------------------------------
// Repository Interface
// ---------------------------------------------------------------------------

// Repository defines persistence for inventory positions
type Repository interface {
	// Save creates or updates a position
	Save(ctx context.Context, item *InventoryItem) error

	// FindByID finds a position by ID
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*InventoryItem, error)

	// FindByProductAndWarehouse finds the position for a product in a warehouse
	FindByProductAndWarehouse(ctx context.Context, tenantID, productID uuid.UUID, warehouseCode string) (*InventoryItem, error)

	// FindBySKU returns all positions for a SKU across warehouses
	FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) ([]InventoryItem, error)

	// ListBelowReorderPoint returns positions whose available quantity is at
	// or under their reorder point
	ListBelowReorderPoint(ctx context.Context, tenantID uuid.UUID) ([]InventoryItem, error)
}
