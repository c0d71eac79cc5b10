// Package inventoryapp maintains warehouse stock positions from synchronized
// inventory records and serves derived stock figures.
package inventoryapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/commercesync/backend/internal/domain/inventory"
	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
)

// DefaultWarehouseCode is assumed when an inventory record carries no
// warehouse of its own
const DefaultWarehouseCode = "MAIN"

// Projector wraps a store and keeps inventory positions in step with
// inventory records written through it. Every other kind passes straight
// through to the wrapped store.
type Projector struct {
	inner  sync.StoreWriter
	items  inventory.Repository
	logger *zap.Logger
}

// NewProjector creates a projecting store around inner
func NewProjector(inner sync.StoreWriter, items inventory.Repository, logger *zap.Logger) *Projector {
	return &Projector{
		inner:  inner,
		items:  items,
		logger: logger,
	}
}

// Get loads one local record by ID
func (p *Projector) Get(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, id uuid.UUID) (*sync.LocalRecord, error) {
	return p.inner.Get(ctx, tenantID, kind, id)
}

// GetPage returns a page of local records matching the filters
func (p *Projector) GetPage(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, filters sync.PageFilters, cursor string, limit int) (*sync.LocalPage, error) {
	return p.inner.GetPage(ctx, tenantID, kind, filters, cursor, limit)
}

// Upsert writes the record through to the wrapped store and, for inventory
// records, refreshes the matching stock position
func (p *Projector) Upsert(ctx context.Context, record *sync.LocalRecord) (uuid.UUID, bool, error) {
	id, created, err := p.inner.Upsert(ctx, record)
	if err != nil {
		return id, created, err
	}
	if record.Kind != sync.EntityKindInventory {
		return id, created, nil
	}
	if err := p.project(ctx, record, id); err != nil {
		return id, created, fmt.Errorf("project inventory position: %w", err)
	}
	return id, created, nil
}

// Delete removes a local record. A deleted inventory record zeroes its
// stock position instead of dropping the row.
func (p *Projector) Delete(ctx context.Context, tenantID uuid.UUID, kind sync.EntityKind, id uuid.UUID) error {
	var warehouse string
	if kind == sync.EntityKindInventory {
		if rec, err := p.inner.Get(ctx, tenantID, kind, id); err == nil {
			warehouse = warehouseOf(rec.Fields)
		}
	}

	if err := p.inner.Delete(ctx, tenantID, kind, id); err != nil {
		return err
	}
	if kind != sync.EntityKindInventory || warehouse == "" {
		return nil
	}

	item, err := p.items.FindByProductAndWarehouse(ctx, tenantID, id, warehouse)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	item.QuantityOnHand = 0
	item.QuantityReserved = 0
	return p.items.Save(ctx, item)
}

func (p *Projector) project(ctx context.Context, record *sync.LocalRecord, productID uuid.UUID) error {
	warehouse := warehouseOf(record.Fields)

	item, err := p.items.FindByProductAndWarehouse(ctx, record.TenantID, productID, warehouse)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		sku := record.SKU
		if sku == "" {
			sku = stringField(record.Fields, "sku")
		}
		if sku == "" {
			sku = productID.String()
		}
		item, err = inventory.NewInventoryItem(record.TenantID, productID, sku, warehouse)
		if err != nil {
			return err
		}
	}

	if qty, ok := numericField(record.Fields, "quantity"); ok {
		item.QuantityOnHand = int(qty)
	}
	if reserved, ok := numericField(record.Fields, "reserved"); ok {
		item.QuantityReserved = int(reserved)
	}
	if point, ok := numericField(record.Fields, "reorder_point"); ok {
		item.ReorderPoint = int(point)
	}
	if qty, ok := numericField(record.Fields, "reorder_quantity"); ok {
		item.ReorderQuantity = int(qty)
	}
	if days, ok := numericField(record.Fields, "lead_time_days"); ok {
		item.LeadTimeDays = int(days)
	}
	if cost, ok := numericField(record.Fields, "unit_cost"); ok {
		item.UnitCost = decimal.NewFromFloat(cost)
	}

	if err := item.Validate(); err != nil {
		return err
	}
	if err := p.items.Save(ctx, item); err != nil {
		return err
	}

	p.logger.Debug("projected inventory position",
		zap.String("tenant_id", record.TenantID.String()),
		zap.String("product_id", productID.String()),
		zap.String("warehouse", warehouse),
		zap.Int("on_hand", item.QuantityOnHand))
	return nil
}

func warehouseOf(fields map[string]any) string {
	if w := stringField(fields, "warehouse_code"); w != "" {
		return w
	}
	return DefaultWarehouseCode
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

// Ensure Projector satisfies the store port
var _ sync.StoreWriter = (*Projector)(nil)
