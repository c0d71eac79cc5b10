package inventoryapp

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/commercesync/backend/internal/domain/inventory"
	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
)

type memStore struct {
	records map[uuid.UUID]*sync.LocalRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uuid.UUID]*sync.LocalRecord)}
}

func (s *memStore) Get(_ context.Context, _ uuid.UUID, _ sync.EntityKind, id uuid.UUID) (*sync.LocalRecord, error) {
	if r, ok := s.records[id]; ok {
		return r, nil
	}
	return nil, shared.ErrNotFound
}

func (s *memStore) GetPage(_ context.Context, _ uuid.UUID, _ sync.EntityKind, _ sync.PageFilters, _ string, _ int) (*sync.LocalPage, error) {
	return &sync.LocalPage{}, nil
}

func (s *memStore) Upsert(_ context.Context, record *sync.LocalRecord) (uuid.UUID, bool, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	_, existed := s.records[record.ID]
	s.records[record.ID] = record
	return record.ID, !existed, nil
}

func (s *memStore) Delete(_ context.Context, _ uuid.UUID, _ sync.EntityKind, id uuid.UUID) error {
	delete(s.records, id)
	return nil
}

type memItemRepo struct {
	items map[string]*inventory.InventoryItem
}

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{items: make(map[string]*inventory.InventoryItem)}
}

func positionKey(productID uuid.UUID, warehouse string) string {
	return productID.String() + "/" + warehouse
}

func (r *memItemRepo) Save(_ context.Context, item *inventory.InventoryItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	r.items[positionKey(item.ProductID, item.WarehouseCode)] = item
	return nil
}

func (r *memItemRepo) FindByID(_ context.Context, _ uuid.UUID, id uuid.UUID) (*inventory.InventoryItem, error) {
	for _, item := range r.items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memItemRepo) FindByProductAndWarehouse(_ context.Context, _ uuid.UUID, productID uuid.UUID, warehouse string) (*inventory.InventoryItem, error) {
	if item, ok := r.items[positionKey(productID, warehouse)]; ok {
		return item, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memItemRepo) FindBySKU(_ context.Context, _ uuid.UUID, sku string) ([]inventory.InventoryItem, error) {
	var out []inventory.InventoryItem
	for _, item := range r.items {
		if item.SKU == sku {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (r *memItemRepo) ListBelowReorderPoint(_ context.Context, _ uuid.UUID) ([]inventory.InventoryItem, error) {
	var out []inventory.InventoryItem
	for _, item := range r.items {
		if item.ReorderPoint > 0 && item.Available() <= item.ReorderPoint {
			out = append(out, *item)
		}
	}
	return out, nil
}

func inventoryRecord(tenantID uuid.UUID, fields map[string]any) *sync.LocalRecord {
	return &sync.LocalRecord{
		TenantID: tenantID,
		Kind:     sync.EntityKindInventory,
		SKU:      "WIDGET-1",
		Fields:   fields,
	}
}

func TestProjectorUpsert(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("creates a position for a new inventory record", func(t *testing.T) {
		store := newMemStore()
		items := newMemItemRepo()
		projector := NewProjector(store, items, zap.NewNop())

		id, created, err := projector.Upsert(ctx, inventoryRecord(tenantID, map[string]any{
			"quantity":       float64(40),
			"reserved":       float64(5),
			"warehouse_code": "EAST",
			"reorder_point":  float64(10),
			"unit_cost":      2.5,
		}))
		require.NoError(t, err)
		assert.True(t, created)

		item, err := items.FindByProductAndWarehouse(ctx, tenantID, id, "EAST")
		require.NoError(t, err)
		assert.Equal(t, "WIDGET-1", item.SKU)
		assert.Equal(t, 40, item.QuantityOnHand)
		assert.Equal(t, 5, item.QuantityReserved)
		assert.Equal(t, 35, item.Available())
		assert.Equal(t, 10, item.ReorderPoint)
		assert.Equal(t, "2.5", item.UnitCost.String())
	})

	t.Run("defaults the warehouse when the record carries none", func(t *testing.T) {
		store := newMemStore()
		items := newMemItemRepo()
		projector := NewProjector(store, items, zap.NewNop())

		id, _, err := projector.Upsert(ctx, inventoryRecord(tenantID, map[string]any{
			"quantity": float64(7),
		}))
		require.NoError(t, err)

		item, err := items.FindByProductAndWarehouse(ctx, tenantID, id, DefaultWarehouseCode)
		require.NoError(t, err)
		assert.Equal(t, 7, item.QuantityOnHand)
	})

	t.Run("updates the existing position on repeat writes", func(t *testing.T) {
		store := newMemStore()
		items := newMemItemRepo()
		projector := NewProjector(store, items, zap.NewNop())

		rec := inventoryRecord(tenantID, map[string]any{"quantity": float64(40)})
		id, _, err := projector.Upsert(ctx, rec)
		require.NoError(t, err)

		rec.ID = id
		rec.Fields = map[string]any{"quantity": float64(12)}
		_, created, err := projector.Upsert(ctx, rec)
		require.NoError(t, err)
		assert.False(t, created)

		item, err := items.FindByProductAndWarehouse(ctx, tenantID, id, DefaultWarehouseCode)
		require.NoError(t, err)
		assert.Equal(t, 12, item.QuantityOnHand)
		assert.Len(t, items.items, 1)
	})

	t.Run("ignores kinds other than inventory", func(t *testing.T) {
		store := newMemStore()
		items := newMemItemRepo()
		projector := NewProjector(store, items, zap.NewNop())

		_, _, err := projector.Upsert(ctx, &sync.LocalRecord{
			TenantID: tenantID,
			Kind:     sync.EntityKindProduct,
			Fields:   map[string]any{"name": "Widget"},
		})
		require.NoError(t, err)
		assert.Empty(t, items.items)
	})
}

func TestProjectorDelete(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	store := newMemStore()
	items := newMemItemRepo()
	projector := NewProjector(store, items, zap.NewNop())

	id, _, err := projector.Upsert(ctx, inventoryRecord(tenantID, map[string]any{
		"quantity":       float64(25),
		"warehouse_code": "EAST",
	}))
	require.NoError(t, err)

	require.NoError(t, projector.Delete(ctx, tenantID, sync.EntityKindInventory, id))

	_, err = store.Get(ctx, tenantID, sync.EntityKindInventory, id)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	item, err := items.FindByProductAndWarehouse(ctx, tenantID, id, "EAST")
	require.NoError(t, err)
	assert.Equal(t, 0, item.QuantityOnHand)
	assert.Equal(t, inventory.StockStatusOutOfStock, item.Status())
}
