package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/commercesync/backend/internal/infrastructure/config"
)

// ---------------------------------------------------------------------------
// Registry Tests
// ---------------------------------------------------------------------------

func TestRegistry(t *testing.T) {
	shopify := NewMemoryConnector(sync.SystemCodeShopify)
	magento := NewMemoryConnector(sync.SystemCodeMagento)
	registry := NewRegistry(shopify, magento)

	t.Run("get registered connector", func(t *testing.T) {
		got, err := registry.Get(sync.SystemCodeMagento)
		require.NoError(t, err)
		assert.Equal(t, sync.SystemCodeMagento, got.System())
	})

	t.Run("get unknown system", func(t *testing.T) {
		_, err := registry.Get(sync.SystemCodeNetSuite)
		assert.ErrorIs(t, err, sync.ErrUnknownConnector)
	})

	t.Run("list preserves registration order", func(t *testing.T) {
		connectors := registry.List()
		require.Len(t, connectors, 2)
		assert.Equal(t, sync.SystemCodeShopify, connectors[0].System())
		assert.Equal(t, sync.SystemCodeMagento, connectors[1].System())
	})
}

// ---------------------------------------------------------------------------
// Memory Connector Tests
// ---------------------------------------------------------------------------

func TestMemoryConnector(t *testing.T) {
	ctx := context.Background()

	t.Run("pages through preloaded data", func(t *testing.T) {
		mem := NewMemoryConnector(sync.SystemCodeShopify)
		mem.LoadPages(sync.EntityKindProduct, []sync.Page{
			{Items: []sync.ExternalRecord{{ExternalID: "1"}, {ExternalID: "2"}}},
			{Items: []sync.ExternalRecord{{ExternalID: "3"}}},
		})

		first, err := mem.GetPage(ctx, sync.EntityKindProduct, "", sync.PageFilters{})
		require.NoError(t, err)
		require.Len(t, first.Items, 2)
		require.True(t, first.HasMore)

		second, err := mem.GetPage(ctx, sync.EntityKindProduct, first.NextCursor, sync.PageFilters{})
		require.NoError(t, err)
		require.Len(t, second.Items, 1)
		assert.False(t, second.HasMore)
	})

	t.Run("rejects malformed cursor", func(t *testing.T) {
		mem := NewMemoryConnector(sync.SystemCodeShopify)
		_, err := mem.GetPage(ctx, sync.EntityKindProduct, "not-a-cursor", sync.PageFilters{})
		assert.ErrorIs(t, err, sync.ErrConnectorBadResponse)
	})

	t.Run("apply collects records and assigns IDs", func(t *testing.T) {
		mem := NewMemoryConnector(sync.SystemCodeMagento)
		result, err := mem.ApplyRecord(ctx, sync.EntityKindProduct, &sync.ExternalRecord{SKU: "SKU-1"})
		require.NoError(t, err)
		assert.True(t, result.Created)
		assert.NotEmpty(t, result.ExternalID)
		assert.Len(t, mem.Applied(), 1)
	})

	t.Run("auth failure propagates", func(t *testing.T) {
		mem := NewMemoryConnector(sync.SystemCodeShopify)
		mem.AuthErr = sync.ErrConnectorAuthFailed
		assert.ErrorIs(t, mem.Authenticate(ctx), sync.ErrConnectorAuthFailed)
		assert.False(t, mem.TestConnection(ctx))
	})
}

// ---------------------------------------------------------------------------
// Shopify Connector Tests
// ---------------------------------------------------------------------------

func TestShopifyConnector_GetPage(t *testing.T) {
	ctx := context.Background()

	t.Run("first page with link header cursor", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "tok-123", r.Header.Get("X-Shopify-Access-Token"))
			assert.Equal(t, "/products.json", r.URL.Path)
			assert.Equal(t, "2", r.URL.Query().Get("limit"))

			w.Header().Set("Link", `<https://shop.example.com/admin/api/2025-07/products.json?limit=2&page_info=abc123>; rel="next"`)
			fmt.Fprint(w, `{"products": [
				{"id": 632910392001, "updated_at": "2026-08-01T10:00:00Z",
				 "variants": [{"sku": "WIDGET-RED"}]},
				{"id": 632910392002, "variants": [{"sku": "WIDGET-BLUE"}]}
			]}`)
		}))
		defer server.Close()

		conn := newShopifyConnectorForTest(server.URL, "tok-123", 2)
		page, err := conn.GetPage(ctx, sync.EntityKindProduct, "", sync.PageFilters{})
		require.NoError(t, err)

		require.Len(t, page.Items, 2)
		assert.Equal(t, "632910392001", page.Items[0].ExternalID)
		assert.Equal(t, "WIDGET-RED", page.Items[0].SKU)
		assert.Equal(t, sync.SystemCodeShopify, page.Items[0].System)
		assert.Equal(t, 2026, page.Items[0].UpdatedAt.Year())
		assert.True(t, page.HasMore)
		assert.Equal(t, "abc123", page.NextCursor)
	})

	t.Run("cursor request carries page_info only", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "abc123", r.URL.Query().Get("page_info"))
			assert.Empty(t, r.URL.Query().Get("updated_at_min"))
			fmt.Fprint(w, `{"products": []}`)
		}))
		defer server.Close()

		since := time.Now().Add(-time.Hour)
		conn := newShopifyConnectorForTest(server.URL, "tok", 50)
		page, err := conn.GetPage(ctx, sync.EntityKindProduct, "abc123", sync.PageFilters{UpdatedSince: &since})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.False(t, page.HasMore)
	})

	t.Run("updated since filter on first page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, r.URL.Query().Get("updated_at_min"))
			fmt.Fprint(w, `{"products": []}`)
		}))
		defer server.Close()

		since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		conn := newShopifyConnectorForTest(server.URL, "tok", 50)
		_, err := conn.GetPage(ctx, sync.EntityKindProduct, "", sync.PageFilters{UpdatedSince: &since})
		require.NoError(t, err)
	})

	t.Run("rate limit maps to sentinel", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		conn := newShopifyConnectorForTest(server.URL, "tok", 50)
		_, err := conn.GetPage(ctx, sync.EntityKindProduct, "", sync.PageFilters{})
		assert.ErrorIs(t, err, sync.ErrConnectorRateLimited)
		assert.True(t, sync.IsFatalConnectorError(err))
	})

	t.Run("unauthorized maps to auth sentinel", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		conn := newShopifyConnectorForTest(server.URL, "bad-token", 50)
		_, err := conn.GetPage(ctx, sync.EntityKindProduct, "", sync.PageFilters{})
		assert.ErrorIs(t, err, sync.ErrConnectorAuthFailed)
	})

	t.Run("malformed body maps to bad response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>maintenance</html>`)
		}))
		defer server.Close()

		conn := newShopifyConnectorForTest(server.URL, "tok", 50)
		_, err := conn.GetPage(ctx, sync.EntityKindProduct, "", sync.PageFilters{})
		assert.ErrorIs(t, err, sync.ErrConnectorBadResponse)
		assert.False(t, sync.IsFatalConnectorError(err))
	})

	t.Run("unsupported kind", func(t *testing.T) {
		conn := newShopifyConnectorForTest("http://unused.invalid", "tok", 50)
		_, err := conn.GetPage(ctx, sync.EntityKind("shipment"), "", sync.PageFilters{})
		assert.ErrorIs(t, err, sync.ErrUnsupportedKind)
	})
}

func TestShopifyConnector_ApplyRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("creates product without external ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/products.json", r.URL.Path)

			var body map[string]map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Widget", body["product"]["title"])

			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"product": {"id": 7001}}`)
		}))
		defer server.Close()

		conn := newShopifyConnectorForTest(server.URL, "tok", 50)
		result, err := conn.ApplyRecord(ctx, sync.EntityKindProduct, &sync.ExternalRecord{
			SKU:    "WIDGET-1",
			Fields: map[string]any{"title": "Widget"},
		})
		require.NoError(t, err)
		assert.True(t, result.Created)
		assert.Equal(t, "7001", result.ExternalID)
	})

	t.Run("updates product with external ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/products/7001.json", r.URL.Path)
			fmt.Fprint(w, `{"product": {"id": 7001}}`)
		}))
		defer server.Close()

		conn := newShopifyConnectorForTest(server.URL, "tok", 50)
		result, err := conn.ApplyRecord(ctx, sync.EntityKindProduct, &sync.ExternalRecord{
			ExternalID: "7001",
			Fields:     map[string]any{"title": "Widget v2"},
		})
		require.NoError(t, err)
		assert.False(t, result.Created)
		assert.Equal(t, "7001", result.ExternalID)
	})

	t.Run("sets inventory level", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/inventory_levels/set.json", r.URL.Path)
			fmt.Fprint(w, `{"inventory_level": {"available": 42}}`)
		}))
		defer server.Close()

		conn := newShopifyConnectorForTest(server.URL, "tok", 50)
		result, err := conn.ApplyRecord(ctx, sync.EntityKindInventory, &sync.ExternalRecord{
			ExternalID: "inv-1",
			Fields:     map[string]any{"inventory_item_id": 99, "location_id": 1, "available": 42},
		})
		require.NoError(t, err)
		assert.Equal(t, "inv-1", result.ExternalID)
	})
}

func TestShopifyConnector_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/shop.json", r.URL.Path)
			fmt.Fprint(w, `{"shop": {"id": 1}}`)
		}))
		defer server.Close()

		conn := newShopifyConnectorForTest(server.URL, "tok", 50)
		require.NoError(t, conn.Authenticate(ctx))
		assert.True(t, conn.TestConnection(ctx))
	})

	t.Run("server outage", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		conn := newShopifyConnectorForTest(server.URL, "tok", 50)
		assert.ErrorIs(t, conn.Authenticate(ctx), sync.ErrConnectorUnavailable)
	})
}

func TestNextPageInfo(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name:   "next link present",
			header: `<https://x.myshopify.com/admin/api/2025-07/products.json?page_info=tok1&limit=50>; rel="next"`,
			want:   "tok1",
		},
		{
			name:   "previous and next links",
			header: `<https://x/p.json?page_info=prev1>; rel="previous", <https://x/p.json?page_info=next2>; rel="next"`,
			want:   "next2",
		},
		{
			name:   "only previous link",
			header: `<https://x/p.json?page_info=prev1>; rel="previous"`,
			want:   "",
		},
		{
			name:   "empty header",
			header: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextPageInfo(tt.header))
		})
	}
}

// ---------------------------------------------------------------------------
// Magento Connector Tests
// ---------------------------------------------------------------------------

func newTestMagentoConnector(serverURL string, pageSize int) *MagentoConnector {
	return NewMagentoConnector(config.MagentoConfig{
		BaseURL:     serverURL,
		AccessToken: "integration-token",
		Timeout:     5 * time.Second,
		PageSize:    pageSize,
	})
}

func TestMagentoConnector_GetPage(t *testing.T) {
	ctx := context.Background()

	t.Run("page number pagination with total count", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer integration-token", r.Header.Get("Authorization"))
			assert.Equal(t, "/rest/V1/products", r.URL.Path)
			assert.Equal(t, "1", r.URL.Query().Get("searchCriteria[currentPage]"))
			assert.Equal(t, "2", r.URL.Query().Get("searchCriteria[pageSize]"))

			fmt.Fprint(w, `{"items": [
				{"id": 11, "sku": "CHAIR-OAK", "updated_at": "2026-08-20 09:30:00"},
				{"id": 12, "sku": "CHAIR-PINE"}
			], "total_count": 5}`)
		}))
		defer server.Close()

		conn := newTestMagentoConnector(server.URL, 2)
		page, err := conn.GetPage(ctx, sync.EntityKindProduct, "", sync.PageFilters{})
		require.NoError(t, err)

		require.Len(t, page.Items, 2)
		assert.Equal(t, "11", page.Items[0].ExternalID)
		assert.Equal(t, "CHAIR-OAK", page.Items[0].SKU)
		assert.Equal(t, sync.SystemCodeMagento, page.Items[0].System)
		assert.Equal(t, time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC), page.Items[0].UpdatedAt)
		assert.Equal(t, 5, page.EstimatedTotal)
		assert.True(t, page.HasMore)
		assert.Equal(t, "2", page.NextCursor)
	})

	t.Run("last page has no cursor", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "3", r.URL.Query().Get("searchCriteria[currentPage]"))
			fmt.Fprint(w, `{"items": [{"id": 15, "sku": "LAST"}], "total_count": 5}`)
		}))
		defer server.Close()

		conn := newTestMagentoConnector(server.URL, 2)
		page, err := conn.GetPage(ctx, sync.EntityKindProduct, "3", sync.PageFilters{})
		require.NoError(t, err)
		assert.False(t, page.HasMore)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("updated since becomes search criteria filter", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "updated_at", r.URL.Query().Get("searchCriteria[filter_groups][0][filters][0][field]"))
			assert.Equal(t, "gt", r.URL.Query().Get("searchCriteria[filter_groups][0][filters][0][condition_type]"))
			assert.Equal(t, "2026-08-01 00:00:00", r.URL.Query().Get("searchCriteria[filter_groups][0][filters][0][value]"))
			fmt.Fprint(w, `{"items": [], "total_count": 0}`)
		}))
		defer server.Close()

		since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		conn := newTestMagentoConnector(server.URL, 2)
		_, err := conn.GetPage(ctx, sync.EntityKindProduct, "", sync.PageFilters{UpdatedSince: &since})
		require.NoError(t, err)
	})

	t.Run("bad cursor", func(t *testing.T) {
		conn := newTestMagentoConnector("http://unused.invalid", 2)
		_, err := conn.GetPage(ctx, sync.EntityKindProduct, "page-two", sync.PageFilters{})
		assert.ErrorIs(t, err, sync.ErrConnectorBadResponse)
	})

	t.Run("source items fall back to sku as external id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/V1/inventory/source-items", r.URL.Path)
			fmt.Fprint(w, `{"items": [
				{"sku": "CHAIR-OAK", "source_code": "east", "quantity": 14}
			], "total_count": 1}`)
		}))
		defer server.Close()

		conn := newTestMagentoConnector(server.URL, 50)
		page, err := conn.GetPage(ctx, sync.EntityKindInventory, "", sync.PageFilters{})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "CHAIR-OAK", page.Items[0].ExternalID)
	})

	t.Run("server error maps to unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		conn := newTestMagentoConnector(server.URL, 50)
		_, err := conn.GetPage(ctx, sync.EntityKindProduct, "", sync.PageFilters{})
		assert.ErrorIs(t, err, sync.ErrConnectorUnavailable)
	})
}

func TestMagentoConnector_ApplyRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts product by sku", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/rest/V1/products/CHAIR-OAK", r.URL.Path)

			var body map[string]map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Oak Chair", body["product"]["name"])

			fmt.Fprint(w, `{"id": 11, "sku": "CHAIR-OAK"}`)
		}))
		defer server.Close()

		conn := newTestMagentoConnector(server.URL, 50)
		result, err := conn.ApplyRecord(ctx, sync.EntityKindProduct, &sync.ExternalRecord{
			SKU:    "CHAIR-OAK",
			Fields: map[string]any{"sku": "CHAIR-OAK", "name": "Oak Chair"},
		})
		require.NoError(t, err)
		assert.True(t, result.Created)
		assert.Equal(t, "11", result.ExternalID)
	})

	t.Run("product without sku is rejected", func(t *testing.T) {
		conn := newTestMagentoConnector("http://unused.invalid", 50)
		_, err := conn.ApplyRecord(ctx, sync.EntityKindProduct, &sync.ExternalRecord{
			Fields: map[string]any{"name": "No Key"},
		})
		assert.ErrorIs(t, err, sync.ErrConnectorBadResponse)
	})

	t.Run("pushes inventory source item", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/rest/V1/inventory/source-items", r.URL.Path)

			var body map[string][]map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body["sourceItems"], 1)

			fmt.Fprint(w, `[]`)
		}))
		defer server.Close()

		conn := newTestMagentoConnector(server.URL, 50)
		result, err := conn.ApplyRecord(ctx, sync.EntityKindInventory, &sync.ExternalRecord{
			ExternalID: "CHAIR-OAK",
			Fields:     map[string]any{"sku": "CHAIR-OAK", "source_code": "east", "quantity": 20},
		})
		require.NoError(t, err)
		assert.Equal(t, "CHAIR-OAK", result.ExternalID)
	})
}

func TestMagentoConnector_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("missing token is not configured", func(t *testing.T) {
		conn := NewMagentoConnector(config.MagentoConfig{BaseURL: "http://unused.invalid"})
		assert.ErrorIs(t, conn.Authenticate(ctx), sync.ErrConnectorNotConfigured)
	})

	t.Run("invalid token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		conn := newTestMagentoConnector(server.URL, 50)
		err := conn.Authenticate(ctx)
		assert.ErrorIs(t, err, sync.ErrConnectorAuthFailed)
		assert.False(t, errors.Is(err, sync.ErrConnectorUnavailable))
	})

	t.Run("valid token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/V1/store/websites", r.URL.Path)
			fmt.Fprint(w, `[{"id": 1, "code": "base"}]`)
		}))
		defer server.Close()

		conn := newTestMagentoConnector(server.URL, 50)
		require.NoError(t, conn.Authenticate(ctx))
		assert.True(t, conn.TestConnection(ctx))
	})
}
