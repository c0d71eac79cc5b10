package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/commercesync/backend/internal/infrastructure/config"
	"github.com/go-resty/resty/v2"
)

// shopifyEndpoints maps entity kinds to the Admin API collection resources
var shopifyEndpoints = map[sync.EntityKind]struct {
	path string
	root string
}{
	sync.EntityKindProduct:   {path: "/products.json", root: "products"},
	sync.EntityKindInventory: {path: "/inventory_levels.json", root: "inventory_levels"},
	sync.EntityKindCustomer:  {path: "/customers.json", root: "customers"},
	sync.EntityKindOrder:     {path: "/orders.json", root: "orders"},
	sync.EntityKindPrice:     {path: "/price_rules.json", root: "price_rules"},
}

// ShopifyConnector talks to the Shopify Admin REST API
type ShopifyConnector struct {
	client   *resty.Client
	pageSize int
}

// NewShopifyConnector creates a connector for one Shopify shop
func NewShopifyConnector(cfg config.ShopifyConfig) *ShopifyConnector {
	client := resty.New().
		SetBaseURL("https://"+cfg.ShopDomain+"/admin/api/"+cfg.APIVersion).
		SetHeader("X-Shopify-Access-Token", cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &ShopifyConnector{
		client:   client,
		pageSize: cfg.PageSize,
	}
}

// newShopifyConnectorForTest builds a connector against an arbitrary base URL
func newShopifyConnectorForTest(baseURL, token string, pageSize int) *ShopifyConnector {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("X-Shopify-Access-Token", token).
		SetHeader("Content-Type", "application/json")
	return &ShopifyConnector{client: client, pageSize: pageSize}
}

// System returns the platform this connector handles
func (c *ShopifyConnector) System() sync.SystemCode {
	return sync.SystemCodeShopify
}

// Authenticate verifies the access token against the shop resource
func (c *ShopifyConnector) Authenticate(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get("/shop.json")
	if err != nil {
		return fmt.Errorf("%w: %v", sync.ErrConnectorUnavailable, err)
	}
	if err := statusToConnectorError(resp.StatusCode()); err != nil {
		return err
	}
	return nil
}

// TestConnection reports whether the shop is reachable
func (c *ShopifyConnector) TestConnection(ctx context.Context) bool {
	return c.Authenticate(ctx) == nil
}

// GetPage fetches one page of records. Shopify paginates with an opaque
// page_info token carried in the Link response header.
func (c *ShopifyConnector) GetPage(ctx context.Context, kind sync.EntityKind, cursor string, filters sync.PageFilters) (*sync.Page, error) {
	endpoint, ok := shopifyEndpoints[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sync.ErrUnsupportedKind, kind)
	}

	req := c.client.R().SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", c.limit()))

	if cursor != "" {
		// A page_info request may not carry any other filter params
		req.SetQueryParam("page_info", cursor)
	} else {
		if filters.UpdatedSince != nil {
			req.SetQueryParam("updated_at_min", filters.UpdatedSince.Format(time.RFC3339))
		}
		if len(filters.ProductIDs) > 0 && kind == sync.EntityKindProduct {
			req.SetQueryParam("ids", strings.Join(filters.ProductIDs, ","))
		}
		if filters.WarehouseCode != "" && kind == sync.EntityKindInventory {
			req.SetQueryParam("location_ids", filters.WarehouseCode)
		}
	}

	resp, err := req.Get(endpoint.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sync.ErrConnectorUnavailable, err)
	}
	if err := statusToConnectorError(resp.StatusCode()); err != nil {
		return nil, err
	}

	items, err := decodeCollection(resp.Body(), endpoint.root)
	if err != nil {
		return nil, err
	}

	page := &sync.Page{Items: make([]sync.ExternalRecord, 0, len(items))}
	for _, item := range items {
		page.Items = append(page.Items, c.toExternalRecord(kind, item))
	}

	if next := nextPageInfo(resp.Header().Get("Link")); next != "" {
		page.HasMore = true
		page.NextCursor = next
	}
	return page, nil
}

// ApplyRecord pushes one record to Shopify. Records without an external ID
// are created, the rest updated in place.
func (c *ShopifyConnector) ApplyRecord(ctx context.Context, kind sync.EntityKind, record *sync.ExternalRecord) (*sync.ApplyResult, error) {
	switch kind {
	case sync.EntityKindProduct:
		return c.applyProduct(ctx, record)
	case sync.EntityKindInventory:
		return c.applyInventoryLevel(ctx, record)
	default:
		return nil, fmt.Errorf("%w: %s push not supported on shopify", sync.ErrUnsupportedKind, kind)
	}
}

func (c *ShopifyConnector) applyProduct(ctx context.Context, record *sync.ExternalRecord) (*sync.ApplyResult, error) {
	body := map[string]any{"product": record.Fields}

	var (
		resp *resty.Response
		err  error
	)
	created := record.ExternalID == ""
	if created {
		resp, err = c.client.R().SetContext(ctx).SetBody(body).Post("/products.json")
	} else {
		resp, err = c.client.R().SetContext(ctx).SetBody(body).
			Put("/products/" + record.ExternalID + ".json")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sync.ErrConnectorUnavailable, err)
	}
	if err := statusToConnectorError(resp.StatusCode()); err != nil {
		return nil, err
	}

	var parsed struct {
		Product map[string]any `json:"product"`
	}
	if err := decodeJSON(resp.Body(), &parsed); err != nil {
		return nil, err
	}

	externalID := record.ExternalID
	if id := formatExternalID(parsed.Product["id"]); id != "" {
		externalID = id
	}
	return &sync.ApplyResult{ExternalID: externalID, Created: created}, nil
}

func (c *ShopifyConnector) applyInventoryLevel(ctx context.Context, record *sync.ExternalRecord) (*sync.ApplyResult, error) {
	resp, err := c.client.R().SetContext(ctx).
		SetBody(record.Fields).
		Post("/inventory_levels/set.json")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sync.ErrConnectorUnavailable, err)
	}
	if err := statusToConnectorError(resp.StatusCode()); err != nil {
		return nil, err
	}
	return &sync.ApplyResult{ExternalID: record.ExternalID}, nil
}

func (c *ShopifyConnector) limit() int {
	if c.pageSize > 0 {
		return c.pageSize
	}
	return 250
}

// toExternalRecord normalizes one Shopify payload item
func (c *ShopifyConnector) toExternalRecord(kind sync.EntityKind, item map[string]any) sync.ExternalRecord {
	record := sync.ExternalRecord{
		System:     sync.SystemCodeShopify,
		Kind:       kind,
		ExternalID: formatExternalID(item["id"]),
		Fields:     item,
	}
	if kind == sync.EntityKindInventory {
		// Inventory levels have no own ID, the item+location pair is the key
		record.ExternalID = formatExternalID(item["inventory_item_id"])
	}

	if sku := extractShopifySKU(kind, item); sku != "" {
		record.SKU = sku
	}
	if ts, ok := item["updated_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			record.UpdatedAt = t
		}
	}
	if raw, err := json.Marshal(item); err == nil {
		record.Raw = string(raw)
	}
	return record
}

// extractShopifySKU pulls the natural key out of a payload item
func extractShopifySKU(kind sync.EntityKind, item map[string]any) string {
	if sku, ok := item["sku"].(string); ok && sku != "" {
		return sku
	}
	if kind != sync.EntityKindProduct {
		return ""
	}
	variants, ok := item["variants"].([]any)
	if !ok || len(variants) == 0 {
		return ""
	}
	first, ok := variants[0].(map[string]any)
	if !ok {
		return ""
	}
	sku, _ := first["sku"].(string)
	return sku
}

// statusToConnectorError maps an HTTP status to a connector sentinel
func statusToConnectorError(status int) error {
	switch {
	case status == 401 || status == 403:
		return fmt.Errorf("%w: HTTP %d", sync.ErrConnectorAuthFailed, status)
	case status == 429:
		return sync.ErrConnectorRateLimited
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d", sync.ErrConnectorUnavailable, status)
	case status >= 400:
		return fmt.Errorf("%w: HTTP %d", sync.ErrConnectorBadResponse, status)
	default:
		return nil
	}
}

// decodeCollection extracts the named array of objects from a response body.
// Numbers decode as json.Number so 64-bit platform IDs survive intact.
func decodeCollection(body []byte, root string) ([]map[string]any, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", sync.ErrConnectorBadResponse, err)
	}
	raw, ok := envelope[root]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q collection", sync.ErrConnectorBadResponse, root)
	}

	var items []map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %v", sync.ErrConnectorBadResponse, err)
	}
	return items, nil
}

// decodeJSON parses a response body preserving number precision
func decodeJSON(body []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", sync.ErrConnectorBadResponse, err)
	}
	return nil
}

// formatExternalID renders a platform ID field as a string
func formatExternalID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return ""
	}
}

// nextPageInfo extracts the page_info token of the rel="next" link from a
// Shopify Link header
func nextPageInfo(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}
	for _, part := range strings.Split(linkHeader, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end <= start {
			continue
		}
		rawURL := part[start+1 : end]
		marker := "page_info="
		idx := strings.Index(rawURL, marker)
		if idx < 0 {
			continue
		}
		token := rawURL[idx+len(marker):]
		if amp := strings.Index(token, "&"); amp >= 0 {
			token = token[:amp]
		}
		return token
	}
	return ""
}

// Ensure ShopifyConnector implements Connector
var _ sync.Connector = (*ShopifyConnector)(nil)
