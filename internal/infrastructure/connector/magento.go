package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/commercesync/backend/internal/infrastructure/config"
)

const (
	// magentoMaxResponseSize caps how much of a response body we read
	magentoMaxResponseSize = 10 * 1024 * 1024

	// magentoTimeLayout is the timestamp format Magento uses in payloads
	magentoTimeLayout = "2006-01-02 15:04:05"
)

// magentoSearchEndpoints maps entity kinds to searchCriteria-capable resources
var magentoSearchEndpoints = map[sync.EntityKind]string{
	sync.EntityKindProduct:   "/rest/V1/products",
	sync.EntityKindInventory: "/rest/V1/inventory/source-items",
	sync.EntityKindCustomer:  "/rest/V1/customers/search",
	sync.EntityKindOrder:     "/rest/V1/orders",
}

// MagentoConnector talks to the Magento 2 REST API
type MagentoConnector struct {
	baseURL     string
	accessToken string
	pageSize    int
	httpClient  *http.Client
}

// NewMagentoConnector creates a connector for one Magento instance
func NewMagentoConnector(cfg config.MagentoConfig) *MagentoConnector {
	return &MagentoConnector{
		baseURL:     cfg.BaseURL,
		accessToken: cfg.AccessToken,
		pageSize:    cfg.PageSize,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// System returns the platform this connector handles
func (c *MagentoConnector) System() sync.SystemCode {
	return sync.SystemCodeMagento
}

// Authenticate verifies the integration token
func (c *MagentoConnector) Authenticate(ctx context.Context) error {
	if c.accessToken == "" {
		return sync.ErrConnectorNotConfigured
	}
	_, status, err := c.doRequest(ctx, http.MethodGet, "/rest/V1/store/websites", nil, nil)
	if err != nil {
		return err
	}
	return statusToConnectorError(status)
}

// TestConnection reports whether the instance is reachable
func (c *MagentoConnector) TestConnection(ctx context.Context) bool {
	return c.Authenticate(ctx) == nil
}

// GetPage fetches one page of records. Magento paginates by page number via
// searchCriteria, so the cursor is the decimal next page number.
func (c *MagentoConnector) GetPage(ctx context.Context, kind sync.EntityKind, cursor string, filters sync.PageFilters) (*sync.Page, error) {
	endpoint, ok := magentoSearchEndpoints[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sync.ErrUnsupportedKind, kind)
	}

	page := 1
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("%w: bad page cursor %q", sync.ErrConnectorBadResponse, cursor)
		}
		page = parsed
	}

	query := url.Values{}
	query.Set("searchCriteria[currentPage]", strconv.Itoa(page))
	query.Set("searchCriteria[pageSize]", strconv.Itoa(c.limit()))
	if filters.UpdatedSince != nil {
		query.Set("searchCriteria[filter_groups][0][filters][0][field]", "updated_at")
		query.Set("searchCriteria[filter_groups][0][filters][0][condition_type]", "gt")
		query.Set("searchCriteria[filter_groups][0][filters][0][value]",
			filters.UpdatedSince.UTC().Format(magentoTimeLayout))
	}

	body, status, err := c.doRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return nil, err
	}
	if err := statusToConnectorError(status); err != nil {
		return nil, err
	}

	var envelope struct {
		Items      []json.RawMessage `json:"items"`
		TotalCount int               `json:"total_count"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", sync.ErrConnectorBadResponse, err)
	}

	result := &sync.Page{
		Items:          make([]sync.ExternalRecord, 0, len(envelope.Items)),
		EstimatedTotal: envelope.TotalCount,
	}
	for _, raw := range envelope.Items {
		var item map[string]any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("%w: %v", sync.ErrConnectorBadResponse, err)
		}
		result.Items = append(result.Items, magentoToExternalRecord(kind, item))
	}

	if page*c.limit() < envelope.TotalCount {
		result.HasMore = true
		result.NextCursor = strconv.Itoa(page + 1)
	}
	return result, nil
}

// ApplyRecord pushes one record to Magento. Products key by SKU, so a PUT
// against the SKU path creates or updates in one shot.
func (c *MagentoConnector) ApplyRecord(ctx context.Context, kind sync.EntityKind, record *sync.ExternalRecord) (*sync.ApplyResult, error) {
	switch kind {
	case sync.EntityKindProduct:
		return c.applyProduct(ctx, record)
	case sync.EntityKindInventory:
		return c.applySourceItem(ctx, record)
	default:
		return nil, fmt.Errorf("%w: %s push not supported on magento", sync.ErrUnsupportedKind, kind)
	}
}

func (c *MagentoConnector) applyProduct(ctx context.Context, record *sync.ExternalRecord) (*sync.ApplyResult, error) {
	if record.SKU == "" {
		return nil, fmt.Errorf("%w: product record missing sku", sync.ErrConnectorBadResponse)
	}
	payload := map[string]any{"product": record.Fields}
	body, status, err := c.doRequest(ctx, http.MethodPut,
		"/rest/V1/products/"+url.PathEscape(record.SKU), nil, payload)
	if err != nil {
		return nil, err
	}
	if err := statusToConnectorError(status); err != nil {
		return nil, err
	}

	var parsed map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", sync.ErrConnectorBadResponse, err)
	}

	externalID := record.ExternalID
	if id := formatExternalID(parsed["id"]); id != "" {
		externalID = id
	}
	return &sync.ApplyResult{
		ExternalID: externalID,
		Created:    record.ExternalID == "",
	}, nil
}

func (c *MagentoConnector) applySourceItem(ctx context.Context, record *sync.ExternalRecord) (*sync.ApplyResult, error) {
	payload := map[string]any{"sourceItems": []any{record.Fields}}
	_, status, err := c.doRequest(ctx, http.MethodPost, "/rest/V1/inventory/source-items", nil, payload)
	if err != nil {
		return nil, err
	}
	if err := statusToConnectorError(status); err != nil {
		return nil, err
	}
	return &sync.ApplyResult{ExternalID: record.ExternalID}, nil
}

func (c *MagentoConnector) limit() int {
	if c.pageSize > 0 {
		return c.pageSize
	}
	return 200
}

// doRequest performs one HTTP call and returns the bounded response body
func (c *MagentoConnector) doRequest(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, int, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("magento: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("magento: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", sync.ErrConnectorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, magentoMaxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response: %v", sync.ErrConnectorBadResponse, err)
	}
	return body, resp.StatusCode, nil
}

// magentoToExternalRecord normalizes one Magento payload item
func magentoToExternalRecord(kind sync.EntityKind, item map[string]any) sync.ExternalRecord {
	record := sync.ExternalRecord{
		System:     sync.SystemCodeMagento,
		Kind:       kind,
		ExternalID: formatExternalID(item["id"]),
		Fields:     item,
	}
	if sku, ok := item["sku"].(string); ok {
		record.SKU = sku
	}
	if record.ExternalID == "" {
		// Source items and some catalog payloads key purely by SKU
		record.ExternalID = record.SKU
	}
	if ts := magentoUpdatedAt(item); !ts.IsZero() {
		record.UpdatedAt = ts
	}
	if raw, err := json.Marshal(item); err == nil {
		record.Raw = string(raw)
	}
	return record
}

func magentoUpdatedAt(item map[string]any) time.Time {
	ts, ok := item["updated_at"].(string)
	if !ok {
		return time.Time{}
	}
	if t, err := time.Parse(magentoTimeLayout, ts); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t
	}
	return time.Time{}
}

// Ensure MagentoConnector implements Connector
var _ sync.Connector = (*MagentoConnector)(nil)
