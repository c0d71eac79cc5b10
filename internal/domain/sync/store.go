package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Local store port
// ---------------------------------------------------------------------------

// LocalRecord is the canonical form an entity takes in the internal store,
// independent of which external system it came from.
type LocalRecord struct {
	ID        uuid.UUID      `json:"id"`
	TenantID  uuid.UUID      `json:"tenant_id"`
	Kind      EntityKind     `json:"kind"`
	SKU       string         `json:"sku,omitempty"`
	Fields    map[string]any `json:"fields"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// StoreWriter abstracts reads and writes against the internal store for
// synchronized entities. Pull jobs write through it, push jobs read from it.
type StoreWriter interface {
	// Get loads one local record by ID
	Get(ctx context.Context, tenantID uuid.UUID, kind EntityKind, id uuid.UUID) (*LocalRecord, error)

	// GetPage returns a page of local records matching the filters
	GetPage(ctx context.Context, tenantID uuid.UUID, kind EntityKind, filters PageFilters, cursor string, limit int) (*LocalPage, error)

	// Upsert creates or updates a local record, returning its ID and
	// whether it was created
	Upsert(ctx context.Context, record *LocalRecord) (uuid.UUID, bool, error)

	// Delete removes a local record
	Delete(ctx context.Context, tenantID uuid.UUID, kind EntityKind, id uuid.UUID) error
}

// LocalPage is one page of local records read for a push job
type LocalPage struct {
	Items      []LocalRecord
	HasMore    bool
	NextCursor string
}

// ---------------------------------------------------------------------------
// Field hashing
// ---------------------------------------------------------------------------

// HashFields computes a stable hash over a record's field map. The hash is
// stored on the product mapping after each applied write so echoed webhooks
// and re-pulled pages can be recognized as our own changes.
func HashFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		// JSON keeps numbers and nested values stable across runs
		b, err := json.Marshal(fields[k])
		if err != nil {
			continue
		}
		h.Write(b)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
