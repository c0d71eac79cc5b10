package conflict

import (
	"reflect"

	"github.com/commercesync/backend/internal/domain/sync"
)

// Detector compares system views of one entity and emits conflicts. It is a
// pure function holder with no side effects.
type Detector struct{}

// NewDetector creates a new detector
func NewDetector() *Detector {
	return &Detector{}
}

// Detect compares a local record with an incoming external one and returns
// an update conflict when any shared field diverges, nil when the views
// agree. Fields present on only one side are not divergence, the other side
// simply never tracked them.
func (d *Detector) Detect(local *sync.LocalRecord, incoming *sync.ExternalRecord) (*DataConflict, error) {
	if local == nil || incoming == nil {
		return nil, nil
	}
	if !d.diverges(local.Fields, incoming.Fields) {
		return nil, nil
	}

	sources := []ConflictSource{
		{System: sync.SystemCodeInternal, Timestamp: local.UpdatedAt, Data: local.Fields},
		{System: incoming.System, Timestamp: incoming.UpdatedAt, Data: incoming.Fields},
	}
	return NewDataConflict(local.TenantID, local.Kind, local.ID, ConflictTypeUpdate, sources)
}

// diverges reports whether any field both sides carry has different values
func (d *Detector) diverges(local, incoming map[string]any) bool {
	for k, iv := range incoming {
		lv, ok := local[k]
		if !ok {
			continue
		}
		if !valuesEqual(lv, iv) {
			return true
		}
	}
	return false
}

// valuesEqual compares field values, normalizing numeric types so a JSON
// float64 compares equal to an int with the same value
func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
