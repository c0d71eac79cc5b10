package conflict

import (
	"fmt"
	"sort"

	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
)

// Strategy decides the outcome of one conflict without consulting rules.
// Implementations must be deterministic over the same input.
type Strategy interface {
	Name() string
	Resolve(c *DataConflict) (*Resolution, error)
}

// ---------------------------------------------------------------------------
// Last write wins
// ---------------------------------------------------------------------------

// LastWriteWinsStrategy picks the source with the newest timestamp. Equal
// timestamps break to the lexically smallest system code so the outcome
// stays deterministic.
type LastWriteWinsStrategy struct{}

func (LastWriteWinsStrategy) Name() string { return "last_write_wins" }

func (LastWriteWinsStrategy) Resolve(c *DataConflict) (*Resolution, error) {
	if len(c.Sources) == 0 {
		return nil, shared.NewDomainError("EMPTY_CONFLICT", "Conflict has no sources")
	}
	winner := c.Sources[0]
	for _, s := range c.Sources[1:] {
		if s.Timestamp.After(winner.Timestamp) {
			winner = s
			continue
		}
		if s.Timestamp.Equal(winner.Timestamp) && s.System.String() < winner.System.String() {
			winner = s
		}
	}
	w := winner
	return &Resolution{
		ConflictID: c.ID,
		Action:     ActionAcceptSource,
		Winner:     &w,
		Reason:     fmt.Sprintf("last write wins: %s at %s", w.System, w.Timestamp.UTC().Format("2006-01-02T15:04:05Z")),
	}, nil
}

// ---------------------------------------------------------------------------
// Field merge
// ---------------------------------------------------------------------------

// FieldMergeStrategy builds a merged payload taking, per field, the first
// non-empty value scanning sources in their given order. Timestamps do not
// influence the scan.
type FieldMergeStrategy struct{}

func (FieldMergeStrategy) Name() string { return "field_merge" }

func (FieldMergeStrategy) Resolve(c *DataConflict) (*Resolution, error) {
	if len(c.Sources) == 0 {
		return nil, shared.NewDomainError("EMPTY_CONFLICT", "Conflict has no sources")
	}
	merged := make(map[string]any)
	for _, s := range c.Sources {
		for k, v := range s.Data {
			if _, taken := merged[k]; taken {
				continue
			}
			if isEmptyValue(v) {
				continue
			}
			merged[k] = v
		}
	}
	return &Resolution{
		ConflictID: c.ID,
		Action:     ActionMerge,
		MergedData: merged,
		Reason:     fmt.Sprintf("field merge across %d sources, first non-empty value per field", len(c.Sources)),
	}, nil
}

// ---------------------------------------------------------------------------
// Manual review
// ---------------------------------------------------------------------------

// ManualReviewStrategy defers the conflict to an operator
type ManualReviewStrategy struct {
	// Why is included in the resolution reason
	Why string
}

func (ManualReviewStrategy) Name() string { return "manual_review" }

func (s ManualReviewStrategy) Resolve(c *DataConflict) (*Resolution, error) {
	reason := s.Why
	if reason == "" {
		reason = "no automatic resolution applies"
	}
	return &Resolution{
		ConflictID: c.ID,
		Action:     ActionManualReview,
		Reason:     reason,
	}, nil
}

// ---------------------------------------------------------------------------
// Accept first
// ---------------------------------------------------------------------------

// AcceptFirstStrategy accepts the first source as given. Used for validation
// error conflicts where the caller already filtered candidates down to valid
// ones.
type AcceptFirstStrategy struct{}

func (AcceptFirstStrategy) Name() string { return "accept_first" }

func (AcceptFirstStrategy) Resolve(c *DataConflict) (*Resolution, error) {
	if len(c.Sources) == 0 {
		return nil, shared.NewDomainError("EMPTY_CONFLICT", "Conflict has no sources")
	}
	w := c.Sources[0]
	return &Resolution{
		ConflictID: c.ID,
		Action:     ActionAcceptSource,
		Winner:     &w,
		Reason:     fmt.Sprintf("accepted first candidate source %s", w.System),
	}, nil
}

// ---------------------------------------------------------------------------
// Master data priority
// ---------------------------------------------------------------------------

// MasterDataPriorityStrategy picks the source from the highest-precedence
// system. Available to custom rules, not wired as a default.
type MasterDataPriorityStrategy struct {
	// Precedence lists systems from most to least authoritative. Empty
	// falls back to the fixed platform precedence.
	Precedence []sync.SystemCode
}

func (MasterDataPriorityStrategy) Name() string { return "master_data_priority" }

func (s MasterDataPriorityStrategy) Resolve(c *DataConflict) (*Resolution, error) {
	order := s.Precedence
	if len(order) == 0 {
		order = sync.MasterDataPrecedence()
	}
	for _, system := range order {
		for _, src := range c.Sources {
			if src.System == system {
				w := src
				return &Resolution{
					ConflictID: c.ID,
					Action:     ActionAcceptSource,
					Winner:     &w,
					Reason:     fmt.Sprintf("master data priority: %s is authoritative", system),
				}, nil
			}
		}
	}
	return nil, shared.NewDomainError("NO_AUTHORITATIVE_SOURCE", "No source matches the precedence list")
}

// ---------------------------------------------------------------------------
// Deep merge
// ---------------------------------------------------------------------------

// DeepMergeStrategy recursively merges all sources ordered oldest to newest.
// A newer source's non-empty leaf values override older ones, empty values
// fall through to whatever an older source set.
type DeepMergeStrategy struct{}

func (DeepMergeStrategy) Name() string { return "deep_merge" }

func (DeepMergeStrategy) Resolve(c *DataConflict) (*Resolution, error) {
	if len(c.Sources) == 0 {
		return nil, shared.NewDomainError("EMPTY_CONFLICT", "Conflict has no sources")
	}
	ordered := make([]ConflictSource, len(c.Sources))
	copy(ordered, c.Sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	merged := make(map[string]any)
	for _, s := range ordered {
		deepMergeInto(merged, s.Data)
	}
	return &Resolution{
		ConflictID: c.ID,
		Action:     ActionMerge,
		MergedData: merged,
		Reason:     fmt.Sprintf("deep merge of %d sources, newest non-empty leaves win", len(c.Sources)),
	}, nil
}

func deepMergeInto(dst, src map[string]any) {
	for k, v := range src {
		if isEmptyValue(v) {
			continue
		}
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			deepMergeInto(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			child := make(map[string]any)
			deepMergeInto(child, srcMap)
			dst[k] = child
			continue
		}
		dst[k] = v
	}
}

// isEmptyValue treats nil and empty strings as absent. Zero numbers are
// legitimate values (an inventory level of 0 is data, not absence).
func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}
