package conflict

import (
	"fmt"
	"sort"

	"github.com/commercesync/backend/internal/domain/sync"
)

// ---------------------------------------------------------------------------
// Rules
// ---------------------------------------------------------------------------

// Rule is one custom resolution policy. Rules run before strategies. A rule
// applies when the entity kind and conflict type match and Condition returns
// true.
type Rule struct {
	Name      string
	Kind      sync.EntityKind
	Type      ConflictType
	Priority  int
	Condition func(c *DataConflict) bool
	Resolve   func(c *DataConflict) (*Resolution, error)
}

func (r *Rule) matches(c *DataConflict) bool {
	if r.Kind != c.Kind || r.Type != c.Type {
		return false
	}
	if r.Condition == nil {
		return true
	}
	return r.Condition(c)
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

// Resolver turns conflicts into resolutions. Evaluation is rule-first in
// descending priority, then the default strategy for the conflict type, then
// manual review. A conflict is never dropped.
type Resolver struct {
	rules      []Rule
	strategies map[ConflictType]Strategy
}

// NewResolver creates a resolver with the default strategy per conflict type
func NewResolver() *Resolver {
	return &Resolver{
		strategies: map[ConflictType]Strategy{
			ConflictTypeUpdate:           LastWriteWinsStrategy{},
			ConflictTypeDuplicate:        FieldMergeStrategy{},
			ConflictTypeMissingReference: ManualReviewStrategy{Why: "referenced data is missing and will not be created automatically"},
			ConflictTypeValidationError:  AcceptFirstStrategy{},
		},
	}
}

// AddRule registers a custom rule. Rules of equal priority keep their
// registration order.
func (r *Resolver) AddRule(rule Rule) {
	r.rules = append(r.rules, rule)
	sort.SliceStable(r.rules, func(i, j int) bool {
		return r.rules[i].Priority > r.rules[j].Priority
	})
}

// SetStrategy replaces the default strategy for one conflict type
func (r *Resolver) SetStrategy(t ConflictType, s Strategy) {
	r.strategies[t] = s
}

// ResolveConflict resolves a single conflict. Failures inside rules or
// strategies, including panics, degrade to a manual review resolution
// rather than surfacing as an error.
func (r *Resolver) ResolveConflict(c *DataConflict) (resolution *Resolution) {
	defer func() {
		if rec := recover(); rec != nil {
			resolution = &Resolution{
				ConflictID: c.ID,
				Action:     ActionManualReview,
				Reason:     fmt.Sprintf("resolution panicked: %v", rec),
			}
		}
	}()

	for i := range r.rules {
		rule := &r.rules[i]
		if !rule.matches(c) {
			continue
		}
		res, err := rule.Resolve(c)
		if err != nil {
			return &Resolution{
				ConflictID: c.ID,
				Action:     ActionManualReview,
				Reason:     fmt.Sprintf("rule %q failed: %v", rule.Name, err),
			}
		}
		if res.Action == ActionAcceptSource && res.Winner == nil {
			return &Resolution{
				ConflictID: c.ID,
				Action:     ActionManualReview,
				Reason:     fmt.Sprintf("rule %q accepted a source without a winner", rule.Name),
			}
		}
		res.ConflictID = c.ID
		res.Reason = fmt.Sprintf("rule %q: %s", rule.Name, res.Reason)
		return res
	}

	if strategy, ok := r.strategies[c.Type]; ok {
		res, err := strategy.Resolve(c)
		if err != nil {
			return &Resolution{
				ConflictID: c.ID,
				Action:     ActionManualReview,
				Reason:     fmt.Sprintf("strategy %q failed: %v", strategy.Name(), err),
			}
		}
		return res
	}

	return &Resolution{
		ConflictID: c.ID,
		Action:     ActionManualReview,
		Reason:     "no rule or strategy applies to conflict type " + c.Type.String(),
	}
}

// ResolveConflicts resolves a batch independently. The output preserves the
// input's length and order, one resolution per conflict.
func (r *Resolver) ResolveConflicts(conflicts []*DataConflict) []*Resolution {
	resolutions := make([]*Resolution, len(conflicts))
	for i, c := range conflicts {
		resolutions[i] = r.ResolveConflict(c)
	}
	return resolutions
}
