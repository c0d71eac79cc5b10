package conflictapp

import (
	"context"

	"github.com/commercesync/backend/internal/domain/conflict"
	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ManualResolutionRequest is an operator's decision for a parked conflict
type ManualResolutionRequest struct {
	// WinnerSystem accepts one source's data wholesale
	WinnerSystem string `json:"winner_system,omitempty"`
	// MergedData applies an operator-edited payload instead
	MergedData map[string]any `json:"merged_data,omitempty"`
	Note       string         `json:"note,omitempty"`
}

// Validate checks that exactly one decision shape was supplied
func (r *ManualResolutionRequest) Validate() error {
	hasWinner := r.WinnerSystem != ""
	hasMerged := len(r.MergedData) > 0
	if hasWinner == hasMerged {
		return shared.NewDomainError("INVALID_RESOLUTION", "Provide either a winning system or merged data, not both")
	}
	return nil
}

// Service manages conflicts parked for manual review
type Service struct {
	conflicts conflict.Repository
	store     sync.StoreWriter
	logger    *zap.Logger
}

// NewService creates a new conflict review service
func NewService(conflicts conflict.Repository, store sync.StoreWriter, logger *zap.Logger) *Service {
	return &Service{
		conflicts: conflicts,
		store:     store,
		logger:    logger,
	}
}

// ListPending returns open conflicts awaiting review
func (s *Service) ListPending(ctx context.Context, tenantID uuid.UUID, kind *sync.EntityKind, page, pageSize int) ([]conflict.DataConflict, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return s.conflicts.ListOpen(ctx, tenantID, kind, page, pageSize)
}

// Get loads one conflict
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*conflict.DataConflict, error) {
	return s.conflicts.FindByID(ctx, tenantID, id)
}

// ResolveManually applies an operator's decision to a parked conflict and
// closes it
func (s *Service) ResolveManually(ctx context.Context, tenantID, conflictID uuid.UUID, req *ManualResolutionRequest) (*conflict.DataConflict, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := s.conflicts.FindByID(ctx, tenantID, conflictID)
	if err != nil {
		return nil, err
	}
	if c.Status == conflict.ReviewStatusResolved {
		return nil, shared.NewDomainError("ALREADY_RESOLVED", "Conflict has already been resolved")
	}

	payload, err := s.decisionPayload(c, req)
	if err != nil {
		return nil, err
	}

	record := &sync.LocalRecord{
		ID:       c.EntityID,
		TenantID: tenantID,
		Kind:     c.Kind,
		Fields:   payload,
	}
	if _, _, err := s.store.Upsert(ctx, record); err != nil {
		return nil, err
	}

	if err := c.MarkResolved(req.Note); err != nil {
		return nil, err
	}
	if err := s.conflicts.Save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("conflict resolved manually",
		zap.String("conflict_id", c.ID.String()),
		zap.String("entity_id", c.EntityID.String()),
		zap.String("kind", c.Kind.String()))
	return c, nil
}

func (s *Service) decisionPayload(c *conflict.DataConflict, req *ManualResolutionRequest) (map[string]any, error) {
	if len(req.MergedData) > 0 {
		return req.MergedData, nil
	}
	winner := sync.SystemCode(req.WinnerSystem)
	for _, src := range c.Sources {
		if src.System == winner {
			return src.Data, nil
		}
	}
	return nil, shared.NewDomainError("UNKNOWN_SOURCE", "No conflict source belongs to system "+req.WinnerSystem)
}
