package handler

import (
	"github.com/gin-gonic/gin"

	conflictapp "github.com/commercesync/backend/internal/application/conflict"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/commercesync/backend/internal/interfaces/http/dto"
)

// ConflictHandler handles manual conflict review endpoints
type ConflictHandler struct {
	BaseHandler
	service *conflictapp.Service
}

// NewConflictHandler creates a new ConflictHandler
func NewConflictHandler(service *conflictapp.Service) *ConflictHandler {
	return &ConflictHandler{service: service}
}

// ListConflictsRequest holds query filters for listing pending conflicts
type ListConflictsRequest struct {
	dto.ListRequest
	Kind string `form:"kind"`
}

// ListPending returns conflicts waiting for manual review, oldest first
func (h *ConflictHandler) ListPending(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}

	var req ListConflictsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	req.Normalize()

	var kind *sync.EntityKind
	if req.Kind != "" {
		k := sync.EntityKind(req.Kind)
		if !k.IsValid() {
			h.BadRequest(c, "Unknown entity kind: "+req.Kind)
			return
		}
		kind = &k
	}

	conflicts, total, err := h.service.ListPending(c.Request.Context(), tenantID, kind, req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, conflicts, total, req.Page, req.PageSize)
}

// Get returns one conflict with its competing sources
func (h *ConflictHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid conflict ID")
		return
	}

	conflict, err := h.service.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, conflict)
}

// Resolve applies an operator's decision to a parked conflict
func (h *ConflictHandler) Resolve(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid conflict ID")
		return
	}

	var req conflictapp.ManualResolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	resolved, err := h.service.ResolveManually(c.Request.Context(), tenantID, id, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resolved)
}

// RegisterRoutes registers conflict review routes
func (h *ConflictHandler) RegisterRoutes(rg *gin.RouterGroup) {
	conflicts := rg.Group("/conflicts")
	{
		conflicts.GET("/pending", h.ListPending)
		conflicts.GET("/:id", h.Get)
		conflicts.POST("/:id/resolve", h.Resolve)
	}
}
