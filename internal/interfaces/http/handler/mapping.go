package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/commercesync/backend/internal/domain/mapping"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/commercesync/backend/internal/interfaces/http/dto"
)

// MappingHandler handles product mapping endpoints
type MappingHandler struct {
	BaseHandler
	mapper   *mapping.Mapper
	mappings mapping.Repository
}

// NewMappingHandler creates a new MappingHandler
func NewMappingHandler(mapper *mapping.Mapper, mappings mapping.Repository) *MappingHandler {
	return &MappingHandler{
		mapper:   mapper,
		mappings: mappings,
	}
}

// CreateMappingRequest registers a manual link between a local record and
// its identifier in one external system
type CreateMappingRequest struct {
	Kind       string `json:"kind" binding:"required,entitykind"`
	System     string `json:"system" binding:"required"`
	LocalID    string `json:"local_id" binding:"required,uuid"`
	ExternalID string `json:"external_id" binding:"required,max=128"`
	SKU        string `json:"sku" binding:"max=128"`
}

// ListMappingsRequest holds query filters for listing mappings
type ListMappingsRequest struct {
	dto.ListRequest
	Kind   string `form:"kind"`
	System string `form:"system"`
}

// List returns mappings for the tenant
func (h *MappingHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}

	var req ListMappingsRequest
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
	var system *sync.SystemCode
	if req.System != "" {
		s := sync.SystemCode(strings.ToUpper(req.System))
		system = &s
	}

	mappings, total, err := h.mappings.List(c.Request.Context(), tenantID, kind, system, req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, mappings, total, req.Page, req.PageSize)
}

// Create registers a mapping decided by an operator
func (h *MappingHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}

	var req CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	kind := sync.EntityKind(req.Kind)
	system := sync.SystemCode(strings.ToUpper(req.System))
	if !system.IsExternal() {
		h.BadRequest(c, "System must be an external platform")
		return
	}
	localID, err := uuid.Parse(req.LocalID)
	if err != nil {
		h.BadRequest(c, "Invalid local ID")
		return
	}

	m, err := h.mapper.Register(c.Request.Context(), tenantID, kind, system, localID, req.ExternalID, req.SKU)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, m)
}

// Delete removes a mapping
func (h *MappingHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid mapping ID")
		return
	}

	if err := h.mappings.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes registers mapping routes
func (h *MappingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	mappings := rg.Group("/mappings")
	{
		mappings.GET("", h.List)
		mappings.POST("", h.Create)
		mappings.DELETE("/:id", h.Delete)
	}
}
