package handler

import (
	"github.com/gin-gonic/gin"

	inventoryapp "github.com/commercesync/backend/internal/application/inventory"
)

// InventoryHandler handles stock position and replenishment endpoints
type InventoryHandler struct {
	BaseHandler
	service *inventoryapp.Service
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(service *inventoryapp.Service) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// ListPositionsRequest holds query filters for listing stock positions
type ListPositionsRequest struct {
	SKU string `form:"sku" binding:"required,max=128"`
}

// ListReordersRequest holds query parameters for the reorder listing
type ListReordersRequest struct {
	AvgDailyUsage float64 `form:"avg_daily_usage" binding:"min=0"`
}

// Positions returns every warehouse position for a SKU with derived figures
func (h *InventoryHandler) Positions(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}

	var req ListPositionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	positions, err := h.service.Positions(c.Request.Context(), tenantID, req.SKU)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, positions)
}

// Reorders returns positions at or under their reorder point with suggested
// order quantities
func (h *InventoryHandler) Reorders(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}

	var req ListReordersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	lines, err := h.service.Reorders(c.Request.Context(), tenantID, req.AvgDailyUsage)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lines)
}

// SafetyStock computes a replenishment plan from a posted usage history
func (h *InventoryHandler) SafetyStock(c *gin.Context) {
	if _, err := getTenantID(c); err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}

	var req inventoryapp.SafetyStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	h.Success(c, h.service.PlanSafetyStock(&req))
}

// RegisterRoutes registers inventory routes
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	inv := rg.Group("/inventory")
	{
		inv.GET("/positions", h.Positions)
		inv.GET("/reorders", h.Reorders)
		inv.POST("/safety-stock", h.SafetyStock)
	}
}
