package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/commercesync/backend/internal/application/sync"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/commercesync/backend/internal/interfaces/http/dto"
)

// SyncHandler handles sync job and webhook endpoints
type SyncHandler struct {
	BaseHandler
	service  *syncapp.Service
	webhooks *syncapp.WebhookHandler
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(service *syncapp.Service, webhooks *syncapp.WebhookHandler) *SyncHandler {
	return &SyncHandler{
		service:  service,
		webhooks: webhooks,
	}
}

// ListSyncJobsRequest holds query filters for listing sync jobs
type ListSyncJobsRequest struct {
	dto.ListRequest
	Kind   string `form:"kind"`
	Status string `form:"status"`
	System string `form:"system"`
}

// Trigger creates a sync job and starts it in the background
func (h *SyncHandler) Trigger(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}

	var req syncapp.TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	job, err := h.service.Trigger(c.Request.Context(), tenantID, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, job)
}

// Get returns one sync job with its progress counters
func (h *SyncHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	job, err := h.service.GetJob(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, job)
}

// List returns sync jobs, newest first, filtered by kind, status and system
func (h *SyncHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}

	var req ListSyncJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	req.Normalize()

	filter := sync.SyncJobFilter{Page: req.Page, PageSize: req.PageSize}
	if req.Kind != "" {
		kind := sync.EntityKind(req.Kind)
		if !kind.IsValid() {
			h.BadRequest(c, "Unknown entity kind: "+req.Kind)
			return
		}
		filter.Kind = &kind
	}
	if req.Status != "" {
		status := sync.JobStatus(req.Status)
		if !status.IsValid() {
			h.BadRequest(c, "Unknown job status: "+req.Status)
			return
		}
		filter.Status = &status
	}
	if req.System != "" {
		system := sync.SystemCode(strings.ToUpper(req.System))
		filter.System = &system
	}

	jobs, total, err := h.service.ListJobs(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, jobs, total, req.Page, req.PageSize)
}

// Webhook ingests one delivery from an external platform. Signature
// verification is the gateway's job, deduplication happens here via the
// delivery ID.
func (h *SyncHandler) Webhook(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}

	system := sync.SystemCode(strings.ToUpper(c.Param("system")))
	if !system.IsExternal() {
		h.BadRequest(c, "Unknown source system: "+c.Param("system"))
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.BadRequest(c, "Invalid webhook payload: "+err.Error())
		return
	}

	event := &syncapp.WebhookEvent{
		DeliveryID: webhookDeliveryID(c),
		System:     system,
		Topic:      webhookTopic(c),
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}

	result, err := h.webhooks.Handle(c.Request.Context(), tenantID, event)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// webhookDeliveryID extracts the delivery ID, falling back to a generated
// one so deliveries without an ID are never deduplicated against each other
func webhookDeliveryID(c *gin.Context) string {
	for _, header := range []string{"X-Delivery-ID", "X-Shopify-Webhook-Id"} {
		if id := c.GetHeader(header); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func webhookTopic(c *gin.Context) string {
	for _, header := range []string{"X-Topic", "X-Shopify-Topic"} {
		if topic := c.GetHeader(header); topic != "" {
			return topic
		}
	}
	return c.Query("topic")
}

// RegisterRoutes registers sync job and webhook routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	jobs := rg.Group("/sync/jobs")
	{
		jobs.POST("", h.Trigger)
		jobs.GET("", h.List)
		jobs.GET("/:id", h.Get)
	}
}

// RegisterWebhookRoutes registers the webhook ingestion route, kept separate
// so the router can wrap it with a rate limiter
func (h *SyncHandler) RegisterWebhookRoutes(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	webhooks := rg.Group("/webhooks", mw...)
	{
		webhooks.POST("/:system", h.Webhook)
	}
}
