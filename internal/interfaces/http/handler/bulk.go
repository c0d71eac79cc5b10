package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	bulkopsapp "github.com/commercesync/backend/internal/application/bulkops"
	"github.com/commercesync/backend/internal/domain/bulkops"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/commercesync/backend/internal/infrastructure/storage"
	"github.com/commercesync/backend/internal/interfaces/http/dto"
)

// BulkHandler handles bulk operation endpoints
type BulkHandler struct {
	BaseHandler
	engine      *bulkopsapp.Engine
	store       storage.ObjectStore
	maxFileSize int64
}

// NewBulkHandler creates a new BulkHandler
func NewBulkHandler(engine *bulkopsapp.Engine, store storage.ObjectStore, maxFileSize int64) *BulkHandler {
	return &BulkHandler{
		engine:      engine,
		store:       store,
		maxFileSize: maxFileSize,
	}
}

// StartBulkOperationRequest holds the multipart form fields accompanying
// the uploaded file
type StartBulkOperationRequest struct {
	Type            string `form:"type" binding:"required,oneof=import update delete export"`
	Kind            string `form:"kind" binding:"required,entitykind"`
	ValidateOnly    bool   `form:"validate_only"`
	RollbackOnError bool   `form:"rollback_on_error"`
	ChunkSize       int    `form:"chunk_size" binding:"omitempty,min=1,max=10000"`
	MaxConcurrent   int    `form:"max_concurrent" binding:"omitempty,min=1,max=32"`
}

// ListBulkOperationsRequest holds query filters for listing operations
type ListBulkOperationsRequest struct {
	dto.ListRequest
	Status string `form:"status"`
}

// Start accepts a multipart CSV upload and starts a bulk operation. The
// request returns as soon as the file is parsed and queued.
func (h *BulkHandler) Start(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}

	var req StartBulkOperationRequest
	if err := c.ShouldBind(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	kind := sync.EntityKind(req.Kind)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "Missing file upload")
		return
	}
	if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge,
			fmt.Sprintf("File exceeds the %d byte limit", h.maxFileSize))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.BadRequest(c, "Unreadable file upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.BadRequest(c, "Unreadable file upload")
		return
	}

	// Keep the raw upload for audit. A failed archive write only loses the
	// audit copy, the operation itself still runs.
	inputKey := fmt.Sprintf("bulk/uploads/%s.csv", uuid.New())
	if err := h.store.Upload(c.Request.Context(), inputKey, data, "text/csv"); err != nil {
		inputKey = ""
	}

	opts := bulkopsapp.Options{
		Type:            bulkops.OperationType(req.Type),
		Kind:            kind,
		ValidateOnly:    req.ValidateOnly,
		RollbackOnError: req.RollbackOnError,
		ChunkSize:       req.ChunkSize,
		MaxConcurrent:   req.MaxConcurrent,
		InputFileKey:    inputKey,
	}

	op, err := h.engine.StartOperation(c.Request.Context(), tenantID, bytes.NewReader(data), opts, requestUserID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, op)
}

// Get returns one operation with its progress counters
func (h *BulkHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid operation ID")
		return
	}

	op, err := h.engine.GetProgress(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, op)
}

// List returns operations for the tenant, newest first
func (h *BulkHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}

	var req ListBulkOperationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	req.Normalize()

	var status *bulkops.OperationStatus
	if req.Status != "" {
		s := bulkops.OperationStatus(req.Status)
		if !s.IsValid() {
			h.BadRequest(c, "Unknown operation status: "+req.Status)
			return
		}
		status = &s
	}

	ops, total, err := h.engine.ListOperations(c.Request.Context(), tenantID, status, req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, ops, total, req.Page, req.PageSize)
}

// Records returns the per-row outcomes of an operation
func (h *BulkHandler) Records(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid operation ID")
		return
	}

	records, err := h.engine.ListRecords(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}

// Cancel requests cooperative cancellation of a running operation
func (h *BulkHandler) Cancel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid operation ID")
		return
	}

	op, err := h.engine.CancelOperation(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, op)
}

// Rollback reverts the successful records of a finished operation
func (h *BulkHandler) Rollback(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid operation ID")
		return
	}

	op, err := h.engine.RollbackOperation(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, op)
}

// Report streams the generated outcome report
func (h *BulkHandler) Report(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid operation ID")
		return
	}

	op, err := h.engine.GetProgress(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if op.ReportFileKey == "" {
		h.NotFound(c, "Report not yet generated")
		return
	}

	reader, err := h.store.Download(c.Request.Context(), op.ReportFileKey)
	if err != nil {
		h.NotFound(c, "Report not found")
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("bulk-report-%s.csv", op.ID)))
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}

// requestUserID reads the acting user from the X-User-ID header. Auth is
// delegated to the gateway, an absent header leaves the field empty.
func requestUserID(c *gin.Context) uuid.UUID {
	if raw := c.GetHeader("X-User-ID"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return uuid.Nil
}

// RegisterRoutes registers bulk operation routes
func (h *BulkHandler) RegisterRoutes(rg *gin.RouterGroup) {
	ops := rg.Group("/bulk/operations")
	{
		ops.POST("", h.Start)
		ops.GET("", h.List)
		ops.GET("/:id", h.Get)
		ops.GET("/:id/records", h.Records)
		ops.GET("/:id/report", h.Report)
		ops.POST("/:id/cancel", h.Cancel)
		ops.POST("/:id/rollback", h.Rollback)
	}
}
