package handler

import (
	"fmt"
	"net/http"
	"time"

	appfulfillment "github.com/fulfillment/backend/internal/application/fulfillment"
	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/fulfillment/backend/internal/infrastructure/logger"
	"github.com/fulfillment/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// FulfillmentHandler handles the reconciliation register API endpoints
type FulfillmentHandler struct {
	BaseHandler
	views         *appfulfillment.ViewService
	exports       *appfulfillment.ExportService
	cache         *appfulfillment.SnapshotCache
	defaultFormat appfulfillment.ExportFormat
}

// FulfillmentHandlerOption is a functional option for FulfillmentHandler.
type FulfillmentHandlerOption func(*FulfillmentHandler)

// WithDefaultExportFormat sets the export format used when the request does
// not name one.
func WithDefaultExportFormat(format appfulfillment.ExportFormat) FulfillmentHandlerOption {
	return func(h *FulfillmentHandler) {
		h.defaultFormat = format
	}
}

// NewFulfillmentHandler creates a new FulfillmentHandler
func NewFulfillmentHandler(
	views *appfulfillment.ViewService,
	exports *appfulfillment.ExportService,
	cache *appfulfillment.SnapshotCache,
	opts ...FulfillmentHandlerOption,
) *FulfillmentHandler {
	h := &FulfillmentHandler{
		views:         views,
		exports:       exports,
		cache:         cache,
		defaultFormat: appfulfillment.ExportFormatCSV,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRequest defines the query parameters for the register view
type RegisterRequest struct {
	AsOfDate         string `form:"asOfDate"`
	IncludeAnomalies *bool  `form:"includeAnomalies"`
	ExceptionType    string `form:"exceptionType"`
}

// SnapshotRequest defines the query parameters shared by the backlog and
// planning views
type SnapshotRequest struct {
	AsOfDate string `form:"asOfDate"`
}

// ExportRequest defines the query parameters for the export endpoint
type ExportRequest struct {
	AsOfDate string `form:"asOfDate"`
	Format   string `form:"format"`
}

// InvalidateCacheResponse reports the cache state after an invalidation
type InvalidateCacheResponse struct {
	Message string               `json:"message"`
	Stats   appfulfillment.Stats `json:"stats"`
}

// parseAsOfDate parses an optional YYYY-MM-DD parameter, defaulting to today.
func parseAsOfDate(value string) (time.Time, error) {
	if value == "" {
		return appfulfillment.NormalizeAsOfDate(time.Now().UTC()), nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("asOfDate: invalid date format, expected YYYY-MM-DD")
	}
	return parsed, nil
}

// GetRegister returns the reconciled register for the as-of date
func (h *FulfillmentHandler) GetRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	asOf, err := parseAsOfDate(req.AsOfDate)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := appfulfillment.DefaultRegisterFilter()
	if req.IncludeAnomalies != nil {
		filter.IncludeAnomalies = *req.IncludeAnomalies
	}
	if req.ExceptionType != "" {
		exceptionType, ok := fulfillment.ParseExceptionType(req.ExceptionType)
		if !ok {
			h.BadRequest(c, fmt.Sprintf("exceptionType: unknown value %q", req.ExceptionType))
			return
		}
		filter.ExceptionType = &exceptionType
	}

	result, err := h.views.Register(c.Request.Context(), asOf, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// GetBacklog returns entries with outstanding pending quantity
func (h *FulfillmentHandler) GetBacklog(c *gin.Context) {
	var req SnapshotRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	asOf, err := parseAsOfDate(req.AsOfDate)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.views.Backlog(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// GetPlanning returns per-product monthly demand buckets
func (h *FulfillmentHandler) GetPlanning(c *gin.Context) {
	var req SnapshotRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	asOf, err := parseAsOfDate(req.AsOfDate)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.views.Planning(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// ExportRegister streams the register as a CSV or JSON attachment
func (h *FulfillmentHandler) ExportRegister(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	asOf, err := parseAsOfDate(req.AsOfDate)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	format := h.defaultFormat
	if req.Format != "" {
		format, err = appfulfillment.ParseExportFormat(req.Format)
		if err != nil {
			h.HandleError(c, err)
			return
		}
	}

	export, err := h.exports.Export(c.Request.Context(), asOf, format)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Content)
}

// InvalidateCache drops every cached snapshot so the next read recomputes
func (h *FulfillmentHandler) InvalidateCache(c *gin.Context) {
	h.cache.Invalidate()
	logger.FromContext(c.Request.Context()).Info("snapshot cache invalidated")

	h.Accepted(c, InvalidateCacheResponse{
		Message: "Snapshot cache invalidated",
		Stats:   h.cache.Stats(),
	})
}

// RegisterRoutes registers the fulfillment endpoints
func (h *FulfillmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/fulfillment")
	{
		group.GET("/register", h.GetRegister)
		group.GET("/backlog", h.GetBacklog)
		group.GET("/planning", h.GetPlanning)
		group.GET("/export", h.ExportRegister)
		group.POST("/cache/invalidate", h.InvalidateCache)
	}
}
