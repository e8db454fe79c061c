package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	financeapp "github.com/optika/backend/internal/application/finance"
	"github.com/optika/backend/internal/interfaces/http/dto"
)

// reportDateLayout is the wire format for report date bounds
const reportDateLayout = "2006-01-02"

// FinanceHandler handles financial report API endpoints
type FinanceHandler struct {
	BaseHandler
	service *financeapp.AggregationService
}

// NewFinanceHandler creates a new FinanceHandler
func NewFinanceHandler(service *financeapp.AggregationService) *FinanceHandler {
	return &FinanceHandler{service: service}
}

// ReportFilterRequest carries the shared report query parameters
type ReportFilterRequest struct {
	Store    string `form:"store"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
}

// toFilter converts the request into the application-layer filter
func (r *ReportFilterRequest) toFilter() (financeapp.ReportFilter, error) {
	var filter financeapp.ReportFilter
	if r.Store != "" {
		filter.StoreName = &r.Store
	}
	if r.DateFrom != "" {
		from, err := time.Parse(reportDateLayout, r.DateFrom)
		if err != nil {
			return filter, errors.New("date_from must be formatted as YYYY-MM-DD")
		}
		filter.DateFrom = &from
	}
	if r.DateTo != "" {
		to, err := time.Parse(reportDateLayout, r.DateTo)
		if err != nil {
			return filter, errors.New("date_to must be formatted as YYYY-MM-DD")
		}
		filter.DateTo = &to
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return filter, errors.New("date_to cannot precede date_from")
	}
	return filter, nil
}

// bindFilter parses and validates the common report query parameters
func (h *FinanceHandler) bindFilter(c *gin.Context) (financeapp.ReportFilter, bool) {
	var req ReportFilterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return financeapp.ReportFilter{}, false
	}
	filter, err := req.toFilter()
	if err != nil {
		h.BadRequest(c, err.Error())
		return financeapp.ReportFilter{}, false
	}
	return filter, true
}

// handleReportError maps application errors to HTTP responses
func (h *FinanceHandler) handleReportError(c *gin.Context, err error) {
	if errors.Is(err, financeapp.ErrStorageUnavailable) {
		h.ServiceUnavailable(c, dto.ErrCodeStorageUnavailable, "Report storage is unavailable")
		return
	}
	h.InternalError(c, "Report generation failed: "+err.Error())
}

// GetOutstandingInvoices returns the top unpaid customer balances.
func (h *FinanceHandler) GetOutstandingInvoices(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	report, err := h.service.OutstandingInvoices(c.Request.Context(), filter)
	if err != nil {
		h.handleReportError(c, err)
		return
	}
	h.Success(c, report)
}

// GetGrossMargin returns revenue, cost and margin over the report window.
func (h *FinanceHandler) GetGrossMargin(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	report, err := h.service.GrossMargin(c.Request.Context(), filter)
	if err != nil {
		h.handleReportError(c, err)
		return
	}
	h.Success(c, report)
}

// GetDailyMarginSeries returns the margin series for the trailing week.
func (h *FinanceHandler) GetDailyMarginSeries(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	series, err := h.service.DailyMarginSeries(c.Request.Context(), filter)
	if err != nil {
		h.handleReportError(c, err)
		return
	}
	h.Success(c, series)
}

// GetInventoryValuation returns stock value grouped by store.
func (h *FinanceHandler) GetInventoryValuation(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	report, err := h.service.InventoryValuation(c.Request.Context(), filter)
	if err != nil {
		h.handleReportError(c, err)
		return
	}
	h.Success(c, report)
}

// RegisterRoutes registers all finance report routes
func (h *FinanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	finance := rg.Group("/finance")
	finance.GET("/outstanding", h.GetOutstandingInvoices)
	finance.GET("/margin", h.GetGrossMargin)
	finance.GET("/margin/daily", h.GetDailyMarginSeries)
	finance.GET("/inventory-valuation", h.GetInventoryValuation)
}
