package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/techstore/internal/service"
	"github.com/utafrali/techstore/pkg/httputil"
)

// dateLayout is the format of the start and end query parameters.
const dateLayout = "2006-01-02"

// ReportHandler handles HTTP requests for sales reports.
type ReportHandler struct {
	service *service.ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a new report HTTP handler.
func NewReportHandler(svc *service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		logger:  logger,
	}
}

// SalesByProduct handles GET /api/v1/reports/sales-by-product
func (h *ReportHandler) SalesByProduct(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.SalesByProduct(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, rows)
}

// SalesByCategory handles GET /api/v1/reports/sales-by-category
func (h *ReportHandler) SalesByCategory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.SalesByCategory(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, rows)
}

// ProductSalesTimeline handles GET /api/v1/reports/product-sales-timeline/{productId}
func (h *ReportHandler) ProductSalesTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	rows, err := h.service.ProductSalesTimeline(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, rows)
}

// SalesByPeriod handles GET /api/v1/reports/sales-by-period?start=YYYY-MM-DD&end=YYYY-MM-DD
//
// end is exclusive.
func (h *ReportHandler) SalesByPeriod(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(dateLayout, q.Get("start"))
	if err != nil {
		writeBadParam(w, "start must be a date in YYYY-MM-DD format")
		return
	}
	end, err := time.Parse(dateLayout, q.Get("end"))
	if err != nil {
		writeBadParam(w, "end must be a date in YYYY-MM-DD format")
		return
	}

	totals, err := h.service.SalesByPeriod(r.Context(), start, end)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, totals)
}
