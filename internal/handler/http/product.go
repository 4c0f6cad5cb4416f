package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/internal/service"
	"github.com/utafrali/techstore/pkg/httputil"
)

// ProductHandler handles HTTP requests for product and stock endpoints.
type ProductHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.CatalogService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateProductRequest is the JSON request body for creating a product.
type CreateProductRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=2000"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Stock       int              `json:"stock" validate:"max=2147483647"`
	CategoryID  int64            `json:"category_id" validate:"required,gt=0"`
}

// StockAmountRequest is the JSON request body for stock adjustments.
type StockAmountRequest struct {
	Amount int `json:"amount" validate:"max=2147483647"`
}

// UpdatePriceRequest is the JSON request body for changing a price.
type UpdatePriceRequest struct {
	Price *decimal.Decimal `json:"price" validate:"required"`
}

// --- Handlers ---

// CreateProduct handles POST /api/v1/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.CreateProduct(r.Context(), service.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeProduct(w, r, http.StatusCreated, p)
}

// ListProducts handles GET /api/v1/products
//
// Query parameters: name, min_price, max_price, order_by, limit.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Name:    q.Get("name"),
		OrderBy: domain.ProductOrder(q.Get("order_by")),
	}

	var ok bool
	if filter.MinPrice, ok = parseMoneyParam(w, q.Get("min_price"), "min_price"); !ok {
		return
	}
	if filter.MaxPrice, ok = parseMoneyParam(w, q.Get("max_price"), "max_price"); !ok {
		return
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeBadParam(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeProductList(w, r, products)
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeProduct(w, r, http.StatusOK, p)
}

// DeleteProduct handles DELETE /api/v1/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStock handles GET /api/v1/products/{id}/stock
func (h *ProductHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	lvl, err := h.service.GetStock(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, lvl)
}

// IncreaseStock handles PUT /api/v1/products/{id}/stock/increase
func (h *ProductHandler) IncreaseStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, h.service.IncreaseStock)
}

// DecreaseStock handles PUT /api/v1/products/{id}/stock/decrease
func (h *ProductHandler) DecreaseStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, h.service.DecreaseStock)
}

// The amount is validated by the stock ledger so that a zero or negative
// amount reports INVALID_QUANTITY like every other quantity check.
func (h *ProductHandler) adjustStock(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, int) (*domain.Product, error)) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req StockAmountRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	p, err := op(r.Context(), id, req.Amount)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeProduct(w, r, http.StatusOK, p)
}

// UpdatePrice handles PUT /api/v1/products/{id}/price
func (h *ProductHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req UpdatePriceRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.UpdatePrice(r.Context(), id, *req.Price)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeProduct(w, r, http.StatusOK, p)
}

// ActivateProduct handles PUT /api/v1/products/{id}/activate
func (h *ProductHandler) ActivateProduct(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.ActivateProduct)
}

// DeactivateProduct handles PUT /api/v1/products/{id}/deactivate
func (h *ProductHandler) DeactivateProduct(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.DeactivateProduct)
}

func (h *ProductHandler) toggle(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) (*domain.Product, error)) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	p, err := op(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeProduct(w, r, http.StatusOK, p)
}

// writeProduct renders one product with its category summary.
func (h *ProductHandler) writeProduct(w http.ResponseWriter, r *http.Request, status int, p *domain.Product) {
	httputil.WriteData(w, status, toProductResponse(p, h.categoryNames(r.Context())))
}

func (h *ProductHandler) writeProductList(w http.ResponseWriter, r *http.Request, products []*domain.Product) {
	httputil.WriteData(w, http.StatusOK, toProductResponses(products, h.categoryNames(r.Context())))
}

// categoryNames never fails the request. Products render with a bare category
// ID when the lookup fails.
func (h *ProductHandler) categoryNames(ctx context.Context) map[int64]string {
	names, err := h.service.CategoryNames(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to resolve category names",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return names
}

func parseMoneyParam(w http.ResponseWriter, raw, name string) (*decimal.Decimal, bool) {
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		writeBadParam(w, name+" must be a decimal number")
		return nil, false
	}
	return &d, true
}

func writeBadParam(w http.ResponseWriter, msg string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: msg},
	})
}
