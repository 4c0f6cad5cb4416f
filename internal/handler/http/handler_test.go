package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/techstore/internal/repository/memory"
	"github.com/utafrali/techstore/internal/service"
	"github.com/utafrali/techstore/pkg/health"
	"github.com/utafrali/techstore/pkg/httputil"
)

// ============================================================================
// Test Helpers
// ============================================================================

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := newTestLogger()
	s := memory.New()
	svc := Services{
		Catalog: service.NewCatalogService(s.Categories(), s.Products(), nil, logger),
		Orders:  service.NewOrderService(s.Products(), s.Orders(), s, nil, nil, logger),
		Reports: service.NewReportService(s.Reports(), nil, logger),
	}
	reg := prometheus.NewRegistry()
	return NewRouter(svc, health.NewHandler(), RouterConfig{
		Registerer:   reg,
		Gatherer:     reg,
		ReportMaxAge: 30 * time.Second,
	}, logger)
}

type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

// seedCatalog creates one category and a product with the given stock and
// returns the product ID.
func seedCatalog(t *testing.T, h http.Handler, price string, stock int) int64 {
	t.Helper()
	rec, env := do(t, h, http.MethodPost, "/api/v1/categories", map[string]string{"name": "Peripherals"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var cat struct {
		ID int64 `json:"id"`
	}
	decodeData(t, env, &cat)

	rec, env = do(t, h, http.MethodPost, "/api/v1/products", map[string]any{
		"name":        "Keyboard",
		"price":       price,
		"stock":       stock,
		"category_id": cat.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var p productResponse
	decodeData(t, env, &p)
	return p.ID
}

func createOrder(t *testing.T, h http.Handler, productID int64, qty int) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return do(t, h, http.MethodPost, "/api/v1/orders", map[string]any{
		"items": []map[string]any{{"product_id": productID, "quantity": qty}},
	})
}

// ============================================================================
// Orders
// ============================================================================

func TestOrderLifecycle(t *testing.T) {
	h := setupRouter(t)
	productID := seedCatalog(t, h, "10.00", 5)

	rec, env := createOrder(t, h, productID, 3)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created orderCreatedResponse
	decodeData(t, env, &created)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "pending", string(created.Status))
	assert.Equal(t, "30.00", created.Total)
	assert.False(t, created.CreatedAt.IsZero())

	path := "/api/v1/orders/" + itoa(created.ID)
	rec, _ = do(t, h, http.MethodPut, path+"/confirm", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = do(t, h, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got orderResponse
	decodeData(t, env, &got)
	assert.Equal(t, "confirmed", string(got.Status))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Keyboard", got.Items[0].ProductName)
	assert.Equal(t, "10.00", got.Items[0].UnitPrice)
	assert.Equal(t, "30.00", got.Items[0].Subtotal)

	rec, env = do(t, h, http.MethodPut, path+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE_TRANSITION", env.Error.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/products/"+itoa(productID)+"/stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lvl service.StockLevel
	decodeData(t, env, &lvl)
	assert.Equal(t, 2, lvl.Stock)
	assert.True(t, lvl.IsActive)
}

func TestCreateOrder_Errors(t *testing.T) {
	h := setupRouter(t)
	productID := seedCatalog(t, h, "10.00", 2)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"empty items", map[string]any{"items": []any{}}, http.StatusUnprocessableEntity, "EMPTY_ORDER"},
		{"zero quantity", map[string]any{"items": []map[string]any{{"product_id": productID, "quantity": 0}}}, http.StatusUnprocessableEntity, "INVALID_QUANTITY"},
		{"unknown product", map[string]any{"items": []map[string]any{{"product_id": 999, "quantity": 1}}}, http.StatusUnprocessableEntity, "INVALID_OR_INACTIVE_PRODUCT"},
		{"insufficient stock", map[string]any{"items": []map[string]any{{"product_id": productID, "quantity": 10}}}, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"quantity above max", map[string]any{"items": []map[string]any{{"product_id": productID, "quantity": int64(1) << 31}}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing product id", map[string]any{"items": []map[string]any{{"quantity": 1}}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", map[string]any{"lines": []any{}}, http.StatusBadRequest, "INVALID_JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/api/v1/orders", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestCreateOrder_InsufficientStockDetails(t *testing.T) {
	h := setupRouter(t)
	productID := seedCatalog(t, h, "10.00", 2)

	rec, env := createOrder(t, h, productID, 10)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.EqualValues(t, productID, env.Error.Details["product_id"])
	assert.EqualValues(t, 2, env.Error.Details["available"])
	assert.EqualValues(t, 10, env.Error.Details["requested"])
}

func TestCancelOrder(t *testing.T) {
	h := setupRouter(t)
	productID := seedCatalog(t, h, "10.00", 5)
	_, env := createOrder(t, h, productID, 1)
	var created orderCreatedResponse
	decodeData(t, env, &created)
	path := "/api/v1/orders/" + itoa(created.ID)

	rec, _ := do(t, h, http.MethodPut, path+"/cancel", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = do(t, h, http.MethodPut, path+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE_TRANSITION", env.Error.Code)
}

func TestGetOrder_NotFoundAndBadID(t *testing.T) {
	h := setupRouter(t)

	rec, env := do(t, h, http.MethodGet, "/api/v1/orders/12", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ORDER_NOT_FOUND", env.Error.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", env.Error.Code)
}

// ============================================================================
// Products
// ============================================================================

func TestProductMutators(t *testing.T) {
	h := setupRouter(t)
	productID := seedCatalog(t, h, "10.00", 1)
	base := "/api/v1/products/" + itoa(productID)

	rec, env := do(t, h, http.MethodPut, base+"/stock/decrease", map[string]int{"amount": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	var p productResponse
	decodeData(t, env, &p)
	assert.Equal(t, 0, p.Stock)
	assert.False(t, p.IsActive)

	rec, env = do(t, h, http.MethodPut, base+"/activate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CANNOT_ACTIVATE_ZERO_STOCK", env.Error.Code)

	rec, env = do(t, h, http.MethodPut, base+"/stock/increase", map[string]int{"amount": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_QUANTITY", env.Error.Code)

	rec, _ = do(t, h, http.MethodPut, base+"/stock/increase", map[string]int{"amount": 4})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, http.MethodPut, base+"/price", map[string]string{"price": "12.5"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, env, &p)
	assert.Equal(t, "12.50", p.Price)
	assert.Equal(t, 4, p.Stock)
	assert.True(t, p.IsActive)

	rec, env = do(t, h, http.MethodPut, base+"/price", map[string]string{"price": "-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_PRICE", env.Error.Code)

	rec, env = do(t, h, http.MethodPut, base+"/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, env, &p)
	assert.False(t, p.IsActive)
}

func TestGetProduct_EmbedsCategory(t *testing.T) {
	h := setupRouter(t)
	productID := seedCatalog(t, h, "10.00", 3)

	rec, env := do(t, h, http.MethodGet, "/api/v1/products/"+itoa(productID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Category struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"category"`
		CategoryID int64 `json:"category_id"`
	}
	decodeData(t, env, &body)
	assert.Equal(t, "Peripherals", body.Category.Name)
	assert.Equal(t, body.CategoryID, body.Category.ID)
}

func TestIncreaseStock_AmountAboveMax(t *testing.T) {
	h := setupRouter(t)
	productID := seedCatalog(t, h, "10.00", 5)

	rec, env := do(t, h, http.MethodPut, "/api/v1/products/"+itoa(productID)+"/stock/increase",
		map[string]any{"amount": int64(1) << 31})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/products/"+itoa(productID)+"/stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var level struct {
		Stock int `json:"stock"`
	}
	decodeData(t, env, &level)
	assert.Equal(t, 5, level.Stock)
}

func TestListProducts_Query(t *testing.T) {
	h := setupRouter(t)
	seedCatalog(t, h, "10.00", 1)

	rec, env := do(t, h, http.MethodGet, "/api/v1/products?name=key&max_price=20&order_by=price_asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []productResponse
	decodeData(t, env, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Keyboard", list[0].Name)
	assert.Equal(t, "Peripherals", list[0].Category.Name)
	assert.Equal(t, list[0].CategoryID, list[0].Category.ID)

	rec, env = do(t, h, http.MethodGet, "/api/v1/products?min_price=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", env.Error.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/products?order_by=random", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
}

func TestDeleteProduct(t *testing.T) {
	h := setupRouter(t)
	productID := seedCatalog(t, h, "10.00", 3)
	createOrder(t, h, productID, 1)

	rec, env := do(t, h, http.MethodDelete, "/api/v1/products/"+itoa(productID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", env.Error.Code)
}

func TestCreateCategory_DuplicateName(t *testing.T) {
	h := setupRouter(t)
	rec, _ := do(t, h, http.MethodPost, "/api/v1/categories", map[string]string{"name": "Audio"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, h, http.MethodPost, "/api/v1/categories", map[string]string{"name": "Audio"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)
}

func TestCreateProduct_InactiveCategory(t *testing.T) {
	h := setupRouter(t)
	rec, env := do(t, h, http.MethodPost, "/api/v1/categories", map[string]string{"name": "Audio"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var cat struct {
		ID int64 `json:"id"`
	}
	decodeData(t, env, &cat)

	rec, _ = do(t, h, http.MethodPut, "/api/v1/categories/"+itoa(cat.ID)+"/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, http.MethodPost, "/api/v1/products", map[string]any{
		"name": "Headset", "price": "59.00", "stock": 1, "category_id": cat.ID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
}

// ============================================================================
// Reports and operational endpoints
// ============================================================================

func TestReports(t *testing.T) {
	h := setupRouter(t)
	productID := seedCatalog(t, h, "10.00", 5)
	_, env := createOrder(t, h, productID, 2)
	var created orderCreatedResponse
	decodeData(t, env, &created)
	rec, _ := do(t, h, http.MethodPut, "/api/v1/orders/"+itoa(created.ID)+"/confirm", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/reports/sales-by-product", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=30", rec.Header().Get("Cache-Control"))
	var rows []struct {
		ProductID    int64 `json:"product_id"`
		QuantitySold int64 `json:"quantity_sold"`
	}
	decodeData(t, env, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].QuantitySold)

	today := time.Now().UTC()
	q := "?start=" + today.Format(dateLayout) + "&end=" + today.AddDate(0, 0, 1).Format(dateLayout)
	rec, env = do(t, h, http.MethodGet, "/api/v1/reports/sales-by-period"+q, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var period struct {
		OrderCount int64 `json:"order_count"`
	}
	decodeData(t, env, &period)
	assert.Equal(t, int64(1), period.OrderCount)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/reports/product-sales-timeline/"+itoa(productID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, h, http.MethodGet, "/api/v1/reports/sales-by-category", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSalesByPeriod_BadParams(t *testing.T) {
	h := setupRouter(t)

	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"missing start", "?end=2024-01-02", "INVALID_PARAMETER"},
		{"bad end", "?start=2024-01-01&end=tomorrow", "INVALID_PARAMETER"},
		{"inverted range", "?start=2024-01-02&end=2024-01-01", "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodGet, "/api/v1/reports/sales-by-period"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestContentTypeJSON_RejectsNonJSON(t *testing.T) {
	h := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/categories", bytes.NewBufferString("name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	h := setupRouter(t)

	rec, _ := do(t, h, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	do(t, h, http.MethodGet, "/api/v1/categories", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
