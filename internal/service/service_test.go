package service

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/internal/event"
	"github.com/utafrali/techstore/internal/repository"
	"github.com/utafrali/techstore/internal/repository/memory"
	pkgkafka "github.com/utafrali/techstore/pkg/kafka"
)

// --- Mocks ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	return m.Called(ctx, topic, event).Error(0)
}

type mockTransactor struct {
	mock.Mock
}

func (m *mockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return m.Called(ctx, fn).Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testEnv struct {
	store   *memory.Store
	catalog *CatalogService
	orders  *OrderService
	reports *ReportService
}

// newTestEnv wires all services to one memory store. producer may be nil.
func newTestEnv(t *testing.T, producer *event.Producer, cache ReportCache) *testEnv {
	t.Helper()
	logger := newTestLogger()
	s := memory.New()
	reports := NewReportService(s.Reports(), cache, logger)
	return &testEnv{
		store:   s,
		catalog: NewCatalogService(s.Categories(), s.Products(), producer, logger),
		orders:  NewOrderService(s.Products(), s.Orders(), s, reports, producer, logger),
		reports: reports,
	}
}

func (e *testEnv) category(t *testing.T, name string) *domain.Category {
	t.Helper()
	c, err := e.catalog.CreateCategory(context.Background(), name, "")
	require.NoError(t, err)
	return c
}

func (e *testEnv) product(t *testing.T, categoryID int64, name, price string, stock int) *domain.Product {
	t.Helper()
	p, err := e.catalog.CreateProduct(context.Background(), CreateProductInput{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		CategoryID: categoryID,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) order(t *testing.T, lines ...OrderLine) *domain.Order {
	t.Helper()
	o, err := e.orders.CreateOrder(context.Background(), lines)
	require.NoError(t, err)
	return o
}

func (e *testEnv) stock(t *testing.T, productID int64) *StockLevel {
	t.Helper()
	lvl, err := e.catalog.GetStock(context.Background(), productID)
	require.NoError(t, err)
	return lvl
}
