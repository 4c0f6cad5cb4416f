package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/internal/repository"
	apperrors "github.com/utafrali/techstore/pkg/errors"
)

func seedCategory(t *testing.T, s *Store, name string) *domain.Category {
	t.Helper()
	c, err := domain.NewCategory(name, "")
	require.NoError(t, err)
	created, err := s.Categories().Create(context.Background(), c)
	require.NoError(t, err)
	return created
}

func seedProduct(t *testing.T, s *Store, categoryID int64, name, price string, stock int) *domain.Product {
	t.Helper()
	p, err := domain.NewProduct(name, "", decimal.RequireFromString(price), stock, categoryID)
	require.NoError(t, err)
	created, err := s.Products().Create(context.Background(), p)
	require.NoError(t, err)
	return created
}

func seedOrder(t *testing.T, s *Store, lines ...domain.OrderItem) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder(lines)
	require.NoError(t, err)
	created, err := s.Orders().Create(context.Background(), o)
	require.NoError(t, err)
	return created
}

func line(t *testing.T, p *domain.Product, qty int) domain.OrderItem {
	t.Helper()
	it, err := domain.NewOrderItem(p.ID(), qty, p.Price())
	require.NoError(t, err)
	return it
}

func confirm(t *testing.T, s *Store, orderID int64, createdAt time.Time) {
	t.Helper()
	s.mu.Lock()
	o := s.orders[orderID]
	o.Status = domain.OrderStatusConfirmed
	o.CreatedAt = createdAt
	s.orders[orderID] = o
	s.mu.Unlock()
}

// ============================================================================
// Category Tests
// ============================================================================

func TestCategoryRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	b := seedCategory(t, s, "Phones")
	a := seedCategory(t, s, "Laptops")
	assert.Equal(t, int64(1), b.ID)

	list, err := s.Categories().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)

	a.Deactivate()
	require.NoError(t, s.Categories().Update(ctx, a))
	got, err := s.Categories().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = s.Categories().GetByID(ctx, 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCategoryRepository_DuplicateName(t *testing.T) {
	s := New()
	seedCategory(t, s, "Laptops")

	c, err := domain.NewCategory("Laptops", "again")
	require.NoError(t, err)
	_, err = s.Categories().Create(context.Background(), c)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

// ============================================================================
// Product Tests
// ============================================================================

func TestProductRepository_CreateRequiresCategory(t *testing.T) {
	s := New()
	p, err := domain.NewProduct("Orphan", "", decimal.NewFromInt(1), 1, 42)
	require.NoError(t, err)

	_, err = s.Products().Create(context.Background(), p)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestProductRepository_UpdateVersionCheck(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seedCategory(t, s, "Audio")
	p := seedProduct(t, s, c.ID, "Headset", "20.00", 5)
	assert.Equal(t, int64(1), p.Version())

	stale, err := s.Products().GetByID(ctx, p.ID())
	require.NoError(t, err)

	require.NoError(t, p.IncreaseStock(1))
	updated, err := s.Products().Update(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version())

	require.NoError(t, stale.DecreaseStock(5))
	_, err = s.Products().Update(ctx, stale)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	got, err := s.Products().GetByID(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock())
}

func TestProductRepository_GetByIDsSkipsMissing(t *testing.T) {
	s := New()
	c := seedCategory(t, s, "Audio")
	p1 := seedProduct(t, s, c.ID, "A", "1.00", 1)
	p2 := seedProduct(t, s, c.ID, "B", "1.00", 1)

	got, err := s.Products().GetByIDs(context.Background(), []int64{p2.ID(), 77, p1.ID(), p2.ID()})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, p1.ID(), got[0].ID())
	assert.Equal(t, p2.ID(), got[1].ID())
}

func TestProductRepository_ListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seedCategory(t, s, "Peripherals")
	mouse := seedProduct(t, s, c.ID, "Gaming Mouse", "30.00", 10)
	pad := seedProduct(t, s, c.ID, "Mouse Pad", "8.00", 10)
	seedProduct(t, s, c.ID, "Monitor", "200.00", 10)

	o := seedOrder(t, s, line(t, pad, 3))
	confirm(t, s, o.ID(), time.Now())

	minPrice := decimal.NewFromInt(5)
	maxPrice := decimal.NewFromInt(50)
	got, err := s.Products().List(ctx, domain.ProductFilter{Name: "mouse", MinPrice: &minPrice, MaxPrice: &maxPrice})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, pad.ID(), got[0].ID(), "most sold first")
	assert.Equal(t, mouse.ID(), got[1].ID())

	got, err = s.Products().List(ctx, domain.ProductFilter{OrderBy: domain.OrderByPriceDesc})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Monitor", got[0].Name())

	got, err = s.Products().List(ctx, domain.ProductFilter{OrderBy: domain.OrderByNameAsc, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Gaming Mouse", got[0].Name())
}

func TestProductRepository_DeleteReferenced(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seedCategory(t, s, "Audio")
	used := seedProduct(t, s, c.ID, "Used", "1.00", 1)
	unused := seedProduct(t, s, c.ID, "Unused", "1.00", 1)
	seedOrder(t, s, line(t, used, 1))

	assert.ErrorIs(t, s.Products().Delete(ctx, used.ID()), apperrors.ErrConflict)
	require.NoError(t, s.Products().Delete(ctx, unused.ID()))
	assert.ErrorIs(t, s.Products().Delete(ctx, unused.ID()), apperrors.ErrNotFound)
}

// ============================================================================
// Order Tests
// ============================================================================

func TestOrderRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seedCategory(t, s, "Audio")
	p := seedProduct(t, s, c.ID, "Speaker", "12.50", 4)

	o := seedOrder(t, s, line(t, p, 2))
	assert.Equal(t, int64(1), o.ID())

	got, err := s.Orders().GetByID(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status())
	assert.True(t, got.Total().Equal(decimal.NewFromInt(25)))
	require.Len(t, got.Items(), 1)
	assert.Equal(t, "Speaker", got.Items()[0].ProductName())

	_, err = s.Orders().GetByID(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepository_CreateUnknownProduct(t *testing.T) {
	s := New()
	it, err := domain.NewOrderItem(5, 1, decimal.NewFromInt(1))
	require.NoError(t, err)
	o, err := domain.NewOrder([]domain.OrderItem{it})
	require.NoError(t, err)

	_, err = s.Orders().Create(context.Background(), o)
	assert.ErrorIs(t, err, domain.ErrInvalidOrInactiveProduct)
}

// ============================================================================
// Transaction Tests
// ============================================================================

func TestWithinTx_CommitAppliesWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seedCategory(t, s, "Audio")
	p := seedProduct(t, s, c.ID, "Speaker", "1.00", 4)
	o := seedOrder(t, s, line(t, p, 4))

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.LockOrder(ctx, o.ID())
		if err != nil {
			return err
		}
		products, err := tx.LockProducts(ctx, order.ProductIDs())
		if err != nil {
			return err
		}
		locked := products[p.ID()]
		if err := locked.DecreaseStock(4); err != nil {
			return err
		}
		if err := tx.SaveProduct(ctx, locked); err != nil {
			return err
		}
		if err := order.Confirm(); err != nil {
			return err
		}
		return tx.SaveOrderStatus(ctx, order)
	})
	require.NoError(t, err)

	got, err := s.Products().GetByID(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock())
	assert.False(t, got.IsActive())
	assert.Equal(t, int64(2), got.Version())

	order, err := s.Orders().GetByID(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status())
}

func TestWithinTx_ErrorDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seedCategory(t, s, "Audio")
	p := seedProduct(t, s, c.ID, "Speaker", "1.00", 4)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		products, err := tx.LockProducts(ctx, []int64{p.ID(), 99})
		if err != nil {
			return err
		}
		assert.Len(t, products, 1)
		locked := products[p.ID()]
		if err := locked.DecreaseStock(1); err != nil {
			return err
		}
		if err := tx.SaveProduct(ctx, locked); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Products().GetByID(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stock())
}

func TestWithinTx_SaveOrderStatusRequiresPending(t *testing.T) {
	ctx := context.Background()
	s := New()
	c := seedCategory(t, s, "Audio")
	p := seedProduct(t, s, c.ID, "Speaker", "1.00", 4)
	o := seedOrder(t, s, line(t, p, 1))
	confirm(t, s, o.ID(), time.Now())

	stale := domain.RestoreOrder(domain.OrderState{ID: o.ID(), Status: domain.OrderStatusPending})
	require.NoError(t, stale.Cancel())

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.SaveOrderStatus(ctx, stale)
	})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

// ============================================================================
// Report Tests
// ============================================================================

func TestReportRepository_ConfirmedOnly(t *testing.T) {
	ctx := context.Background()
	s := New()
	audio := seedCategory(t, s, "Audio")
	video := seedCategory(t, s, "Video")
	speaker := seedProduct(t, s, audio.ID, "Speaker", "10.00", 100)
	camera := seedProduct(t, s, video.ID, "Camera", "100.00", 100)

	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)

	o1 := seedOrder(t, s, line(t, speaker, 2), line(t, camera, 1))
	confirm(t, s, o1.ID(), day1)
	o2 := seedOrder(t, s, line(t, speaker, 3))
	confirm(t, s, o2.ID(), day2)
	seedOrder(t, s, line(t, speaker, 50))

	byProduct, err := s.Reports().SalesByProduct(ctx)
	require.NoError(t, err)
	require.Len(t, byProduct, 2)
	assert.Equal(t, camera.ID(), byProduct[0].ProductID)
	assert.Equal(t, int64(5), byProduct[1].QuantitySold)
	assert.True(t, byProduct[1].Revenue.Equal(decimal.NewFromInt(50)))

	timeline, err := s.Reports().ProductSalesTimeline(ctx, speaker.ID())
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), timeline[0].Date)
	assert.Equal(t, int64(3), timeline[1].QuantitySold)

	byCategory, err := s.Reports().SalesByCategory(ctx)
	require.NoError(t, err)
	require.Len(t, byCategory, 2)
	assert.Equal(t, "Video", byCategory[0].CategoryName)
	assert.Equal(t, "Audio", byCategory[1].CategoryName)

	period, err := s.Reports().SalesByPeriod(ctx, day1, day2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), period.OrderCount)
	assert.Equal(t, int64(3), period.QuantitySold)
	assert.True(t, period.Revenue.Equal(decimal.NewFromInt(120)))
}
