package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/techstore/pkg/errors"
)

func newTestProduct(t *testing.T, stock int) *Product {
	t.Helper()
	p, err := NewProduct("Keyboard", "mechanical", decimal.RequireFromString("49.90"), stock, 1)
	require.NoError(t, err)
	return p
}

// ============================================================================
// NewProduct Tests
// ============================================================================

func TestNewProduct_ActiveWithStock(t *testing.T) {
	p := newTestProduct(t, 5)
	assert.True(t, p.IsActive())
	assert.Equal(t, 5, p.Stock())
	assert.Equal(t, "49.9", p.Price().String())
}

func TestNewProduct_InactiveWithoutStock(t *testing.T) {
	p := newTestProduct(t, 0)
	assert.False(t, p.IsActive())
}

func TestNewProduct_EmptyName(t *testing.T) {
	_, err := NewProduct("  ", "", decimal.NewFromInt(1), 1, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestNewProduct_NegativePrice(t *testing.T) {
	_, err := NewProduct("Mouse", "", decimal.NewFromInt(-1), 1, 1)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestNewProduct_NegativeStock(t *testing.T) {
	_, err := NewProduct("Mouse", "", decimal.NewFromInt(1), -1, 1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestNewProduct_StockAboveMax(t *testing.T) {
	_, err := NewProduct("Mouse", "", decimal.NewFromInt(1), MaxQuantity+1, 1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestRestoreProduct_ZeroStockNeverActive(t *testing.T) {
	p := RestoreProduct(ProductState{ID: 3, Stock: 0, Active: true})
	assert.False(t, p.IsActive())
}

// ============================================================================
// Stock Tests
// ============================================================================

func TestDecreaseStock_ToZeroDeactivates(t *testing.T) {
	p := newTestProduct(t, 10)

	require.NoError(t, p.DecreaseStock(10))
	assert.Equal(t, 0, p.Stock())
	assert.False(t, p.IsActive())
}

func TestDecreaseStock_Partial(t *testing.T) {
	p := newTestProduct(t, 10)

	require.NoError(t, p.DecreaseStock(4))
	assert.Equal(t, 6, p.Stock())
	assert.True(t, p.IsActive())
	assert.NotNil(t, p.UpdatedAt())
}

func TestDecreaseStock_Insufficient(t *testing.T) {
	p := RestoreProduct(ProductState{ID: 7, Stock: 3, Active: true})

	err := p.DecreaseStock(4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var detail *InsufficientStockError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, int64(7), detail.ProductID)
	assert.Equal(t, 3, detail.Available)
	assert.Equal(t, 4, detail.Requested)

	assert.Equal(t, 3, p.Stock(), "failed decrease must leave stock untouched")
	assert.True(t, p.IsActive())
}

func TestDecreaseStock_NonPositive(t *testing.T) {
	p := newTestProduct(t, 3)
	for _, amount := range []int{0, -2} {
		assert.ErrorIs(t, p.DecreaseStock(amount), ErrInvalidQuantity)
	}
	assert.Equal(t, 3, p.Stock())
}

func TestIncreaseStock_Reactivates(t *testing.T) {
	p := newTestProduct(t, 0)

	require.NoError(t, p.IncreaseStock(2))
	assert.Equal(t, 2, p.Stock())
	assert.True(t, p.IsActive())
}

func TestIncreaseStock_NonPositive(t *testing.T) {
	p := newTestProduct(t, 0)
	assert.ErrorIs(t, p.IncreaseStock(0), ErrInvalidQuantity)
	assert.False(t, p.IsActive())
}

func TestIncreaseStock_Overflow(t *testing.T) {
	p := newTestProduct(t, 5)

	for _, amount := range []int{math.MaxInt, MaxQuantity - 4} {
		err := p.IncreaseStock(amount)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		assert.Equal(t, 5, p.Stock(), "stock must be unchanged after a rejected increase")
	}

	require.NoError(t, p.IncreaseStock(MaxQuantity-5))
	assert.Equal(t, MaxQuantity, p.Stock())
}

func TestHasStock(t *testing.T) {
	p := newTestProduct(t, 3)
	assert.True(t, p.HasStock(3))
	assert.False(t, p.HasStock(4))
}

// ============================================================================
// Activation and Price Tests
// ============================================================================

func TestActivate_ZeroStock(t *testing.T) {
	p := newTestProduct(t, 0)
	assert.ErrorIs(t, p.Activate(), ErrCannotActivateZeroStock)
	assert.False(t, p.IsActive())
}

func TestActivate_DeactivateRoundTrip(t *testing.T) {
	p := newTestProduct(t, 1)
	p.Deactivate()
	assert.False(t, p.IsActive())
	require.NoError(t, p.Activate())
	assert.True(t, p.IsActive())
}

func TestUpdatePrice(t *testing.T) {
	p := newTestProduct(t, 1)

	require.NoError(t, p.UpdatePrice(decimal.RequireFromString("10.00")))
	assert.True(t, p.Price().Equal(decimal.NewFromInt(10)))

	assert.ErrorIs(t, p.UpdatePrice(decimal.RequireFromString("-0.01")), ErrInvalidPrice)
	assert.True(t, p.Price().Equal(decimal.NewFromInt(10)))
}

func TestProductOrder_Valid(t *testing.T) {
	assert.True(t, OrderByMostSold.Valid())
	assert.True(t, OrderByNameDesc.Valid())
	assert.False(t, ProductOrder("random").Valid())
}
