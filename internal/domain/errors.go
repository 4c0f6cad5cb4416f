package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/techstore/pkg/errors"
)

// Error kinds. Every domain failure matches exactly one of these with errors.Is.
var (
	ErrInvalidQuantity          = errors.New("invalid quantity")
	ErrInvalidPrice             = errors.New("invalid price")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrInvalidOrInactiveProduct = errors.New("invalid or inactive product")
	ErrEmptyOrder               = errors.New("empty order")
	ErrOrderNotFound            = errors.New("order not found")
	ErrInvalidStateTransition   = errors.New("invalid state transition")
	ErrCannotActivateZeroStock  = errors.New("cannot activate product with zero stock")
	ErrConcurrencyConflict      = errors.New("concurrency conflict")
)

// InsufficientStockError names the product and both quantities.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %d: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Details is rendered into the error body by the HTTP layer.
func (e *InsufficientStockError) Details() map[string]any {
	return map[string]any{"product_id": e.ProductID, "available": e.Available, "requested": e.Requested}
}

// InvalidProductsError lists product IDs that are missing or inactive.
type InvalidProductsError struct {
	ProductIDs []int64
}

func (e *InvalidProductsError) Error() string {
	ids := make([]string, len(e.ProductIDs))
	for i, id := range e.ProductIDs {
		ids[i] = fmt.Sprint(id)
	}
	return "products " + strings.Join(ids, ", ")
}

func (e *InvalidProductsError) Unwrap() error { return ErrInvalidOrInactiveProduct }

// Details lists the offending IDs for the HTTP layer.
func (e *InvalidProductsError) Details() map[string]any {
	return map[string]any{"product_ids": e.ProductIDs}
}

// InvalidQuantity rejects a zero or negative quantity.
func InvalidQuantity(q int) *apperrors.AppError {
	return apperrors.New("INVALID_QUANTITY",
		fmt.Sprintf("quantity must be greater than zero, got %d", q),
		http.StatusUnprocessableEntity, ErrInvalidQuantity)
}

// QuantityOutOfRange rejects a quantity, or a stock level it would produce,
// above MaxQuantity. It is an INVALID_QUANTITY.
func QuantityOutOfRange(q int) *apperrors.AppError {
	return apperrors.New("INVALID_QUANTITY",
		fmt.Sprintf("quantity %d exceeds the maximum of %d", q, MaxQuantity),
		http.StatusUnprocessableEntity, ErrInvalidQuantity)
}

// InvalidPrice rejects a negative price.
func InvalidPrice(price string) *apperrors.AppError {
	return apperrors.New("INVALID_PRICE",
		fmt.Sprintf("price must not be negative, got %s", price),
		http.StatusUnprocessableEntity, ErrInvalidPrice)
}

// InsufficientStock carries an InsufficientStockError for the HTTP details.
func InsufficientStock(productID int64, available, requested int) *apperrors.AppError {
	return apperrors.New("INSUFFICIENT_STOCK",
		fmt.Sprintf("insufficient stock for product %d: available %d, requested %d", productID, available, requested),
		http.StatusConflict,
		&InsufficientStockError{ProductID: productID, Available: available, Requested: requested})
}

// InvalidOrInactiveProduct names every offending product ID.
func InvalidOrInactiveProduct(ids []int64) *apperrors.AppError {
	e := &InvalidProductsError{ProductIDs: ids}
	return apperrors.New("INVALID_OR_INACTIVE_PRODUCT",
		e.Error()+" do not exist or are inactive",
		http.StatusUnprocessableEntity, e)
}

// EmptyOrder rejects an order without items.
func EmptyOrder() *apperrors.AppError {
	return apperrors.New("EMPTY_ORDER", "an order needs at least one item",
		http.StatusUnprocessableEntity, ErrEmptyOrder)
}

// OrderNotFound also matches apperrors.ErrNotFound.
func OrderNotFound(id int64) *apperrors.AppError {
	return apperrors.New("ORDER_NOT_FOUND", fmt.Sprintf("order %d not found", id),
		http.StatusNotFound, fmt.Errorf("%w: %w", ErrOrderNotFound, apperrors.ErrNotFound))
}

// InvalidStateTransition rejects a move the order state machine forbids.
func InvalidStateTransition(from, to OrderStatus) *apperrors.AppError {
	return apperrors.New("INVALID_STATE_TRANSITION",
		fmt.Sprintf("cannot move order from %s to %s", from, to),
		http.StatusConflict, ErrInvalidStateTransition)
}

// CannotActivateZeroStock rejects activating a product without stock.
func CannotActivateZeroStock(productID int64) *apperrors.AppError {
	return apperrors.New("CANNOT_ACTIVATE_ZERO_STOCK",
		fmt.Sprintf("product %d has no stock and cannot be activated", productID),
		http.StatusConflict, ErrCannotActivateZeroStock)
}

// ConcurrencyConflict reports a lost race on a row. Callers may retry.
func ConcurrencyConflict(resource string, id int64) *apperrors.AppError {
	err := apperrors.New("CONCURRENCY_CONFLICT",
		fmt.Sprintf("%s %d was modified concurrently, retry the request", resource, id),
		http.StatusConflict, ErrConcurrencyConflict)
	err.Retryable = true
	return err
}
