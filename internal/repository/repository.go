package repository

import (
	"context"
	"time"

	"github.com/utafrali/techstore/internal/domain"
)

// CategoryRepository defines persistence for categories.
type CategoryRepository interface {
	// Create inserts a category and returns it with its assigned ID.
	Create(ctx context.Context, c *domain.Category) (*domain.Category, error)

	// GetByID returns apperrors.ErrNotFound when the category does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Category, error)

	// List returns all categories ordered by name.
	List(ctx context.Context) ([]domain.Category, error)

	// Update persists name, description and active flag.
	Update(ctx context.Context, c *domain.Category) error
}

// ProductRepository defines persistence for products outside the order
// confirmation transaction.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) (*domain.Product, error)

	GetByID(ctx context.Context, id int64) (*domain.Product, error)

	// GetByIDs returns the products that exist among ids. Missing IDs are
	// simply absent from the result.
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error)

	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)

	// Update writes p only if its stored version still equals p.Version().
	// A stale version yields domain.ErrConcurrencyConflict. The returned
	// product carries the new version.
	Update(ctx context.Context, p *domain.Product) (*domain.Product, error)

	// Delete fails with apperrors.ErrConflict while order items reference
	// the product.
	Delete(ctx context.Context, id int64) error
}

// OrderRepository defines persistence for orders and their items.
type OrderRepository interface {
	// Create stores the order and all of its items atomically.
	Create(ctx context.Context, o *domain.Order) (*domain.Order, error)

	// GetByID returns the order with items enriched by product name.
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
}

// ReportRepository aggregates confirmed orders.
type ReportRepository interface {
	SalesByProduct(ctx context.Context) ([]domain.ProductSales, error)
	ProductSalesTimeline(ctx context.Context, productID int64) ([]domain.DailySales, error)
	SalesByCategory(ctx context.Context) ([]domain.CategorySales, error)
	SalesByPeriod(ctx context.Context, start, end time.Time) (*domain.PeriodSales, error)
}

// Transactor runs fn inside one storage transaction. The transaction
// commits when fn returns nil and rolls back otherwise. Lock conflicts are
// reported as domain.ErrConcurrencyConflict.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of locked reads and writes available inside a transaction.
// Rows returned by the Lock methods stay locked until the transaction ends.
type Tx interface {
	// LockOrder returns domain.ErrOrderNotFound when the order is missing.
	LockOrder(ctx context.Context, id int64) (*domain.Order, error)

	// LockProducts locks the rows in ascending ID order. Missing products
	// are absent from the map.
	LockProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)

	// SaveProduct writes stock and active flag of a locked product.
	SaveProduct(ctx context.Context, p *domain.Product) error

	// SaveOrderStatus writes the status of a locked order.
	SaveOrderStatus(ctx context.Context, o *domain.Order) error
}
