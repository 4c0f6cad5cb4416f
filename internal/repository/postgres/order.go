package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/pkg/database"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order row and every item in a single transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (_ *domain.Order, err error) {
	orderQuery := `
		INSERT INTO orders (status, total, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	itemQuery := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "OrderRepository.Create", orderQuery)
	defer func() { end(err) }()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin order transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	s := o.State()
	if err = tx.QueryRow(ctx, orderQuery, string(s.Status), o.Total(), s.CreatedAt).Scan(&s.ID); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i, item := range o.Items() {
		err = tx.QueryRow(ctx, itemQuery,
			s.ID,
			item.ProductID(),
			item.Quantity(),
			item.UnitPrice(),
			item.Subtotal(),
		).Scan(&s.Items[i].ID)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return nil, domain.InvalidOrInactiveProduct([]int64{item.ProductID()})
			}
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order transaction: %w", err)
	}
	return domain.RestoreOrder(s), nil
}

// GetByID loads an order and its items. Item names come from the current
// product rows.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (_ *domain.Order, err error) {
	query := `
		SELECT id, status, created_at, updated_at
		FROM orders
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "OrderRepository.GetByID", query)
	defer func() { end(err) }()

	var s domain.OrderState
	err = r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.OrderNotFound(id)
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}

	itemsQuery := `
		SELECT oi.id, oi.product_id, COALESCE(p.name, ''), oi.quantity, oi.unit_price
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`

	rows, err := r.pool.Query(ctx, itemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	if s.Items, err = collectItems(rows); err != nil {
		return nil, err
	}
	return domain.RestoreOrder(s), nil
}

func collectItems(rows pgx.Rows) ([]domain.OrderItemState, error) {
	defer rows.Close()

	items := []domain.OrderItemState{}
	for rows.Next() {
		var it domain.OrderItemState
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order item rows: %w", err)
	}
	return items, nil
}
