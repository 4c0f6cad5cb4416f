package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/internal/repository"
	"github.com/utafrali/techstore/pkg/database"
	apperrors "github.com/utafrali/techstore/pkg/errors"
)

// DefaultLockTimeout bounds how long a transaction waits for a row lock.
const DefaultLockTimeout = 5 * time.Second

// Transactor implements repository.Transactor with a ReadCommitted
// transaction and row locks taken through the Tx methods.
type Transactor struct {
	pool        database.DBTX
	lockTimeout time.Duration
}

// NewTransactor creates a Transactor. A non-positive lockTimeout falls back
// to DefaultLockTimeout.
func NewTransactor(pool database.DBTX, lockTimeout time.Duration) *Transactor {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Transactor{pool: pool, lockTimeout: lockTimeout}
}

// WithinTx runs fn in one transaction. Lock timeouts, deadlocks and
// serialization failures come back wrapping domain.ErrConcurrencyConflict.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	ctx, end := database.TraceQuery(ctx, "Transactor.WithinTx", "BEGIN")
	defer func() { end(err) }()

	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// SET does not accept bind parameters; the value is an integer.
	if _, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	if err = fn(ctx, &pgTx{tx: tx}); err != nil {
		return translateTxErr(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return translateTxErr(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func translateTxErr(err error) error {
	if database.IsConcurrencyConflict(err) && !errors.Is(err, domain.ErrConcurrencyConflict) {
		return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
	}
	return err
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (*domain.Order, error) {
	query := `
		SELECT id, status, created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE`

	var s domain.OrderState
	err := t.tx.QueryRow(ctx, query, id).Scan(&s.ID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.OrderNotFound(id)
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	itemsQuery := `
		SELECT id, product_id, '', quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := t.tx.Query(ctx, itemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	if s.Items, err = collectItems(rows); err != nil {
		return nil, err
	}
	return domain.RestoreOrder(s), nil
}

// LockProducts takes the row locks in ascending ID order so that
// overlapping transactions always queue instead of deadlocking.
func (t *pgTx) LockProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = ANY($1) ORDER BY p.id FOR UPDATE`

	rows, err := t.tx.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}

	out := make(map[int64]*domain.Product, len(products))
	for _, p := range products {
		out[p.ID()] = p
	}
	return out, nil
}

func (t *pgTx) SaveProduct(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET stock = $2, is_active = $3, version = version + 1, updated_at = $4
		WHERE id = $1`

	s := p.State()
	tag, err := t.tx.Exec(ctx, query, s.ID, s.Stock, s.Active, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save product stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", s.ID)
	}
	return nil
}

// SaveOrderStatus only moves orders that are still pending.
func (t *pgTx) SaveOrderStatus(ctx context.Context, o *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'`

	tag, err := t.tx.Exec(ctx, query, o.ID(), string(o.Status()), o.UpdatedAt())
	if err != nil {
		return fmt.Errorf("save order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ConcurrencyConflict("order", o.ID())
	}
	return nil
}
