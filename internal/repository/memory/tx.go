package memory

import (
	"context"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/internal/repository"
	apperrors "github.com/utafrali/techstore/pkg/errors"
)

// WithinTx runs fn while holding the store's write lock. Writes are staged
// and become visible only if fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:        s,
		products: make(map[int64]domain.ProductState),
		orders:   make(map[int64]domain.OrderState),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, p := range tx.products {
		s.products[id] = p
	}
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	return nil
}

type memTx struct {
	s        *Store
	products map[int64]domain.ProductState
	orders   map[int64]domain.OrderState
}

func (t *memTx) LockOrder(_ context.Context, id int64) (*domain.Order, error) {
	if o, ok := t.orders[id]; ok {
		return domain.RestoreOrder(o), nil
	}
	o, ok := t.s.orders[id]
	if !ok {
		return nil, domain.OrderNotFound(id)
	}
	return domain.RestoreOrder(o), nil
}

func (t *memTx) LockProducts(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	out := make(map[int64]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.products[id]; ok {
			out[id] = domain.RestoreProduct(p)
			continue
		}
		if p, ok := t.s.products[id]; ok {
			out[id] = domain.RestoreProduct(p)
		}
	}
	return out, nil
}

func (t *memTx) SaveProduct(_ context.Context, p *domain.Product) error {
	state := p.State()
	current, ok := t.s.products[state.ID]
	if !ok {
		return apperrors.NotFound("product", state.ID)
	}
	if staged, ok := t.products[state.ID]; ok {
		current = staged
	}
	current.Stock = state.Stock
	current.Active = state.Active
	current.UpdatedAt = state.UpdatedAt
	current.Version++
	t.products[state.ID] = current
	return nil
}

func (t *memTx) SaveOrderStatus(_ context.Context, o *domain.Order) error {
	current, ok := t.s.orders[o.ID()]
	if !ok {
		return domain.OrderNotFound(o.ID())
	}
	if staged, ok := t.orders[o.ID()]; ok {
		current = staged
	}
	if current.Status != domain.OrderStatusPending {
		return domain.InvalidStateTransition(current.Status, o.Status())
	}
	current.Status = o.Status()
	current.UpdatedAt = o.UpdatedAt()
	t.orders[o.ID()] = current
	return nil
}
