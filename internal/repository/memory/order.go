package memory

import (
	"context"

	"github.com/utafrali/techstore/internal/domain"
)

// OrderRepository implements repository.OrderRepository in memory.
type OrderRepository struct {
	s *Store
}

// Create stores the order and its items under one lock. It fails when any
// referenced product no longer exists.
func (r *OrderRepository) Create(_ context.Context, o *domain.Order) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	state := o.State()
	for _, id := range o.ProductIDs() {
		if _, ok := r.s.products[id]; !ok {
			return nil, domain.InvalidOrInactiveProduct([]int64{id})
		}
	}

	r.s.lastOrderID++
	state.ID = r.s.lastOrderID
	items := make([]domain.OrderItemState, len(state.Items))
	for i, it := range state.Items {
		r.s.lastItemID++
		it.ID = r.s.lastItemID
		it.ProductName = ""
		items[i] = it
	}
	state.Items = items
	r.s.orders[state.ID] = state
	return domain.RestoreOrder(state), nil
}

func (r *OrderRepository) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	state, ok := r.s.orders[id]
	if !ok {
		return nil, domain.OrderNotFound(id)
	}
	return domain.RestoreOrder(r.s.withProductNames(state)), nil
}

// withProductNames returns a copy of state with item names filled in.
// Callers hold mu.
func (s *Store) withProductNames(state domain.OrderState) domain.OrderState {
	items := make([]domain.OrderItemState, len(state.Items))
	for i, it := range state.Items {
		if p, ok := s.products[it.ProductID]; ok {
			it.ProductName = p.Name
		}
		items[i] = it
	}
	state.Items = items
	return state
}
