package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/utafrali/techstore/internal/domain"
	apperrors "github.com/utafrali/techstore/pkg/errors"
)

// ProductRepository implements repository.ProductRepository in memory.
type ProductRepository struct {
	s *Store
}

func (r *ProductRepository) Create(_ context.Context, p *domain.Product) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	state := p.State()
	if _, ok := r.s.categories[state.CategoryID]; !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("category %d does not exist", state.CategoryID))
	}
	r.s.lastProductID++
	state.ID = r.s.lastProductID
	state.Version = 1
	r.s.products[state.ID] = state
	return domain.RestoreProduct(state), nil
}

func (r *ProductRepository) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	state, ok := r.s.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return domain.RestoreProduct(state), nil
}

func (r *ProductRepository) GetByIDs(_ context.Context, ids []int64) ([]*domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.Product, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if state, ok := r.s.products[id]; ok {
			out = append(out, domain.RestoreProduct(state))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (r *ProductRepository) List(_ context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]domain.ProductState, 0)
	for _, p := range r.s.products {
		if filter.Name != "" && !containsFold(p.Name, filter.Name) {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		matched = append(matched, p)
	}

	sold := r.s.soldQuantities()
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch filter.OrderBy {
		case domain.OrderByPriceAsc:
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
		case domain.OrderByPriceDesc:
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
		case domain.OrderByNameAsc:
			if c := strings.Compare(a.Name, b.Name); c != 0 {
				return c < 0
			}
		case domain.OrderByNameDesc:
			if c := strings.Compare(a.Name, b.Name); c != 0 {
				return c > 0
			}
		default:
			if sold[a.ID] != sold[b.ID] {
				return sold[a.ID] > sold[b.ID]
			}
		}
		return a.ID < b.ID
	})

	limit := filter.Limit
	if limit <= 0 || limit > domain.MaxProductListSize {
		limit = domain.MaxProductListSize
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*domain.Product, len(matched))
	for i, state := range matched {
		out[i] = domain.RestoreProduct(state)
	}
	return out, nil
}

// Update applies p when its version matches the stored row.
func (r *ProductRepository) Update(_ context.Context, p *domain.Product) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	state := p.State()
	current, ok := r.s.products[state.ID]
	if !ok {
		return nil, apperrors.NotFound("product", state.ID)
	}
	if current.Version != state.Version {
		return nil, domain.ConcurrencyConflict("product", state.ID)
	}
	state.Version++
	state.CreatedAt = current.CreatedAt
	r.s.products[state.ID] = state
	return domain.RestoreProduct(state), nil
}

func (r *ProductRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[id]; !ok {
		return apperrors.NotFound("product", id)
	}
	if r.s.referenced(id) {
		return apperrors.Conflict(fmt.Sprintf("product %d is referenced by orders", id))
	}
	delete(r.s.products, id)
	return nil
}
