package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/techstore/internal/domain"
)

// ReportRepository implements repository.ReportRepository by scanning
// confirmed orders.
type ReportRepository struct {
	s *Store
}

// eachConfirmedItem calls fn for every item of a confirmed order. Callers hold mu.
func (s *Store) eachConfirmedItem(fn func(o domain.OrderState, it domain.OrderItemState)) {
	for _, o := range s.orders {
		if o.Status != domain.OrderStatusConfirmed {
			continue
		}
		for _, it := range o.Items {
			fn(o, it)
		}
	}
}

func subtotal(it domain.OrderItemState) decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (r *ReportRepository) SalesByProduct(_ context.Context) ([]domain.ProductSales, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byProduct := make(map[int64]*domain.ProductSales)
	r.s.eachConfirmedItem(func(_ domain.OrderState, it domain.OrderItemState) {
		row, ok := byProduct[it.ProductID]
		if !ok {
			row = &domain.ProductSales{ProductID: it.ProductID, Revenue: decimal.Zero}
			if p, found := r.s.products[it.ProductID]; found {
				row.ProductName = p.Name
			}
			byProduct[it.ProductID] = row
		}
		row.QuantitySold += int64(it.Quantity)
		row.Revenue = row.Revenue.Add(subtotal(it))
	})

	out := make([]domain.ProductSales, 0, len(byProduct))
	for _, row := range byProduct {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Revenue.Equal(out[j].Revenue) {
			return out[i].Revenue.GreaterThan(out[j].Revenue)
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

func (r *ReportRepository) ProductSalesTimeline(_ context.Context, productID int64) ([]domain.DailySales, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byDay := make(map[time.Time]*domain.DailySales)
	r.s.eachConfirmedItem(func(o domain.OrderState, it domain.OrderItemState) {
		if it.ProductID != productID {
			return
		}
		day := o.CreatedAt.UTC().Truncate(24 * time.Hour)
		row, ok := byDay[day]
		if !ok {
			row = &domain.DailySales{Date: day, Revenue: decimal.Zero}
			byDay[day] = row
		}
		row.QuantitySold += int64(it.Quantity)
		row.Revenue = row.Revenue.Add(subtotal(it))
	})

	out := make([]domain.DailySales, 0, len(byDay))
	for _, row := range byDay {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *ReportRepository) SalesByCategory(_ context.Context) ([]domain.CategorySales, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byCategory := make(map[int64]*domain.CategorySales)
	r.s.eachConfirmedItem(func(_ domain.OrderState, it domain.OrderItemState) {
		p, ok := r.s.products[it.ProductID]
		if !ok {
			return
		}
		row, ok := byCategory[p.CategoryID]
		if !ok {
			row = &domain.CategorySales{CategoryID: p.CategoryID, Revenue: decimal.Zero}
			if c, found := r.s.categories[p.CategoryID]; found {
				row.CategoryName = c.Name
			}
			byCategory[p.CategoryID] = row
		}
		row.QuantitySold += int64(it.Quantity)
		row.Revenue = row.Revenue.Add(subtotal(it))
	})

	out := make([]domain.CategorySales, 0, len(byCategory))
	for _, row := range byCategory {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Revenue.Equal(out[j].Revenue) {
			return out[i].Revenue.GreaterThan(out[j].Revenue)
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

func (r *ReportRepository) SalesByPeriod(_ context.Context, start, end time.Time) (*domain.PeriodSales, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := &domain.PeriodSales{Start: start, End: end, Revenue: decimal.Zero}
	orders := make(map[int64]bool)
	r.s.eachConfirmedItem(func(o domain.OrderState, it domain.OrderItemState) {
		if o.CreatedAt.Before(start) || !o.CreatedAt.Before(end) {
			return
		}
		orders[o.ID] = true
		out.QuantitySold += int64(it.Quantity)
		out.Revenue = out.Revenue.Add(subtotal(it))
	})
	out.OrderCount = int64(len(orders))
	return out, nil
}
