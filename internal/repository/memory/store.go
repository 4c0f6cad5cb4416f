package memory

import (
	"strings"
	"sync"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/internal/repository"
)

// Store is an in-memory backend shared by the repositories below. Every
// transaction holds the write lock for its whole duration, so transactions
// are fully serialized and single-row writes never interleave with them.
type Store struct {
	mu         sync.RWMutex
	categories map[int64]domain.Category
	products   map[int64]domain.ProductState
	orders     map[int64]domain.OrderState

	lastCategoryID int64
	lastProductID  int64
	lastOrderID    int64
	lastItemID     int64
}

var (
	_ repository.CategoryRepository = (*CategoryRepository)(nil)
	_ repository.ProductRepository  = (*ProductRepository)(nil)
	_ repository.OrderRepository    = (*OrderRepository)(nil)
	_ repository.ReportRepository   = (*ReportRepository)(nil)
	_ repository.Transactor         = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		categories: make(map[int64]domain.Category),
		products:   make(map[int64]domain.ProductState),
		orders:     make(map[int64]domain.OrderState),
	}
}

func (s *Store) Categories() *CategoryRepository { return &CategoryRepository{s: s} }
func (s *Store) Products() *ProductRepository    { return &ProductRepository{s: s} }
func (s *Store) Orders() *OrderRepository        { return &OrderRepository{s: s} }
func (s *Store) Reports() *ReportRepository      { return &ReportRepository{s: s} }

// soldQuantities sums confirmed quantities per product. Callers hold mu.
func (s *Store) soldQuantities() map[int64]int64 {
	sold := make(map[int64]int64)
	for _, o := range s.orders {
		if o.Status != domain.OrderStatusConfirmed {
			continue
		}
		for _, it := range o.Items {
			sold[it.ProductID] += int64(it.Quantity)
		}
	}
	return sold
}

// referenced reports whether any order item points at productID. Callers hold mu.
func (s *Store) referenced(productID int64) bool {
	for _, o := range s.orders {
		for _, it := range o.Items {
			if it.ProductID == productID {
				return true
			}
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
