package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/internal/event"
	"github.com/utafrali/techstore/internal/repository"
	apperrors "github.com/utafrali/techstore/pkg/errors"
)

// CatalogService implements category and product management, including
// manual stock adjustments.
type CatalogService struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
	producer   *event.Producer
	logger     *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	categories repository.CategoryRepository,
	products repository.ProductRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		categories: categories,
		products:   products,
		producer:   producer,
		logger:     logger,
	}
}

// CreateProductInput carries the fields of a new product.
type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  int64
}

// StockLevel is the stock view of one product.
type StockLevel struct {
	ProductID int64 `json:"product_id"`
	Stock     int   `json:"stock"`
	IsActive  bool  `json:"is_active"`
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

// CreateCategory rejects blank and duplicate names.
func (s *CatalogService) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	c, err := domain.NewCategory(name, description)
	if err != nil {
		return nil, err
	}

	created, err := s.categories.Create(ctx, c)
	if err != nil {
		return nil, storeErr(fmt.Errorf("create category: %w", err))
	}

	s.logger.InfoContext(ctx, "category created",
		slog.Int64("category_id", created.ID),
		slog.String("name", created.Name),
	)
	return created, nil
}

// GetCategory returns ErrNotFound for unknown IDs.
func (s *CatalogService) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return c, nil
}

// ListCategories returns every category, active or not, ordered by name.
func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	list, err := s.categories.List(ctx)
	if err != nil {
		return nil, storeErr(fmt.Errorf("list categories: %w", err))
	}
	return list, nil
}

// CategoryNames maps every category ID to its name.
func (s *CatalogService) CategoryNames(ctx context.Context) (map[int64]string, error) {
	list, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(list))
	for _, c := range list {
		names[c.ID] = c.Name
	}
	return names, nil
}

// ActivateCategory is idempotent.
func (s *CatalogService) ActivateCategory(ctx context.Context, id int64) (*domain.Category, error) {
	return s.setCategoryActive(ctx, id, true)
}

// DeactivateCategory is idempotent. Products of the category stay orderable.
func (s *CatalogService) DeactivateCategory(ctx context.Context, id int64) (*domain.Category, error) {
	return s.setCategoryActive(ctx, id, false)
}

func (s *CatalogService) setCategoryActive(ctx context.Context, id int64, active bool) (*domain.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if c.IsActive == active {
		return c, nil
	}

	if active {
		c.Activate()
	} else {
		c.Deactivate()
	}
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, storeErr(fmt.Errorf("update category: %w", err))
	}

	s.logger.InfoContext(ctx, "category status changed",
		slog.Int64("category_id", id),
		slog.Bool("is_active", active),
	)
	return c, nil
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// CreateProduct requires an existing, active category.
func (s *CatalogService) CreateProduct(ctx context.Context, in CreateProductInput) (*domain.Product, error) {
	p, err := domain.NewProduct(in.Name, in.Description, in.Price, in.Stock, in.CategoryID)
	if err != nil {
		return nil, err
	}

	c, err := s.categories.GetByID(ctx, in.CategoryID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("category %d does not exist", in.CategoryID))
		}
		return nil, storeErr(err)
	}
	if !c.IsActive {
		return nil, apperrors.InvalidInput(fmt.Sprintf("category %d is inactive", in.CategoryID))
	}

	created, err := s.products.Create(ctx, p)
	if err != nil {
		return nil, storeErr(fmt.Errorf("create product: %w", err))
	}

	s.logger.InfoContext(ctx, "product created",
		slog.Int64("product_id", created.ID()),
		slog.Int64("category_id", created.CategoryID()),
		slog.Int("stock", created.Stock()),
	)
	return created, nil
}

// GetProduct returns ErrNotFound for unknown IDs.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// ListProducts rejects inverted price ranges and unknown orderings.
func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	if filter.OrderBy == "" {
		filter.OrderBy = domain.OrderByMostSold
	}
	if !filter.OrderBy.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown ordering %q", filter.OrderBy))
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, apperrors.InvalidInput("min_price must not exceed max_price")
	}

	products, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, storeErr(fmt.Errorf("list products: %w", err))
	}
	return products, nil
}

// GetStock reports the current stock level and sellability of a product.
func (s *CatalogService) GetStock(ctx context.Context, id int64) (*StockLevel, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StockLevel{ProductID: p.ID(), Stock: p.Stock(), IsActive: p.IsActive()}, nil
}

// IncreaseStock adds a positive amount to the stock level.
func (s *CatalogService) IncreaseStock(ctx context.Context, id int64, amount int) (*domain.Product, error) {
	p, err := s.mutate(ctx, "increase_stock", id, func(p *domain.Product) error {
		return p.IncreaseStock(amount)
	})
	if err != nil {
		return nil, err
	}
	s.publishStockChanged(ctx, p, amount, event.StockReasonManualIncrease)
	return p, nil
}

// DecreaseStock removes a positive amount. A product that runs out of stock
// is deactivated.
func (s *CatalogService) DecreaseStock(ctx context.Context, id int64, amount int) (*domain.Product, error) {
	p, err := s.mutate(ctx, "decrease_stock", id, func(p *domain.Product) error {
		return p.DecreaseStock(amount)
	})
	if err != nil {
		return nil, err
	}
	s.publishStockChanged(ctx, p, -amount, event.StockReasonManualDecrease)
	return p, nil
}

// UpdatePrice rejects negative prices. Existing order lines keep the price
// they were created with.
func (s *CatalogService) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) (*domain.Product, error) {
	return s.mutate(ctx, "update_price", id, func(p *domain.Product) error {
		return p.UpdatePrice(price)
	})
}

// ActivateProduct refuses products without stock.
func (s *CatalogService) ActivateProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.mutate(ctx, "activate_product", id, func(p *domain.Product) error {
		return p.Activate()
	})
}

// DeactivateProduct takes a product off sale. It is idempotent.
func (s *CatalogService) DeactivateProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.mutate(ctx, "deactivate_product", id, func(p *domain.Product) error {
		p.Deactivate()
		return nil
	})
}

// DeleteProduct refuses products that order items still reference.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return storeErr(err)
	}
	s.logger.InfoContext(ctx, "product deleted", slog.Int64("product_id", id))
	return nil
}

// mutate loads the product, applies fn and writes it back under the
// version check. A lost race is retried once against a fresh read.
func (s *CatalogService) mutate(ctx context.Context, op string, id int64, fn func(*domain.Product) error) (*domain.Product, error) {
	for attempt := 0; attempt < 2; attempt++ {
		p, err := s.products.GetByID(ctx, id)
		if err != nil {
			return nil, storeErr(err)
		}
		if err := fn(p); err != nil {
			return nil, err
		}

		updated, err := s.products.Update(ctx, p)
		if err == nil {
			s.logger.InfoContext(ctx, "product updated",
				slog.String("operation", op),
				slog.Int64("product_id", id),
				slog.Int("stock", updated.Stock()),
				slog.Bool("is_active", updated.IsActive()),
			)
			return updated, nil
		}
		if !isConflict(err) {
			return nil, storeErr(fmt.Errorf("%s: %w", op, err))
		}
		concurrencyRetries.WithLabelValues(op).Inc()
		s.logger.DebugContext(ctx, "product version conflict, retrying",
			slog.String("operation", op),
			slog.Int64("product_id", id),
		)
	}
	return nil, domain.ConcurrencyConflict("product", id)
}

func (s *CatalogService) publishStockChanged(ctx context.Context, p *domain.Product, delta int, reason string) {
	if !s.producer.Enabled() {
		return
	}
	if err := s.producer.PublishStockChanged(ctx, p, delta, reason, 0); err != nil {
		s.logger.WarnContext(ctx, "failed to publish product.stock_changed event",
			slog.Int64("product_id", p.ID()),
			slog.String("error", err.Error()),
		)
	}
}
