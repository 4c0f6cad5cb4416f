package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/utafrali/techstore/pkg/errors"
)

// MaxQuantity bounds stock levels and order quantities to the range of the
// INTEGER columns that store them.
const MaxQuantity = math.MaxInt32

// Product is a catalog item together with its stock ledger. State changes
// only through its methods, which keep two rules: stock is never negative,
// and a product with zero stock is never active.
type Product struct {
	id          int64
	categoryID  int64
	name        string
	description string
	price       decimal.Decimal
	stock       int
	active      bool
	version     int64
	createdAt   time.Time
	updatedAt   *time.Time
}

// ProductState is the persisted form of a Product.
type ProductState struct {
	ID          int64
	CategoryID  int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Active      bool
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// NewProduct validates and builds an unsaved product. It starts active when
// it has stock.
func NewProduct(name, description string, price decimal.Decimal, stock int, categoryID int64) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("product name is required")
	}
	if price.IsNegative() {
		return nil, InvalidPrice(price.String())
	}
	if stock < 0 {
		return nil, InvalidQuantity(stock)
	}
	if stock > MaxQuantity {
		return nil, QuantityOutOfRange(stock)
	}
	return &Product{
		categoryID:  categoryID,
		name:        name,
		description: strings.TrimSpace(description),
		price:       price,
		stock:       stock,
		active:      stock > 0,
		createdAt:   time.Now().UTC(),
	}, nil
}

// RestoreProduct rebuilds a product loaded from storage.
func RestoreProduct(s ProductState) *Product {
	return &Product{
		id:          s.ID,
		categoryID:  s.CategoryID,
		name:        s.Name,
		description: s.Description,
		price:       s.Price,
		stock:       s.Stock,
		active:      s.Active && s.Stock > 0,
		version:     s.Version,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
	}
}

// State returns a copy of the product's fields for persistence.
func (p *Product) State() ProductState {
	return ProductState{
		ID:          p.id,
		CategoryID:  p.categoryID,
		Name:        p.name,
		Description: p.description,
		Price:       p.price,
		Stock:       p.stock,
		Active:      p.active,
		Version:     p.version,
		CreatedAt:   p.createdAt,
		UpdatedAt:   p.updatedAt,
	}
}

func (p *Product) ID() int64              { return p.id }
func (p *Product) CategoryID() int64      { return p.categoryID }
func (p *Product) Name() string           { return p.name }
func (p *Product) Description() string    { return p.description }
func (p *Product) Price() decimal.Decimal { return p.price }
func (p *Product) Stock() int             { return p.stock }
func (p *Product) IsActive() bool         { return p.active }
func (p *Product) Version() int64         { return p.version }
func (p *Product) CreatedAt() time.Time   { return p.createdAt }
func (p *Product) UpdatedAt() *time.Time  { return p.updatedAt }

// HasStock reports whether qty units are available.
func (p *Product) HasStock(qty int) bool {
	return qty <= p.stock
}

// IncreaseStock adds amount units and activates the product. The resulting
// stock may not exceed MaxQuantity.
func (p *Product) IncreaseStock(amount int) error {
	if amount <= 0 {
		return InvalidQuantity(amount)
	}
	if amount > MaxQuantity-p.stock {
		return QuantityOutOfRange(amount)
	}
	p.stock += amount
	p.active = true
	p.touch()
	return nil
}

// DecreaseStock removes amount units. Reaching zero deactivates the product.
// On failure the product is unchanged.
func (p *Product) DecreaseStock(amount int) error {
	if amount <= 0 {
		return InvalidQuantity(amount)
	}
	if amount > p.stock {
		return InsufficientStock(p.id, p.stock, amount)
	}
	p.stock -= amount
	if p.stock == 0 {
		p.active = false
	}
	p.touch()
	return nil
}

// UpdatePrice sets a new non-negative unit price.
func (p *Product) UpdatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return InvalidPrice(price.String())
	}
	p.price = price
	p.touch()
	return nil
}

// Activate fails for products without stock.
func (p *Product) Activate() error {
	if p.stock == 0 {
		return CannotActivateZeroStock(p.id)
	}
	p.active = true
	p.touch()
	return nil
}

// Deactivate always succeeds.
func (p *Product) Deactivate() {
	p.active = false
	p.touch()
}

func (p *Product) touch() {
	now := time.Now().UTC()
	p.updatedAt = &now
}

// ProductOrder selects the sort order of a product listing.
type ProductOrder string

const (
	OrderByMostSold  ProductOrder = "most_sold"
	OrderByPriceAsc  ProductOrder = "price_asc"
	OrderByPriceDesc ProductOrder = "price_desc"
	OrderByNameAsc   ProductOrder = "name_asc"
	OrderByNameDesc  ProductOrder = "name_desc"
)

// Valid reports whether o is a known ordering.
func (o ProductOrder) Valid() bool {
	switch o {
	case OrderByMostSold, OrderByPriceAsc, OrderByPriceDesc, OrderByNameAsc, OrderByNameDesc:
		return true
	}
	return false
}

// ProductFilter narrows a product listing. Zero values mean no constraint.
type ProductFilter struct {
	Name     string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	OrderBy  ProductOrder
	Limit    int
}

// MaxProductListSize bounds listings, which are not paginated.
const MaxProductListSize = 500
