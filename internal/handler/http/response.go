package http

import (
	"time"

	"github.com/utafrali/techstore/internal/domain"
)

// productResponse renders money with two decimals as a JSON string, like
// every other response in this package.
type productResponse struct {
	ID          int64           `json:"id"`
	CategoryID  int64           `json:"category_id"`
	Category    categorySummary `json:"category"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       string          `json:"price"`
	Stock       int             `json:"stock"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// categorySummary is the category embedded in a product. Name is empty when
// the category could not be resolved.
type categorySummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

func toProductResponse(p *domain.Product, categoryNames map[int64]string) productResponse {
	return productResponse{
		ID:          p.ID(),
		CategoryID:  p.CategoryID(),
		Category:    categorySummary{ID: p.CategoryID(), Name: categoryNames[p.CategoryID()]},
		Name:        p.Name(),
		Description: p.Description(),
		Price:       p.Price().StringFixed(2),
		Stock:       p.Stock(),
		IsActive:    p.IsActive(),
		CreatedAt:   p.CreatedAt(),
		UpdatedAt:   p.UpdatedAt(),
	}
}

func toProductResponses(products []*domain.Product, categoryNames map[int64]string) []productResponse {
	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p, categoryNames)
	}
	return out
}

// orderCreatedResponse is the body of POST /orders.
type orderCreatedResponse struct {
	ID        int64              `json:"id"`
	Status    domain.OrderStatus `json:"status"`
	Total     string             `json:"total"`
	CreatedAt time.Time          `json:"created_at"`
}

type orderItemResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type orderResponse struct {
	ID        int64               `json:"id"`
	Status    domain.OrderStatus  `json:"status"`
	Total     string              `json:"total"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
	Items     []orderItemResponse `json:"items"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	items := o.Items()
	resp := orderResponse{
		ID:        o.ID(),
		Status:    o.Status(),
		Total:     o.Total().StringFixed(2),
		CreatedAt: o.CreatedAt(),
		UpdatedAt: o.UpdatedAt(),
		Items:     make([]orderItemResponse, len(items)),
	}
	for i, it := range items {
		resp.Items[i] = orderItemResponse{
			ID:          it.ID(),
			ProductID:   it.ProductID(),
			ProductName: it.ProductName(),
			Quantity:    it.Quantity(),
			UnitPrice:   it.UnitPrice().StringFixed(2),
			Subtotal:    it.Subtotal().StringFixed(2),
		}
	}
	return resp
}
