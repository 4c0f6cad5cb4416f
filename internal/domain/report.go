package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report rows aggregate confirmed orders only.

type ProductSales struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	QuantitySold int64           `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type DailySales struct {
	Date         time.Time       `json:"date"`
	QuantitySold int64           `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type CategorySales struct {
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name"`
	QuantitySold int64           `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// PeriodSales covers orders created in [Start, End).
type PeriodSales struct {
	Start        time.Time       `json:"start_date"`
	End          time.Time       `json:"end_date"`
	OrderCount   int64           `json:"order_count"`
	QuantitySold int64           `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}
