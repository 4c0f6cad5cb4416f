package domain

import (
	"github.com/shopspring/decimal"
)

// OrderItem is one immutable order line. UnitPrice is the product price at
// order creation; later price changes never reach it.
type OrderItem struct {
	id          int64
	productID   int64
	productName string
	quantity    int
	unitPrice   decimal.Decimal
	subtotal    decimal.Decimal
}

// OrderItemState is the persisted form of an OrderItem. ProductName is
// filled on reads only.
type OrderItemState struct {
	ID          int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// NewOrderItem validates a line and computes its subtotal.
func NewOrderItem(productID int64, quantity int, unitPrice decimal.Decimal) (OrderItem, error) {
	if quantity <= 0 {
		return OrderItem{}, InvalidQuantity(quantity)
	}
	if quantity > MaxQuantity {
		return OrderItem{}, QuantityOutOfRange(quantity)
	}
	if unitPrice.IsNegative() {
		return OrderItem{}, InvalidPrice(unitPrice.String())
	}
	return OrderItem{
		productID: productID,
		quantity:  quantity,
		unitPrice: unitPrice,
		subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// RestoreOrderItem rebuilds a stored line, recomputing its subtotal.
func RestoreOrderItem(s OrderItemState) OrderItem {
	return OrderItem{
		id:          s.ID,
		productID:   s.ProductID,
		productName: s.ProductName,
		quantity:    s.Quantity,
		unitPrice:   s.UnitPrice,
		subtotal:    s.UnitPrice.Mul(decimal.NewFromInt(int64(s.Quantity))),
	}
}

func (i OrderItem) State() OrderItemState {
	return OrderItemState{
		ID:          i.id,
		ProductID:   i.productID,
		ProductName: i.productName,
		Quantity:    i.quantity,
		UnitPrice:   i.unitPrice,
	}
}

func (i OrderItem) ID() int64                  { return i.id }
func (i OrderItem) ProductID() int64           { return i.productID }
func (i OrderItem) ProductName() string        { return i.productName }
func (i OrderItem) Quantity() int              { return i.quantity }
func (i OrderItem) UnitPrice() decimal.Decimal { return i.unitPrice }
func (i OrderItem) Subtotal() decimal.Decimal  { return i.subtotal }
