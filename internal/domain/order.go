package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// allowedTransitions lists every legal move. Confirmed and Cancelled are terminal.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusConfirmed, OrderStatusCancelled},
}

// CanTransitionTo reports whether s may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled:
		return true
	}
	return false
}

// Order owns a fixed list of priced items. Its total is always the sum of
// the item subtotals.
type Order struct {
	id        int64
	status    OrderStatus
	items     []OrderItem
	total     decimal.Decimal
	createdAt time.Time
	updatedAt *time.Time
}

// OrderState is the persisted form of an Order.
type OrderState struct {
	ID        int64
	Status    OrderStatus
	Items     []OrderItemState
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// NewOrder builds a pending order. It fails with EmptyOrder without items.
func NewOrder(items []OrderItem) (*Order, error) {
	if len(items) == 0 {
		return nil, EmptyOrder()
	}
	perProduct := make(map[int64]int, len(items))
	for _, it := range items {
		if it.quantity > MaxQuantity-perProduct[it.productID] {
			return nil, QuantityOutOfRange(it.quantity)
		}
		perProduct[it.productID] += it.quantity
	}
	o := &Order{
		status:    OrderStatusPending,
		items:     append([]OrderItem(nil), items...),
		createdAt: time.Now().UTC(),
	}
	o.total = sumSubtotals(o.items)
	return o, nil
}

// RestoreOrder rebuilds an order loaded from storage, recomputing the total.
func RestoreOrder(s OrderState) *Order {
	items := make([]OrderItem, len(s.Items))
	for i, it := range s.Items {
		items[i] = RestoreOrderItem(it)
	}
	return &Order{
		id:        s.ID,
		status:    s.Status,
		items:     items,
		total:     sumSubtotals(items),
		createdAt: s.CreatedAt,
		updatedAt: s.UpdatedAt,
	}
}

// State returns a copy of the order for persistence.
func (o *Order) State() OrderState {
	items := make([]OrderItemState, len(o.items))
	for i, it := range o.items {
		items[i] = it.State()
	}
	return OrderState{
		ID:        o.id,
		Status:    o.status,
		Items:     items,
		CreatedAt: o.createdAt,
		UpdatedAt: o.updatedAt,
	}
}

func (o *Order) ID() int64              { return o.id }
func (o *Order) Status() OrderStatus    { return o.status }
func (o *Order) Total() decimal.Decimal { return o.total }
func (o *Order) CreatedAt() time.Time   { return o.createdAt }
func (o *Order) UpdatedAt() *time.Time  { return o.updatedAt }

// Items returns a copy of the order items.
func (o *Order) Items() []OrderItem {
	return append([]OrderItem(nil), o.items...)
}

// Quantities sums the requested quantity per product. A product may appear
// on more than one line.
func (o *Order) Quantities() map[int64]int {
	q := make(map[int64]int, len(o.items))
	for _, it := range o.items {
		q[it.productID] += it.quantity
	}
	return q
}

// ProductIDs returns the distinct referenced product IDs in ascending order.
func (o *Order) ProductIDs() []int64 {
	q := o.Quantities()
	ids := make([]int64, 0, len(q))
	for id := range q {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Confirm moves a pending order to Confirmed.
func (o *Order) Confirm() error {
	return o.transition(OrderStatusConfirmed)
}

// Cancel moves a pending order to Cancelled.
func (o *Order) Cancel() error {
	return o.transition(OrderStatusCancelled)
}

func (o *Order) transition(next OrderStatus) error {
	if !o.status.CanTransitionTo(next) {
		return InvalidStateTransition(o.status, next)
	}
	o.status = next
	now := time.Now().UTC()
	o.updatedAt = &now
	return nil
}

func sumSubtotals(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.subtotal)
	}
	return total
}
