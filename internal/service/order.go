package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/internal/event"
	"github.com/utafrali/techstore/internal/repository"
)

// confirmAttempts bounds how often a confirmation that lost a lock race is
// run from scratch.
const confirmAttempts = 2

// OrderLine is one requested (product, quantity) pair.
type OrderLine struct {
	ProductID int64
	Quantity  int
}

// ReportInvalidator drops cached reports once the sales they aggregate change.
type ReportInvalidator interface {
	InvalidateReports(ctx context.Context) error
}

// OrderService implements order creation, confirmation and cancellation.
type OrderService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	tx       repository.Transactor
	reports  ReportInvalidator
	producer *event.Producer
	logger   *slog.Logger
}

// NewOrderService creates a new order service. reports may be nil when no
// report cache is in front of the sales queries.
func NewOrderService(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	tx repository.Transactor,
	reports ReportInvalidator,
	producer *event.Producer,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		products: products,
		orders:   orders,
		tx:       tx,
		reports:  reports,
		producer: producer,
		logger:   logger,
	}
}

// CreateOrder validates the lines against the current catalog, snapshots
// prices and persists a pending order. Stock is not touched; the stock
// check here is advisory and confirmation checks again under lock.
func (s *OrderService) CreateOrder(ctx context.Context, lines []OrderLine) (*domain.Order, error) {
	if len(lines) == 0 {
		return nil, domain.EmptyOrder()
	}
	requested := make(map[int64]int, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, domain.InvalidQuantity(l.Quantity)
		}
		if l.Quantity > domain.MaxQuantity-requested[l.ProductID] {
			return nil, domain.QuantityOutOfRange(l.Quantity)
		}
		if _, seen := requested[l.ProductID]; !seen {
			ids = append(ids, l.ProductID)
		}
		requested[l.ProductID] += l.Quantity
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	found, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(fmt.Errorf("load order products: %w", err))
	}
	products := make(map[int64]*domain.Product, len(found))
	for _, p := range found {
		products[p.ID()] = p
	}

	var invalid []int64
	for _, id := range ids {
		if p, ok := products[id]; !ok || !p.IsActive() {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return nil, domain.InvalidOrInactiveProduct(invalid)
	}

	for _, id := range ids {
		if p := products[id]; !p.HasStock(requested[id]) {
			return nil, domain.InsufficientStock(id, p.Stock(), requested[id])
		}
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		item, err := domain.NewOrderItem(l.ProductID, l.Quantity, products[l.ProductID].Price())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	order, err := domain.NewOrder(items)
	if err != nil {
		return nil, err
	}

	created, err := s.orders.Create(ctx, order)
	if err != nil {
		return nil, storeErr(fmt.Errorf("create order: %w", err))
	}
	ordersCreated.Inc()

	s.logger.InfoContext(ctx, "order created",
		slog.Int64("order_id", created.ID()),
		slog.Int("items", len(items)),
		slog.String("total", created.Total().StringFixed(2)),
	)

	if s.producer.Enabled() {
		if err := s.producer.PublishOrderCreated(ctx, created); err != nil {
			s.logger.WarnContext(ctx, "failed to publish order.created event",
				slog.Int64("order_id", created.ID()),
				slog.String("error", err.Error()),
			)
		}
	}
	return created, nil
}

// GetOrder returns the order with its items.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return o, nil
}

// ConfirmOrder re-validates every item against locked product rows and
// commits all decrements together with the status change, or nothing.
func (s *OrderService) ConfirmOrder(ctx context.Context, id int64) error {
	var (
		confirmed *domain.Order
		touched   []*domain.Product
	)

	err := s.retryOnConflict(ctx, "confirm_order", id, func() error {
		confirmed, touched = nil, nil
		return s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			order, err := tx.LockOrder(ctx, id)
			if err != nil {
				return err
			}
			if order.Status() != domain.OrderStatusPending {
				return domain.InvalidStateTransition(order.Status(), domain.OrderStatusConfirmed)
			}

			ids := order.ProductIDs()
			products, err := tx.LockProducts(ctx, ids)
			if err != nil {
				return err
			}

			var missing []int64
			for _, pid := range ids {
				if _, ok := products[pid]; !ok {
					missing = append(missing, pid)
				}
			}
			if len(missing) > 0 {
				return domain.InvalidOrInactiveProduct(missing)
			}

			quantities := order.Quantities()
			for _, pid := range ids {
				if p := products[pid]; !p.HasStock(quantities[pid]) {
					return domain.InsufficientStock(pid, p.Stock(), quantities[pid])
				}
			}

			changed := make([]*domain.Product, 0, len(ids))
			for _, pid := range ids {
				p := products[pid]
				if err := p.DecreaseStock(quantities[pid]); err != nil {
					return err
				}
				if err := tx.SaveProduct(ctx, p); err != nil {
					return err
				}
				changed = append(changed, p)
			}

			if err := order.Confirm(); err != nil {
				return err
			}
			if err := tx.SaveOrderStatus(ctx, order); err != nil {
				return err
			}

			confirmed, touched = order, changed
			return nil
		})
	})
	orderConfirmations.WithLabelValues(confirmOutcome(err)).Inc()
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "order confirmed",
		slog.Int64("order_id", id),
		slog.Int("products", len(touched)),
	)
	s.invalidateReports(ctx, id)
	s.publishConfirmed(ctx, confirmed, touched)
	return nil
}

// invalidateReports runs after commit. A failure leaves cached reports stale
// until the order.confirmed consumer or the cache TTL drops them.
func (s *OrderService) invalidateReports(ctx context.Context, orderID int64) {
	if s.reports == nil {
		return
	}
	if err := s.reports.InvalidateReports(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate cached reports",
			slog.Int64("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}

// CancelOrder moves a pending order to cancelled. The status write is
// conditional on pending, so it cannot overtake a concurrent confirmation.
func (s *OrderService) CancelOrder(ctx context.Context, id int64) error {
	var cancelled *domain.Order

	err := s.retryOnConflict(ctx, "cancel_order", id, func() error {
		return s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			order, err := tx.LockOrder(ctx, id)
			if err != nil {
				return err
			}
			if err := order.Cancel(); err != nil {
				return err
			}
			if err := tx.SaveOrderStatus(ctx, order); err != nil {
				return err
			}
			cancelled = order
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "order cancelled", slog.Int64("order_id", id))
	if s.producer.Enabled() {
		if err := s.producer.PublishOrderCancelled(ctx, cancelled); err != nil {
			s.logger.WarnContext(ctx, "failed to publish order.cancelled event",
				slog.Int64("order_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// retryOnConflict runs fn again from scratch when it lost a lock race. A
// conflict on the last attempt is reported as a retryable
// ConcurrencyConflict naming the order.
func (s *OrderService) retryOnConflict(ctx context.Context, op string, id int64, fn func() error) error {
	var err error
	for attempt := 1; attempt <= confirmAttempts; attempt++ {
		err = fn()
		if err == nil || !isConflict(err) {
			return storeErr(err)
		}
		if attempt < confirmAttempts {
			concurrencyRetries.WithLabelValues(op).Inc()
			s.logger.DebugContext(ctx, "order lock conflict, retrying",
				slog.String("operation", op),
				slog.Int64("order_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.WarnContext(ctx, "order lock conflict persisted",
		slog.String("operation", op),
		slog.Int64("order_id", id),
		slog.String("error", err.Error()),
	)
	return domain.ConcurrencyConflict("order", id)
}

func (s *OrderService) publishConfirmed(ctx context.Context, o *domain.Order, products []*domain.Product) {
	if !s.producer.Enabled() {
		return
	}
	if err := s.producer.PublishOrderConfirmed(ctx, o); err != nil {
		s.logger.WarnContext(ctx, "failed to publish order.confirmed event",
			slog.Int64("order_id", o.ID()),
			slog.String("error", err.Error()),
		)
	}

	quantities := o.Quantities()
	for _, p := range products {
		err := s.producer.PublishStockChanged(ctx, p, -quantities[p.ID()], event.StockReasonOrderConfirmed, o.ID())
		if err != nil {
			s.logger.WarnContext(ctx, "failed to publish product.stock_changed event",
				slog.Int64("product_id", p.ID()),
				slog.Int64("order_id", o.ID()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func confirmOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeConfirmed
	case errors.Is(err, domain.ErrInsufficientStock):
		return outcomeInsufficientStock
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return outcomeConflict
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrInvalidOrInactiveProduct):
		return outcomeRejected
	default:
		return outcomeError
	}
}
