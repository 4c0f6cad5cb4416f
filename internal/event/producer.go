package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/techstore/internal/domain"
	pkgkafka "github.com/utafrali/techstore/pkg/kafka"
	"github.com/utafrali/techstore/pkg/logger"
)

// Kafka topics for techstore domain events.
var (
	TopicOrderCreated       = pkgkafka.Topic("order", "created")
	TopicOrderConfirmed     = pkgkafka.Topic("order", "confirmed")
	TopicOrderCancelled     = pkgkafka.Topic("order", "cancelled")
	TopicProductStockChange = pkgkafka.Topic("product", "stock_changed")
)

// Aggregate type constants.
const (
	AggregateTypeOrder   = "order"
	AggregateTypeProduct = "product"
)

// SourceTechstore identifies events originating from this service.
const SourceTechstore = "techstore"

// Stock change reasons.
const (
	StockReasonOrderConfirmed = "order_confirmed"
	StockReasonManualIncrease = "manual_increase"
	StockReasonManualDecrease = "manual_decrease"
)

// OrderItemData is one line of an order event payload.
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderData is the payload of every order.* event.
type OrderData struct {
	OrderID int64              `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
	Total   decimal.Decimal    `json:"total"`
	Items   []OrderItemData    `json:"items,omitempty"`
}

// StockChangedData is the payload of a product.stock_changed event.
type StockChangedData struct {
	ProductID int64  `json:"product_id"`
	Delta     int    `json:"delta"`
	Stock     int    `json:"stock"`
	IsActive  bool   `json:"is_active"`
	Reason    string `json:"reason"`
	OrderID   int64  `json:"order_id,omitempty"`
}

// Publisher is the part of *pkgkafka.Producer the event producer needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// ErrPublisherDisabled is returned when no publisher is configured.
var ErrPublisherDisabled = errors.New("event publishing disabled")

var publisherCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "event_publisher_circuit_state",
	Help: "State of the event publisher circuit breaker (0=closed, 1=half-open, 2=open).",
})

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerConfig tunes the publish circuit breaker.
type BreakerConfig struct {
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig opens the breaker when half of at least five publishes fail.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Producer publishes techstore domain events. While the broker keeps
// failing the breaker opens and publishes fail fast with
// gobreaker.ErrOpenState instead of waiting on timeouts.
type Producer struct {
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker[struct{}]
	logger    *slog.Logger
}

// NewProducer creates an event producer. A nil publisher disables
// publishing; every Publish call then returns ErrPublisherDisabled.
func NewProducer(publisher Publisher, cfg BreakerConfig, log *slog.Logger) *Producer {
	settings := gobreaker.Settings{
		Name:        "event-publisher",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			publisherCircuitState.Set(stateToFloat(to))
		},
	}
	publisherCircuitState.Set(0)

	return &Producer{
		publisher: publisher,
		breaker:   gobreaker.NewCircuitBreaker[struct{}](settings),
		logger:    log,
	}
}

// Enabled reports whether events are actually sent.
func (p *Producer) Enabled() bool {
	return p != nil && p.publisher != nil
}

// State returns the current breaker state.
func (p *Producer) State() gobreaker.State {
	return p.breaker.State()
}

func (p *Producer) publish(ctx context.Context, topic, aggregateType, aggregateID string, data any) error {
	if !p.Enabled() {
		return ErrPublisherDisabled
	}

	event, err := pkgkafka.NewEvent(topic, aggregateType, aggregateID, SourceTechstore, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationID(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(ctx, topic, event)
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", event.ID),
	)
	return nil
}

func orderData(o *domain.Order, withItems bool) OrderData {
	data := OrderData{OrderID: o.ID(), Status: o.Status(), Total: o.Total()}
	if withItems {
		for _, it := range o.Items() {
			data.Items = append(data.Items, OrderItemData{
				ProductID: it.ProductID(),
				Quantity:  it.Quantity(),
				UnitPrice: it.UnitPrice(),
			})
		}
	}
	return data
}

// PublishOrderCreated publishes an order.created event with the order lines.
func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderCreated, AggregateTypeOrder, strconv.FormatInt(o.ID(), 10), orderData(o, true))
}

// PublishOrderConfirmed publishes an order.confirmed event.
func (p *Producer) PublishOrderConfirmed(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderConfirmed, AggregateTypeOrder, strconv.FormatInt(o.ID(), 10), orderData(o, true))
}

// PublishOrderCancelled publishes an order.cancelled event.
func (p *Producer) PublishOrderCancelled(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderCancelled, AggregateTypeOrder, strconv.FormatInt(o.ID(), 10), orderData(o, false))
}

// PublishStockChanged publishes a product.stock_changed event. orderID is
// zero for manual adjustments.
func (p *Producer) PublishStockChanged(ctx context.Context, product *domain.Product, delta int, reason string, orderID int64) error {
	data := StockChangedData{
		ProductID: product.ID(),
		Delta:     delta,
		Stock:     product.Stock(),
		IsActive:  product.IsActive(),
		Reason:    reason,
		OrderID:   orderID,
	}
	return p.publish(ctx, TopicProductStockChange, AggregateTypeProduct, strconv.FormatInt(product.ID(), 10), data)
}
