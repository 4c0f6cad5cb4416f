package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/techstore/pkg/kafka"
)

// ConsumerGroupReports is the consumer group of the report cache invalidator.
const ConsumerGroupReports = "techstore-reports"

// ReportInvalidator drops cached report results.
type ReportInvalidator interface {
	InvalidateReports(ctx context.Context) error
}

// Consumer reacts to order events on behalf of the reporting projection.
type Consumer struct {
	reports ReportInvalidator
	logger  *slog.Logger
}

// NewConsumer creates a new order event consumer.
func NewConsumer(reports ReportInvalidator, logger *slog.Logger) *Consumer {
	return &Consumer{
		reports: reports,
		logger:  logger,
	}
}

// HandleOrderConfirmed invalidates cached reports, which aggregate
// confirmed orders only.
func (c *Consumer) HandleOrderConfirmed(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderData
	if err := event.DecodeData(&data); err != nil {
		return fmt.Errorf("unmarshal order.confirmed data: %w", err)
	}

	if err := c.reports.InvalidateReports(ctx); err != nil {
		return fmt.Errorf("invalidate reports for order %d: %w", data.OrderID, err)
	}

	c.logger.InfoContext(ctx, "report cache invalidated",
		slog.Int64("order_id", data.OrderID),
		slog.String("event_id", event.ID),
	)
	return nil
}
