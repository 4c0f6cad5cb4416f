package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/internal/repository"
	apperrors "github.com/utafrali/techstore/pkg/errors"
)

// ReportCache is a best-effort store for report results.
type ReportCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	InvalidateAll(ctx context.Context) error
}

// ReportService serves sales reports over confirmed orders. Results go
// through the cache when one is configured.
type ReportService struct {
	repo   repository.ReportRepository
	cache  ReportCache
	logger *slog.Logger
}

// NewReportService creates a report service. cache may be nil.
func NewReportService(repo repository.ReportRepository, cache ReportCache, logger *slog.Logger) *ReportService {
	return &ReportService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// SalesByProduct ranks products by revenue from confirmed orders.
func (s *ReportService) SalesByProduct(ctx context.Context) ([]domain.ProductSales, error) {
	return cached(ctx, s, "sales_by_product", "sales-by-product", s.repo.SalesByProduct)
}

// ProductSalesTimeline returns daily (UTC) sales of one product.
func (s *ReportService) ProductSalesTimeline(ctx context.Context, productID int64) ([]domain.DailySales, error) {
	key := fmt.Sprintf("product-timeline:%d", productID)
	return cached(ctx, s, "product_sales_timeline", key, func(ctx context.Context) ([]domain.DailySales, error) {
		return s.repo.ProductSalesTimeline(ctx, productID)
	})
}

// SalesByCategory totals confirmed sales per category.
func (s *ReportService) SalesByCategory(ctx context.Context) ([]domain.CategorySales, error) {
	return cached(ctx, s, "sales_by_category", "sales-by-category", s.repo.SalesByCategory)
}

// SalesByPeriod totals confirmed orders created in [start, end).
func (s *ReportService) SalesByPeriod(ctx context.Context, start, end time.Time) (*domain.PeriodSales, error) {
	if !start.Before(end) {
		return nil, apperrors.InvalidInput("start must be before end")
	}
	start, end = start.UTC(), end.UTC()
	key := fmt.Sprintf("period:%d:%d", start.Unix(), end.Unix())
	return cached(ctx, s, "sales_by_period", key, func(ctx context.Context) (*domain.PeriodSales, error) {
		return s.repo.SalesByPeriod(ctx, start, end)
	})
}

// InvalidateReports drops every cached report.
func (s *ReportService) InvalidateReports(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateAll(ctx)
}

// cached is cache-aside around load. Cache failures never fail the report.
func cached[T any](ctx context.Context, s *ReportService, report, key string, load func(context.Context) (T, error)) (T, error) {
	var result T
	if s.cache != nil {
		hit, err := s.cache.Get(ctx, key, &result)
		switch {
		case err != nil:
			reportCacheLookups.WithLabelValues(report, "error").Inc()
			s.logger.WarnContext(ctx, "report cache read failed",
				slog.String("report", report),
				slog.String("error", err.Error()),
			)
		case hit:
			reportCacheLookups.WithLabelValues(report, "hit").Inc()
			return result, nil
		default:
			reportCacheLookups.WithLabelValues(report, "miss").Inc()
		}
	}

	result, err := load(ctx)
	if err != nil {
		var zero T
		return zero, storeErr(fmt.Errorf("%s report: %w", report, err))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result); err != nil {
			s.logger.WarnContext(ctx, "report cache write failed",
				slog.String("report", report),
				slog.String("error", err.Error()),
			)
		}
	}
	return result, nil
}
