package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/pkg/database"
)

// ReportRepository implements repository.ReportRepository with one GROUP BY
// query per report. Only confirmed orders are counted.
type ReportRepository struct {
	pool database.DBTX
}

// NewReportRepository creates a new PostgreSQL-backed report repository.
func NewReportRepository(pool database.DBTX) *ReportRepository {
	return &ReportRepository{pool: pool}
}

func (r *ReportRepository) SalesByProduct(ctx context.Context) (_ []domain.ProductSales, err error) {
	query := `
		SELECT p.id, p.name, SUM(oi.quantity), SUM(oi.subtotal)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.status = 'confirmed'
		GROUP BY p.id, p.name
		ORDER BY SUM(oi.subtotal) DESC, p.id`

	ctx, end := database.TraceQuery(ctx, "ReportRepository.SalesByProduct", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sales by product: %w", err)
	}
	defer rows.Close()

	out := []domain.ProductSales{}
	for rows.Next() {
		var row domain.ProductSales
		if err = rows.Scan(&row.ProductID, &row.ProductName, &row.QuantitySold, &row.Revenue); err != nil {
			return nil, fmt.Errorf("scan sales by product row: %w", err)
		}
		out = append(out, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales by product rows: %w", err)
	}
	return out, nil
}

func (r *ReportRepository) ProductSalesTimeline(ctx context.Context, productID int64) (_ []domain.DailySales, err error) {
	query := `
		SELECT date_trunc('day', o.created_at AT TIME ZONE 'UTC') AS day, SUM(oi.quantity), SUM(oi.subtotal)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status = 'confirmed' AND oi.product_id = $1
		GROUP BY day
		ORDER BY day`

	ctx, end := database.TraceQuery(ctx, "ReportRepository.ProductSalesTimeline", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("query product sales timeline: %w", err)
	}
	defer rows.Close()

	out := []domain.DailySales{}
	for rows.Next() {
		var row domain.DailySales
		if err = rows.Scan(&row.Date, &row.QuantitySold, &row.Revenue); err != nil {
			return nil, fmt.Errorf("scan product sales timeline row: %w", err)
		}
		row.Date = row.Date.UTC()
		out = append(out, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product sales timeline rows: %w", err)
	}
	return out, nil
}

func (r *ReportRepository) SalesByCategory(ctx context.Context) (_ []domain.CategorySales, err error) {
	query := `
		SELECT c.id, c.name, SUM(oi.quantity), SUM(oi.subtotal)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE o.status = 'confirmed'
		GROUP BY c.id, c.name
		ORDER BY SUM(oi.subtotal) DESC, c.id`

	ctx, end := database.TraceQuery(ctx, "ReportRepository.SalesByCategory", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sales by category: %w", err)
	}
	defer rows.Close()

	out := []domain.CategorySales{}
	for rows.Next() {
		var row domain.CategorySales
		if err = rows.Scan(&row.CategoryID, &row.CategoryName, &row.QuantitySold, &row.Revenue); err != nil {
			return nil, fmt.Errorf("scan sales by category row: %w", err)
		}
		out = append(out, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales by category rows: %w", err)
	}
	return out, nil
}

func (r *ReportRepository) SalesByPeriod(ctx context.Context, start, end time.Time) (_ *domain.PeriodSales, err error) {
	query := `
		SELECT COUNT(DISTINCT o.id), COALESCE(SUM(oi.quantity), 0), COALESCE(SUM(oi.subtotal), 0)
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.status = 'confirmed' AND o.created_at >= $1 AND o.created_at < $2`

	ctx, finish := database.TraceQuery(ctx, "ReportRepository.SalesByPeriod", query)
	defer func() { finish(err) }()

	out := &domain.PeriodSales{Start: start, End: end}
	err = r.pool.QueryRow(ctx, query, start, end).Scan(&out.OrderCount, &out.QuantitySold, &out.Revenue)
	if err != nil {
		return nil, fmt.Errorf("query sales by period: %w", err)
	}
	return out, nil
}
