package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/pkg/database"
	apperrors "github.com/utafrali/techstore/pkg/errors"
)

const productColumns = `p.id, p.category_id, p.name, p.description, p.price, p.stock, p.is_active, p.version, p.created_at, p.updated_at`

// soldJoin attaches the confirmed quantity sold per product.
const soldJoin = `
		LEFT JOIN (
			SELECT oi.product_id, SUM(oi.quantity) AS sold
			FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE o.status = 'confirmed'
			GROUP BY oi.product_id
		) s ON s.product_id = p.id`

var productOrderClauses = map[domain.ProductOrder]string{
	domain.OrderByMostSold:  "COALESCE(s.sold, 0) DESC, p.id",
	domain.OrderByPriceAsc:  "p.price ASC, p.id",
	domain.OrderByPriceDesc: "p.price DESC, p.id",
	domain.OrderByNameAsc:   "p.name ASC, p.id",
	domain.OrderByNameDesc:  "p.name DESC, p.id",
}

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var s domain.ProductState
	if err := row.Scan(
		&s.ID,
		&s.CategoryID,
		&s.Name,
		&s.Description,
		&s.Price,
		&s.Stock,
		&s.Active,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return domain.RestoreProduct(s), nil
}

func collectProducts(rows pgx.Rows) ([]*domain.Product, error) {
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

// Create inserts a product with version 1.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (_ *domain.Product, err error) {
	query := `
		INSERT INTO products (category_id, name, description, price, stock, is_active, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "ProductRepository.Create", query)
	defer func() { end(err) }()

	s := p.State()
	err = r.pool.QueryRow(ctx, query,
		s.CategoryID,
		s.Name,
		s.Description,
		s.Price,
		s.Stock,
		s.Active,
		s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("category %d does not exist", s.CategoryID))
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}
	s.Version = 1
	return domain.RestoreProduct(s), nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (_ *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	ctx, end := database.TraceQuery(ctx, "ProductRepository.GetByID", query)
	defer func() { end(err) }()

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

// GetByIDs loads every existing product among ids in one round trip.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) (_ []*domain.Product, err error) {
	if len(ids) == 0 {
		return []*domain.Product{}, nil
	}
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = ANY($1) ORDER BY p.id`

	ctx, end := database.TraceQuery(ctx, "ProductRepository.GetByIDs", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	return collectProducts(rows)
}

// List returns products matching filter, capped at domain.MaxProductListSize.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) (_ []*domain.Product, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Name != "" {
		conditions = append(conditions, fmt.Sprintf("p.name ILIKE $%d", argIndex))
		args = append(args, "%"+filter.Name+"%")
		argIndex++
	}

	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price >= $%d", argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}

	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price <= $%d", argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := filter.OrderBy
	if !orderBy.Valid() {
		orderBy = domain.OrderByMostSold
	}
	join := ""
	if orderBy == domain.OrderByMostSold {
		join = soldJoin
	}

	limit := filter.Limit
	if limit <= 0 || limit > domain.MaxProductListSize {
		limit = domain.MaxProductListSize
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM products p%s
		%s
		ORDER BY %s
		LIMIT $%d`,
		productColumns, join, whereClause, productOrderClauses[orderBy], argIndex)

	ctx, end := database.TraceQuery(ctx, "ProductRepository.List", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collectProducts(rows)
}

// Update writes p guarded by its version. A missing row is NotFound, a
// changed version is a concurrency conflict.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (_ *domain.Product, err error) {
	query := `
		UPDATE products
		SET name = $3, description = $4, price = $5, stock = $6, is_active = $7,
			version = version + 1, updated_at = $8
		WHERE id = $1 AND version = $2
		RETURNING version`

	ctx, end := database.TraceQuery(ctx, "ProductRepository.Update", query)
	defer func() { end(err) }()

	s := p.State()
	var version int64
	err = r.pool.QueryRow(ctx, query,
		s.ID,
		s.Version,
		s.Name,
		s.Description,
		s.Price,
		s.Stock,
		s.Active,
		s.UpdatedAt,
	).Scan(&version)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update product: %w", err)
		}
		var exists bool
		if err = r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check product exists: %w", err)
		}
		if !exists {
			return nil, apperrors.NotFound("product", s.ID)
		}
		return nil, domain.ConcurrencyConflict("product", s.ID)
	}
	s.Version = version
	return domain.RestoreProduct(s), nil
}

// Delete removes a product that no order item references.
func (r *ProductRepository) Delete(ctx context.Context, id int64) (err error) {
	query := `DELETE FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "ProductRepository.Delete", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.Conflict(fmt.Sprintf("product %d is referenced by orders", id))
		}
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}
