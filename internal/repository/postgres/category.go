package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/techstore/internal/domain"
	"github.com/utafrali/techstore/pkg/database"
	apperrors "github.com/utafrali/techstore/pkg/errors"
)

// CategoryRepository implements repository.CategoryRepository using PostgreSQL.
type CategoryRepository struct {
	pool database.DBTX
}

// NewCategoryRepository creates a new PostgreSQL-backed category repository.
func NewCategoryRepository(pool database.DBTX) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// Create inserts a category and returns it with its generated ID. Category
// names are unique; a duplicate is a Conflict.
func (r *CategoryRepository) Create(ctx context.Context, c *domain.Category) (_ *domain.Category, err error) {
	query := `
		INSERT INTO categories (name, description, is_active, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "CategoryRepository.Create", query)
	defer func() { end(err) }()

	created := *c
	if err = r.pool.QueryRow(ctx, query, c.Name, c.Description, c.IsActive, c.CreatedAt).Scan(&created.ID); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.Conflict(fmt.Sprintf("category %q already exists", c.Name))
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return &created, nil
}

// GetByID retrieves a category by its ID.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (_ *domain.Category, err error) {
	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM categories
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "CategoryRepository.GetByID", query)
	defer func() { end(err) }()

	var c domain.Category
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("category", id)
		}
		return nil, fmt.Errorf("get category by id: %w", err)
	}
	return &c, nil
}

// List returns every category ordered by name.
func (r *CategoryRepository) List(ctx context.Context) (_ []domain.Category, err error) {
	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM categories
		ORDER BY name, id`

	ctx, end := database.TraceQuery(ctx, "CategoryRepository.List", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err = rows.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, nil
}

// Update persists name, description and active flag.
func (r *CategoryRepository) Update(ctx context.Context, c *domain.Category) (err error) {
	query := `
		UPDATE categories
		SET name = $2, description = $3, is_active = $4, updated_at = $5
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "CategoryRepository.Update", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, c.ID, c.Name, c.Description, c.IsActive, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("category", c.ID)
	}
	return nil
}
