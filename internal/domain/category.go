package domain

import (
	"strings"
	"time"

	apperrors "github.com/utafrali/techstore/pkg/errors"
)

// Category groups products. New categories are active.
type Category struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// NewCategory validates name and returns an unsaved, active category.
func NewCategory(name, description string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("category name is required")
	}
	return &Category{
		Name:        name,
		Description: strings.TrimSpace(description),
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (c *Category) Activate() {
	c.IsActive = true
	c.touch()
}

func (c *Category) Deactivate() {
	c.IsActive = false
	c.touch()
}

func (c *Category) touch() {
	now := time.Now().UTC()
	c.UpdatedAt = &now
}
