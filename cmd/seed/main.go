// Command seed populates the configured store with demo categories and
// products through the catalog service, so seeded rows pass the same
// validation as API writes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"github.com/utafrali/techstore/internal/app"
	"github.com/utafrali/techstore/internal/config"
	"github.com/utafrali/techstore/internal/service"
	apperrors "github.com/utafrali/techstore/pkg/errors"
	"github.com/utafrali/techstore/pkg/logger"
)

type seedProduct struct {
	name  string
	price string
	stock int
}

var catalog = []struct {
	category    string
	description string
	products    []seedProduct
}{
	{"Laptops", "Portable computers", []seedProduct{
		{"UltraBook 14", "1299.00", 12},
		{"Workstation 16", "2499.00", 4},
		{"Student 13", "649.90", 30},
	}},
	{"Peripherals", "Keyboards, mice and docks", []seedProduct{
		{"Mechanical Keyboard", "129.00", 50},
		{"Wireless Mouse", "39.90", 120},
		{"USB-C Dock", "189.00", 0},
	}},
	{"Audio", "Headphones and speakers", []seedProduct{
		{"Noise Cancelling Headset", "299.00", 25},
		{"Desk Speakers", "149.00", 8},
	}},
}

func main() {
	if err := run(); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Seeding never publishes events.
	cfg.KafkaEnabled = false

	log := logger.New("techstore-seed", cfg.LogLevel)
	ctx := context.Background()

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer func() { _ = application.Shutdown() }()

	var categories, products int
	for _, c := range catalog {
		cat, err := application.Catalog.CreateCategory(ctx, c.category, c.description)
		if errors.Is(err, apperrors.ErrConflict) {
			log.Info("category already seeded, skipping", slog.String("category", c.category))
			continue
		}
		if err != nil {
			return fmt.Errorf("create category %q: %w", c.category, err)
		}
		categories++
		for _, p := range c.products {
			_, err := application.Catalog.CreateProduct(ctx, service.CreateProductInput{
				Name:       p.name,
				Price:      decimal.RequireFromString(p.price),
				Stock:      p.stock,
				CategoryID: cat.ID,
			})
			if err != nil {
				return fmt.Errorf("create product %q: %w", p.name, err)
			}
			products++
		}
	}

	log.Info("seed complete",
		slog.Int("categories", categories),
		slog.Int("products", products),
	)
	return nil
}
