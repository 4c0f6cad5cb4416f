package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/techstore/internal/service"
	"github.com/utafrali/techstore/pkg/health"
	"github.com/utafrali/techstore/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the HTTP layer.
const ServiceName = "techstore"

// Services groups the application services exposed over HTTP.
type Services struct {
	Catalog *service.CatalogService
	Orders  *service.OrderService
	Reports *service.ReportService
}

// RouterConfig configures the operational endpoints.
type RouterConfig struct {
	Registerer      prometheus.Registerer
	Gatherer        prometheus.Gatherer
	PprofAllowedIPs []string
	ReportMaxAge    time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
}

// NewRouter creates a chi router with all techstore routes registered.
func NewRouter(svc Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName, "/health", "/metrics", "/debug/pprof"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.NewHTTPMetrics(cfg.Registerer, ServiceName).Middleware)

	// Operational endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	middleware.RegisterPprof(r, cfg.PprofAllowedIPs, logger)

	categoryHandler := NewCategoryHandler(svc.Catalog, logger)
	productHandler := NewProductHandler(svc.Catalog, logger)
	orderHandler := NewOrderHandler(svc.Orders, logger)
	reportHandler := NewReportHandler(svc.Reports, logger)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			r.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger).Middleware)
		}
		r.Use(ContentTypeJSON)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.ListCategories)
			r.Post("/", categoryHandler.CreateCategory)
			r.Get("/{id}", categoryHandler.GetCategory)
			r.Put("/{id}/activate", categoryHandler.ActivateCategory)
			r.Put("/{id}/deactivate", categoryHandler.DeactivateCategory)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Post("/", productHandler.CreateProduct)
			r.Get("/{id}", productHandler.GetProduct)
			r.Delete("/{id}", productHandler.DeleteProduct)
			r.Get("/{id}/stock", productHandler.GetStock)
			r.Put("/{id}/stock/increase", productHandler.IncreaseStock)
			r.Put("/{id}/stock/decrease", productHandler.DecreaseStock)
			r.Put("/{id}/price", productHandler.UpdatePrice)
			r.Put("/{id}/activate", productHandler.ActivateProduct)
			r.Put("/{id}/deactivate", productHandler.DeactivateProduct)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.CreateOrder)
			r.Get("/{id}", orderHandler.GetOrder)
			r.Put("/{id}/confirm", orderHandler.ConfirmOrder)
			r.Put("/{id}/cancel", orderHandler.CancelOrder)
		})

		r.Route("/reports", func(r chi.Router) {
			if cfg.ReportMaxAge > 0 {
				r.Use(middleware.CacheControl(cfg.ReportMaxAge))
			}
			r.Get("/sales-by-product", reportHandler.SalesByProduct)
			r.Get("/sales-by-category", reportHandler.SalesByCategory)
			r.Get("/product-sales-timeline/{productId}", reportHandler.ProductSalesTimeline)
			r.Get("/sales-by-period", reportHandler.SalesByPeriod)
		})
	})

	return r
}
