package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "techstore_orders_created_total",
		Help: "Orders persisted in pending status.",
	})

	orderConfirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techstore_order_confirmations_total",
		Help: "Order confirmation attempts by outcome.",
	}, []string{"outcome"})

	concurrencyRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techstore_concurrency_retries_total",
		Help: "Operations retried after losing a race on a row.",
	}, []string{"operation"})

	reportCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techstore_report_cache_lookups_total",
		Help: "Report cache lookups by result.",
	}, []string{"report", "result"})
)

// Confirmation outcomes.
const (
	outcomeConfirmed         = "confirmed"
	outcomeInsufficientStock = "insufficient_stock"
	outcomeConflict          = "conflict"
	outcomeRejected          = "rejected"
	outcomeError             = "error"
)
