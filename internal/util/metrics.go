package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_recorded_total",
		Help: "Total number of sales recorded",
	}, []string{"method"})

	SalesAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_amount_total",
		Help: "Sum of recorded sale totals",
	}, []string{"method"})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_failed_total",
		Help: "Total number of sale finalizations that failed",
	}, []string{"reason"})

	SaleFinalizeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sale_finalize_latency_seconds",
		Help:    "Latency of sale finalization including simulated network delay",
		Buckets: prometheus.DefBuckets,
	})

	StockOversoldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_stock_oversold_total",
		Help: "Sale lines that sold more than the stock on hand",
	})

	ProductStockLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pos_product_stock_level",
		Help: "Current stock per product as last seen by the stock alert worker",
	}, []string{"product_id"})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_low_stock_alerts_total",
		Help: "Total number of low stock alerts raised",
	})

	CashoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_cashouts_total",
		Help: "Total number of cash drawer reconciliations",
	})

	CashoutDifference = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_cashout_difference",
		Help:    "Counted minus expected cash at reconciliation",
		Buckets: []float64{-500, -100, -20, -5, -1, 0, 1, 5, 20, 100, 500},
	})

	CashoutAuditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_cashout_audits_total",
		Help: "Reconciled cash drawers seen by the audit worker",
	}, []string{"outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_active_sessions",
		Help: "Number of logged in sessions",
	})

	CatalogChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_catalog_changes_total",
		Help: "Catalog create, update and delete operations",
	}, []string{"entity", "op"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_events_publish_failed_total",
		Help: "Events that could not be published",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
