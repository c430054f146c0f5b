package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_completed_total",
		Help: "Total number of checkouts that committed an order",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of aborted checkout attempts",
	}, []string{"reason"})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_latency_seconds",
		Help:    "Latency of checkout attempts",
		Buckets: prometheus.DefBuckets,
	})

	StockReservationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_reservations_failed_total",
		Help: "Total number of stock reservations rejected for insufficient stock",
	})

	RatingRecomputesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rating_recomputes_total",
		Help: "Total number of product rating recomputations",
	})

	ReviewEventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "review_events_consumed_total",
		Help: "Total number of review events consumed by the rating worker",
	}, []string{"outcome"})

	OrderCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_cache_requests_total",
		Help: "Order cache lookups by outcome",
	}, []string{"outcome"})

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
