// Package metrics provides centralized Prometheus metrics for the crawler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Crawl metrics track the frontier and its outcomes.
var (
	// PagesCrawledTotal counts pages processed by domain and outcome.
	PagesCrawledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pages_crawled_total",
			Help: "Total number of pages processed by the crawler",
		},
		[]string{"domain", "outcome"}, // outcome: article, skipped
	)

	// PagesSkippedTotal counts skips by reason.
	PagesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pages_skipped_total",
			Help: "Total number of pages skipped during a crawl",
		},
		[]string{"reason"},
	)

	// StrategyEscalationsTotal counts static-to-headless escalations.
	StrategyEscalationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strategy_escalations_total",
			Help: "Total number of pages re-fetched via the headless renderer",
		},
	)

	// CircuitBreakerTripsTotal counts per-domain circuit breaker trips.
	CircuitBreakerTripsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of times a per-domain circuit breaker tripped open",
		},
		[]string{"domain"},
	)
)

// Fetch metrics track HTTP-level fetch performance.
var (
	// FetchAttemptsTotal counts fetch attempts by result.
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_attempts_total",
			Help: "Total number of page fetch attempts",
		},
		[]string{"result"}, // result: success, failure, circuit_open
	)

	// FetchDuration measures time to fetch a page.
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Time taken to fetch a page",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8, 25.6},
		},
	)

	// FetchSize measures fetched content size in bytes.
	FetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "fetch_size_bytes",
			Help: "Fetched page size in bytes",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400, 204800, 409600, 819200, 1638400,
			},
		},
	)
)
