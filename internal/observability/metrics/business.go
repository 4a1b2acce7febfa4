package metrics

import "time"

// RecordPageCrawled records a page the crawler processed to completion,
// tagged with whether it yielded an article.
func RecordPageCrawled(domain string, isArticle bool) {
	outcome := "skipped"
	if isArticle {
		outcome = "article"
	}
	PagesCrawledTotal.WithLabelValues(domain, outcome).Inc()
}

// RecordSkip records a skipped page by reason (e.g. "status_404",
// "low_article_score", "circuit_open").
func RecordSkip(reason string) {
	PagesSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordStrategyEscalation records a page being re-fetched via the
// headless renderer after a static fetch needed JS rendering.
func RecordStrategyEscalation() {
	StrategyEscalationsTotal.Inc()
}

// RecordCircuitBreakerTrip records a per-domain circuit breaker
// tripping open after repeated fetch failures.
func RecordCircuitBreakerTrip(domain string) {
	CircuitBreakerTripsTotal.WithLabelValues(domain).Inc()
}

// RecordFetchSuccess records a successful fetch's duration and size.
func RecordFetchSuccess(duration time.Duration, size int) {
	FetchAttemptsTotal.WithLabelValues("success").Inc()
	FetchDuration.Observe(duration.Seconds())
	FetchSize.Observe(float64(size))
}

// RecordFetchFailure records a failed fetch attempt.
func RecordFetchFailure(duration time.Duration) {
	FetchAttemptsTotal.WithLabelValues("failure").Inc()
	FetchDuration.Observe(duration.Seconds())
}

// RecordFetchCircuitOpen records a fetch skipped because its domain's
// circuit breaker was open.
func RecordFetchCircuitOpen() {
	FetchAttemptsTotal.WithLabelValues("circuit_open").Inc()
}
