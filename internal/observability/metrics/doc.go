// Package metrics provides Prometheus metrics for the crawl pipeline:
// pages crawled, fetch attempts and latency, strategy escalations, and
// skip counts by reason.
//
// All metrics are automatically registered with the Prometheus default
// registry.
//
// Example usage:
//
//	import "pageforge/internal/observability/metrics"
//
//	func crawlPage(domain string) {
//	    start := time.Now()
//	    // ... fetch and extract ...
//	    metrics.RecordPageCrawled(domain, true)
//	    metrics.RecordFetchSuccess(time.Since(start), len(body))
//	}
package metrics
