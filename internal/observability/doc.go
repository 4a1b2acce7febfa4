// Package observability provides structured logging, Prometheus metrics,
// and OpenTelemetry tracing for the crawler.
//
// Subpackages:
//   - logging: structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry tracing
//
// Example usage:
//
//	import (
//	    "pageforge/internal/observability/logging"
//	    "pageforge/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("crawl starting")
//
//	    metrics.RecordPageCrawled("example.com", true)
//	}
package observability
