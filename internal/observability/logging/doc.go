// Package logging provides structured logging utilities with context
// propagation, wrapping the standard library's log/slog.
//
// Key features:
//   - JSON and text output formats
//   - Crawl run ID propagation
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "pageforge/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("crawl starting", slog.String("start_url", url))
//	}
//
//	func runCrawl(ctx context.Context) {
//	    logger := logging.WithRunID(ctx, slog.Default())
//	    logger.Info("processing round")
//	}
package logging
