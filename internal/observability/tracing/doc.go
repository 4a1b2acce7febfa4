// Package tracing provides an OpenTelemetry tracer for the crawler, used
// to wrap each crawl round in a span so a page's fetch/extract path can
// be correlated with the round it ran in.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "crawl-round")
//	defer span.End()
package tracing
