// Package resilience provides reliability and fault tolerance patterns:
// per-domain circuit breakers and retry logic with exponential backoff
// and jitter, used to keep a crawl's sitemap/feed probes and per-domain
// fetches from cascading into repeated failures against an unreachable
// host.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.WebScraperConfig(domain))
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return fetchPage(ctx, url)
//	})
//
//	retryConfig := retry.FeedFetchConfig()
//	err := retry.WithBackoff(ctx, retryConfig, func() error {
//	    return fetchFeed(ctx, url)
//	})
package resilience
