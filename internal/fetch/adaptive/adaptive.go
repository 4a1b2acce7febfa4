// Package adaptive implements the Adaptive Fetcher: a static-first
// fetch that, following the page classifier's recommended strategy,
// tries one of AMP, a mobile user agent, or headless rendering, then a
// headless fallback for thin pages, then registered strategy plugins,
// keeping whichever result has the most words.
package adaptive

import (
	"context"
	"errors"
	"net/url"
	"time"

	"pageforge/internal/classify"
	"pageforge/internal/domain/entity"
	"pageforge/internal/fetch/headless"
	"pageforge/internal/fetch/httpfetch"
	"pageforge/internal/plugin"
)

var errNoRenderer = errors.New("adaptive: no headless renderer configured")

// staticGoodEnoughWords is the body-word-count floor at which a
// static=recommended fetch is accepted without further escalation.
const staticGoodEnoughWords = 150

// mobileWinFactor is how much larger the mobile-UA raw word count
// must be than the initial fetch's to be accepted.
const mobileWinFactor = 1.3

// Options configures one adaptive fetch.
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	ProxyURL    string
	Auth        *httpfetch.Auth
	RateLimiter httpfetch.RateLimiter
	PageActions []headless.PageAction
}

// Fetcher runs the adaptive strategy chain. Render may be nil, in
// which case playwright/playwright_fallback branches are skipped.
type Fetcher struct {
	HTTP     *httpfetch.Client
	Render   headless.Renderer
	Registry *plugin.Registry
}

// New constructs a Fetcher backed by http and, optionally, a headless
// renderer. reg may be nil to use the process-wide default registry.
func New(http *httpfetch.Client, render headless.Renderer, reg *plugin.Registry) *Fetcher {
	if reg == nil {
		reg = plugin.Default()
	}
	return &Fetcher{HTTP: http, Render: render, Registry: reg}
}

// Fetch runs the adaptive strategy chain against rawURL and returns
// the best HTML found plus which strategy produced it. It fails only
// if the initial static fetch fails.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (entity.FetchResult, error) {
	initialHTML, err := f.staticFetch(ctx, rawURL, opts, opts.UserAgent)
	if err != nil {
		return entity.FetchResult{}, err
	}

	classification := classify.Classify(initialHTML, rawURL)
	best := initialHTML
	bestStrategy := string(entity.StrategyStaticBestEffort)
	bestWords := classify.RawWordCount(initialHTML)
	playwrightTried := false

	switch classification.RecommendedStrategy {
	case entity.StrategyStatic:
		if classification.Signals.BodyWordCount >= staticGoodEnoughWords {
			return entity.FetchResult{HTML: initialHTML, Classification: classification, StrategyUsed: string(entity.StrategyStatic)}, nil
		}

	case entity.StrategyAMP:
		if classification.Signals.AMPURL != "" {
			if ampHTML, err := f.staticFetch(ctx, classification.Signals.AMPURL, opts, opts.UserAgent); err == nil {
				if words := classify.RawWordCount(ampHTML); words > bestWords {
					best, bestStrategy, bestWords = ampHTML, string(entity.StrategyAMP), words
				}
			}
		}

	case entity.StrategyMobileUA:
		if mobileHTML, err := f.staticFetch(ctx, rawURL, opts, httpfetch.MobileUserAgent); err == nil {
			if words := classify.RawWordCount(mobileHTML); float64(words) > mobileWinFactor*float64(bestWords) {
				best, bestStrategy, bestWords = mobileHTML, string(entity.StrategyMobileUA), words
			}
		}

	case entity.StrategyPlaywright:
		playwrightTried = true
		if rendered, err := f.render(ctx, rawURL, opts); err == nil {
			if words := classify.RawWordCount(rendered); words > bestWords {
				best, bestStrategy, bestWords = rendered, string(entity.StrategyPlaywright), words
			}
		}
	}

	if !playwrightTried && classification.Signals.BodyWordCount < staticGoodEnoughWords {
		if rendered, err := f.render(ctx, rawURL, opts); err == nil {
			if words := classify.RawWordCount(rendered); words > bestWords {
				best, bestStrategy, bestWords = rendered, string(entity.StrategyPlaywrightFallback), words
			}
		}
	}

	for _, strat := range f.Registry.Strategies() {
		if !strat.CanHandle(rawURL, classification.Signals) {
			continue
		}
		html, err := strat.Fetch(rawURL, int(opts.Timeout.Seconds()))
		if err != nil {
			continue
		}
		if words := classify.RawWordCount(html); words > bestWords {
			best, bestStrategy, bestWords = html, strat.Name(), words
		}
	}

	return entity.FetchResult{
		HTML:           best,
		Classification: classify.Classify(best, rawURL),
		StrategyUsed:   bestStrategy,
	}, nil
}

func (f *Fetcher) staticFetch(ctx context.Context, rawURL string, opts Options, userAgent string) (string, error) {
	return f.HTTP.Get(ctx, rawURL, f.httpOptions(opts, userAgent))
}

func (f *Fetcher) httpOptions(opts Options, userAgent string) httpfetch.Options {
	ho := httpfetch.Options{
		Timeout:     opts.Timeout,
		UserAgent:   userAgent,
		Auth:        opts.Auth,
		RateLimiter: opts.RateLimiter,
	}
	if opts.ProxyURL != "" {
		if u, err := url.Parse(opts.ProxyURL); err == nil {
			ho.ProxyURL = u
		}
	}
	return ho
}

func (f *Fetcher) render(ctx context.Context, rawURL string, opts Options) (string, error) {
	if f.Render == nil {
		return "", errNoRenderer
	}
	timeout := opts.Timeout
	if timeout < 60*time.Second {
		timeout = 60 * time.Second
	}
	return f.Render.Render(ctx, rawURL, timeout, headless.RenderOptions{
		ProxyURL:    opts.ProxyURL,
		UserAgent:   opts.UserAgent,
		PageActions: opts.PageActions,
	})
}
