// Package headless implements the Headless Renderer capability: a
// chromedp-backed page render that waits through four phases (load,
// network idle, visible-text threshold, collapsible expansion) before
// returning the rendered HTML. Callers depend only on the Renderer
// interface so the engine can be swapped or faked in tests.
package headless

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// minVisibleTokens is the visible-text threshold phase 3 waits for.
const minVisibleTokens = 50

// PageAction is a single best-effort page interaction (e.g. a click on
// a "load more" button) run after the four built-in wait phases.
type PageAction struct {
	Selector string
	Action   string // "click" | "scroll"
}

// RenderOptions configures one Render call.
type RenderOptions struct {
	ProxyURL     string
	UserAgent    string
	ExtraHeaders map[string]string
	PageActions  []PageAction
}

// Renderer is the narrow capability the adaptive fetcher depends on.
type Renderer interface {
	Render(ctx context.Context, rawURL string, timeout time.Duration, opts RenderOptions) (string, error)
}

// contextKey identifies a pooled browser context by the dimensions
// that change its fingerprint.
type contextKey struct {
	userAgent string
	proxy     string
	headers   string
}

func keyOf(opts RenderOptions) contextKey {
	headerParts := make([]string, 0, len(opts.ExtraHeaders))
	for k, v := range opts.ExtraHeaders {
		headerParts = append(headerParts, k+"="+v)
	}
	return contextKey{userAgent: opts.UserAgent, proxy: opts.ProxyURL, headers: strings.Join(headerParts, "&")}
}

type pooledContext struct {
	key        contextKey
	ctx        context.Context
	cancelAll  context.CancelFunc
}

// ChromeRenderer is the default Renderer, backed by a real headless
// Chrome via chromedp. A pooled allocator context is kept per
// (user_agent, proxy, extra_headers) fingerprint, bounded to
// maxContexts with LRU eviction, to amortize browser startup cost.
type ChromeRenderer struct {
	maxContexts int

	mu   sync.Mutex
	lru  *list.List
	elem map[contextKey]*list.Element
}

// NewChromeRenderer constructs a ChromeRenderer keeping at most
// maxContexts pooled browser contexts (default 2 when <= 0).
func NewChromeRenderer(maxContexts int) *ChromeRenderer {
	if maxContexts <= 0 {
		maxContexts = 2
	}
	return &ChromeRenderer{
		maxContexts: maxContexts,
		lru:         list.New(),
		elem:        make(map[contextKey]*list.Element),
	}
}

// Render navigates to rawURL and returns the rendered document's
// outer HTML after the four-phase wait. timeout is floored at 60s per
// the overall headless-render contract.
func (r *ChromeRenderer) Render(ctx context.Context, rawURL string, timeout time.Duration, opts RenderOptions) (string, error) {
	if timeout < 60*time.Second {
		timeout = 60 * time.Second
	}

	browserCtx := r.contextFor(ctx, opts)
	renderCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	tabCtx, cancelTab := chromedp.NewContext(renderCtx)
	defer cancelTab()

	var html string
	err := chromedp.Run(tabCtx,
		// Phase 1: navigate, tolerate a load-event timeout.
		chromedp.ActionFunc(func(c context.Context) error {
			navCtx, navCancel := context.WithTimeout(c, 15*time.Second)
			defer navCancel()
			_ = chromedp.Run(navCtx, chromedp.Navigate(rawURL))
			return nil
		}),
		// Phase 2: approximate network idle by polling the count of
		// loaded resource entries until it stops changing, up to 12s.
		chromedp.ActionFunc(func(c context.Context) error {
			return waitNetworkIdle(c, 12*time.Second)
		}),
		// Phase 3: wait up to 12s for visible body text to clear
		// the minimum token threshold.
		chromedp.ActionFunc(func(c context.Context) error {
			return waitVisibleTokens(c, minVisibleTokens, 12*time.Second)
		}),
		// Phase 4: best-effort expansion of collapsible containers.
		chromedp.ActionFunc(func(c context.Context) error {
			expandCollapsibles(c)
			idleCtx, idleCancel := context.WithTimeout(c, 6*time.Second)
			defer idleCancel()
			if err := waitNetworkIdle(idleCtx, 6*time.Second); err != nil {
				time.Sleep(1500 * time.Millisecond)
			}
			return nil
		}),
		applyPageActions(opts.PageActions),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("headless render %s: %w", rawURL, err)
	}
	if strings.TrimSpace(html) == "" {
		return "", fmt.Errorf("headless render %s: empty page", rawURL)
	}
	return html, nil
}

func applyPageActions(actions []PageAction) chromedp.Action {
	return chromedp.ActionFunc(func(c context.Context) error {
		for _, a := range actions {
			switch a.Action {
			case "click":
				_ = chromedp.Run(c, chromedp.Click(a.Selector, chromedp.ByQuery))
			case "scroll":
				_ = chromedp.Run(c, chromedp.ScrollIntoView(a.Selector, chromedp.ByQuery))
			}
		}
		return nil
	})
}

func waitNetworkIdle(ctx context.Context, max time.Duration) error {
	deadline := time.Now().Add(max)
	var lastCount, stable int
	for time.Now().Before(deadline) {
		var count int
		if err := chromedp.Run(ctx, chromedp.Evaluate(
			`performance.getEntriesByType('resource').length`, &count)); err != nil {
			return nil
		}
		if count == lastCount {
			stable++
			if stable >= 2 {
				return nil
			}
		} else {
			stable = 0
		}
		lastCount = count
		time.Sleep(300 * time.Millisecond)
	}
	return nil
}

func waitVisibleTokens(ctx context.Context, minTokens int, max time.Duration) error {
	deadline := time.Now().Add(max)
	script := `document.body ? document.body.innerText.trim().split(/\s+/).filter(Boolean).length : 0`
	for time.Now().Before(deadline) {
		var tokens int
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, &tokens)); err != nil {
			return nil
		}
		if tokens >= minTokens {
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	return nil
}

// collapsibleExpandScript best-effort-expands the container shapes the
// contract names: aria-expanded=false toggles, closed <details>,
// Angular Material/CDK expansion panels, and Bootstrap data-toggle
// collapsibles.
const collapsibleExpandScript = `
(function() {
	var selectors = [
		'[aria-expanded="false"]',
		'details:not([open])',
		'.mat-expansion-panel-header:not(.mat-expanded)',
		'[data-toggle="collapse"]',
		'[data-bs-toggle="collapse"]',
	];
	selectors.forEach(function(sel) {
		document.querySelectorAll(sel).forEach(function(el) {
			try {
				if (el.tagName === 'DETAILS') { el.open = true; return; }
				el.click();
			} catch (e) {}
		});
	});
})();
`

func expandCollapsibles(ctx context.Context) {
	var unused any
	_ = chromedp.Run(ctx, chromedp.Evaluate(collapsibleExpandScript, &unused))
}

// contextFor returns the pooled allocator context for opts'
// fingerprint, creating one and evicting the least-recently-used entry
// if the pool is at capacity.
func (r *ChromeRenderer) contextFor(parent context.Context, opts RenderOptions) context.Context {
	key := keyOf(opts)

	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.elem[key]; ok {
		r.lru.MoveToFront(el)
		return el.Value.(*pooledContext).ctx
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	pc := &pooledContext{key: key, ctx: allocCtx, cancelAll: cancel}
	el := r.lru.PushFront(pc)
	r.elem[key] = el

	if r.lru.Len() > r.maxContexts {
		oldest := r.lru.Back()
		r.lru.Remove(oldest)
		evicted := oldest.Value.(*pooledContext)
		delete(r.elem, evicted.key)
		evicted.cancelAll()
	}

	return allocCtx
}

// Close tears down every pooled browser context.
func (r *ChromeRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, el := range r.elem {
		el.Value.(*pooledContext).cancelAll()
	}
	r.lru.Init()
	r.elem = make(map[contextKey]*list.Element)
}
