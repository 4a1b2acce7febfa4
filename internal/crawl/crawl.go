// Package crawl implements the bounded BFS Crawler: seeded from
// sitemaps, feed probes, and the start URL, it walks a confined domain
// set, extracting ArticleRecords and recording skips along the way.
package crawl

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"

	"pageforge/internal/detect"
	"pageforge/internal/domain/entity"
	"pageforge/internal/extract/blocks"
	"pageforge/internal/extract/content"
	"pageforge/internal/extract/markdown"
	"pageforge/internal/extract/metadata"
	"pageforge/internal/feed"
	"pageforge/internal/fetch/headless"
	"pageforge/internal/fetch/httpfetch"
	"pageforge/internal/fetch/ratelimit"
	"pageforge/internal/heuristics"
	"pageforge/internal/normalize"
	"pageforge/internal/observability/logging"
	"pageforge/internal/observability/metrics"
	"pageforge/internal/observability/tracing"
	"pageforge/internal/resilience/circuitbreaker"
	"pageforge/internal/resilience/retry"
)

// RenderMode controls when a crawled page is escalated to the headless
// renderer.
type RenderMode string

const (
	RenderAuto   RenderMode = "auto"
	RenderAlways RenderMode = "always"
	RenderNever  RenderMode = "never"
)

var hardExcludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/_next/static/`),
	regexp.MustCompile(`(?i)/cdn-cgi/`),
	regexp.MustCompile(`(?i)/wp-content/uploads/`),
	regexp.MustCompile(`(?i)/__webpack`),
	regexp.MustCompile(`(?i)/wp-json/`),
	regexp.MustCompile(`(?i)/wp-admin/`),
	regexp.MustCompile(`(?i)/xmlrpc\.php`),
	regexp.MustCompile(`(?i)\.amp$`),
}

var sitemapProbePaths = []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemap-index.xml"}

var feedProbePaths = []string{
	"/feed.xml", "/feed", "/rss.xml", "/rss",
	"/blog/feed", "/blog/feed.xml", "/blog/rss", "/blog/rss.xml",
}

// Priority bands, highest first. Sitemap and feed entries jump the BFS
// queue ahead of ordinary discovered links; rel=next pages jump ahead
// of plain <a href> discovery at the same depth.
const (
	prioritySitemapIndex = 9
	prioritySitemap      = 8
	priorityFeed         = 7
	priorityStart        = 5
	priorityRelNext      = 4
	priorityPlaywright   = 3
	priorityLink         = 0
)

// SeenStore persists the normalized-URL seen set across resumed runs.
type SeenStore interface {
	Load() ([]string, error)
	Append(normalizedURL string) error
}

// ArticleIndexEntry is the per-article summary record persisted to the
// article index.
type ArticleIndexEntry struct {
	Slug                 string   `json:"slug"`
	URL                  string   `json:"url"`
	Title                string   `json:"title"`
	Author               string   `json:"author,omitempty"`
	PublishedAt          string   `json:"published_at,omitempty"`
	Summary              string   `json:"summary,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
	WordCount            int      `json:"word_count"`
	ReadingTimeMinutes   int      `json:"reading_time_minutes"`
	ExtractionMethodUsed string   `json:"extraction_method_used"`
}

// ArticleIndexStore persists ArticleIndexEntry records; LoadURLs backs
// the resume merge.
type ArticleIndexStore interface {
	LoadURLs() ([]string, error)
	Append(ArticleIndexEntry) error
}

// SkipEntry is one line of the skip log.
type SkipEntry struct {
	URL       string    `json:"url"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// SkipLogger records skipped URLs. Clear truncates the log; called at
// the start of a non-resumed crawl.
type SkipLogger interface {
	Log(SkipEntry) error
	Clear() error
}

// ConditionalCache stores the ETag/Last-Modified pair seen for a
// normalized URL so a later crawl can issue a conditional GET.
type ConditionalCache interface {
	Get(normalizedURL string) (etag, lastModified string, ok bool)
	Set(normalizedURL, etag, lastModified string)
}

// Options configures one crawl run.
type Options struct {
	StartURL        string
	MaxPages        int
	MaxDepth        int
	RenderJS        RenderMode
	IncludeRegex    *regexp.Regexp
	ExcludeRegex    *regexp.Regexp
	AllowSubdomains bool
	ExtraDomains    []string
	Resume          bool
	Headers         map[string]string
	Cookies         []*http.Cookie
	Delta           bool
	PageActions     []headless.PageAction

	ConcurrentRequests int           // default 8
	PerDomainCap       int           // default 4
	RequestDelay       time.Duration // default 1s, base per-domain throttle

	UserAgent string
	Timeout   time.Duration
}

// Summary is the crawl's closing tally.
type Summary struct {
	Crawled int
	Skipped int
	Reason  string
}

// Crawler runs a bounded BFS crawl. The zero value is not usable;
// construct with New. Persistence handles may all be left nil, in
// which case resume/delta/skip-logging are simply no-ops.
type Crawler struct {
	HTTP   *httpfetch.Client
	Render headless.Renderer
	Logger *slog.Logger

	Seen         SeenStore
	ArticleIndex ArticleIndexStore
	SkipLog      SkipLogger
	Cache        ConditionalCache

	mu          sync.Mutex
	seenSet     map[string]struct{}
	pagesQueued int

	domainSemMu sync.Mutex
	domainSem   map[string]chan struct{}

	breakerMu sync.Mutex
	breakers  map[string]*circuitbreaker.CircuitBreaker

	articlesMu sync.Mutex
	articles   []entity.ArticleRecord

	skippedCount int
}

// New constructs a Crawler backed by httpClient and, optionally, a
// headless renderer.
func New(httpClient *httpfetch.Client, render headless.Renderer) *Crawler {
	return &Crawler{
		HTTP:      httpClient,
		Render:    render,
		Logger:    logging.NewLogger(),
		seenSet:   make(map[string]struct{}),
		domainSem: make(map[string]chan struct{}),
		breakers:  make(map[string]*circuitbreaker.CircuitBreaker),
	}
}

// domainBreaker returns the lazily-created circuit breaker guarding
// fetches against domain, tripping after repeated consecutive failures
// so a single unreachable host can't stall the frontier's shared
// concurrency budget.
func (c *Crawler) domainBreaker(domain string) *circuitbreaker.CircuitBreaker {
	c.breakerMu.Lock()
	defer c.breakerMu.Unlock()
	cb, ok := c.breakers[domain]
	if !ok {
		cfg := circuitbreaker.WebScraperConfig(domain)
		cfg.OnOpen = func(name string) { metrics.RecordCircuitBreakerTrip(name) }
		cb = circuitbreaker.New(cfg)
		c.breakers[domain] = cb
	}
	return cb
}

type task struct {
	url         string
	depth       int
	priority    int
	viaHeadless bool
	seq         int
}

// Run drives the crawl to completion and returns every extracted
// article plus a closing Summary.
func (c *Crawler) Run(ctx context.Context, opts Options) (Summary, []entity.ArticleRecord, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 200
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 3
	}
	if opts.ConcurrentRequests <= 0 {
		opts.ConcurrentRequests = 8
	}
	if opts.PerDomainCap <= 0 {
		opts.PerDomainCap = 4
	}
	if opts.RequestDelay <= 0 {
		opts.RequestDelay = time.Second
	}
	if opts.RenderJS == "" {
		opts.RenderJS = RenderAuto
	}

	start, err := url.Parse(opts.StartURL)
	if err != nil || (start.Scheme != "http" && start.Scheme != "https") {
		return Summary{}, nil, fmt.Errorf("crawl: invalid start_url %q", opts.StartURL)
	}

	allowed := map[string]struct{}{strings.ToLower(start.Host): {}}
	for _, d := range opts.ExtraDomains {
		allowed[strings.ToLower(d)] = struct{}{}
	}

	if opts.Resume {
		if c.Seen != nil {
			if urls, err := c.Seen.Load(); err == nil {
				for _, u := range urls {
					c.seenSet[normalize.Normalize(u)] = struct{}{}
				}
			}
		}
		if c.ArticleIndex != nil {
			if urls, err := c.ArticleIndex.LoadURLs(); err == nil {
				for _, u := range urls {
					c.seenSet[normalize.Normalize(u)] = struct{}{}
				}
			}
		}
	} else if c.SkipLog != nil {
		_ = c.SkipLog.Clear()
	}

	throttle, _ := ratelimit.New(1.0 / opts.RequestDelay.Seconds())

	pq := &priorityQueue{}
	seq := 0
	enqueue := func(rawURL string, depth int, priority int, viaHeadless bool) bool {
		norm := normalize.Normalize(rawURL)
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.seenSet[norm]; ok {
			return false
		}
		if c.pagesQueued >= opts.MaxPages {
			return false
		}
		c.seenSet[norm] = struct{}{}
		c.pagesQueued++
		if c.Seen != nil {
			_ = c.Seen.Append(norm)
		}
		seq++
		pq.push(task{url: rawURL, depth: depth, priority: priority, viaHeadless: viaHeadless, seq: seq})
		return true
	}
	popAll := func() []task {
		c.mu.Lock()
		defer c.mu.Unlock()
		var all []task
		for {
			t, ok := pq.pop()
			if !ok {
				break
			}
			all = append(all, t)
		}
		return all
	}

	for _, p := range sitemapProbePaths {
		u := *start
		u.Path = p
		u.RawQuery = ""
		enqueue(u.String(), 0, prioritySitemapIndex, false)
	}
	for _, p := range feedProbePaths {
		u := *start
		u.Path = p
		u.RawQuery = ""
		enqueue(u.String(), 0, priorityFeed, false)
	}
	enqueue(start.String(), 0, priorityStart, false)

	globalSem := make(chan struct{}, opts.ConcurrentRequests)

	// Process the frontier in rounds: every task popped in a round runs
	// concurrently (bounded by globalSem and the per-domain channel);
	// the round barrier lets us safely harvest newly discovered links
	// into the next round without a task ever observing a half-updated
	// queue.
	for roundNum := 1; ; roundNum++ {
		round := popAll()
		if len(round) == 0 {
			break
		}
		roundCtx, span := tracing.GetTracer().Start(ctx, "crawl-round")
		c.Logger.Debug("crawl round starting", slog.Int("round", roundNum), slog.Int("tasks", len(round)))

		var wg sync.WaitGroup
		for _, t := range round {
			t := t
			domainCh := c.domainChannel(normalize.Domain(t.url), opts.PerDomainCap)
			wg.Add(1)
			globalSem <- struct{}{}
			domainCh <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-globalSem }()
				defer func() { <-domainCh }()

				if throttle != nil {
					_ = throttle.Wait(roundCtx, t.url)
				}

				discovered := c.processTask(roundCtx, t, opts, allowed)
				for _, d := range discovered {
					enqueue(d.url, d.depth, d.priority, d.viaHeadless)
				}
			}()
		}
		wg.Wait()
		span.End()
		c.Logger.Debug("crawl round finished", slog.Int("round", roundNum), slog.Int("queued_next", c.pagesQueued))
	}

	c.articlesMu.Lock()
	articles := append([]entity.ArticleRecord{}, c.articles...)
	c.articlesMu.Unlock()

	return Summary{Crawled: len(articles), Skipped: c.skippedCount, Reason: "finished"}, articles, nil
}

type discoveredLink struct {
	url         string
	depth       int
	priority    int
	viaHeadless bool
}

// processTask fetches one task's URL, classifies/parses/scores/extracts
// it, and returns the links it discovered for enqueueing. It never
// returns an error; every failure becomes a recorded skip.
func (c *Crawler) processTask(ctx context.Context, t task, opts Options, allowed map[string]struct{}) []discoveredLink {
	if strings.Contains(t.url, "sitemap") && (t.priority == prioritySitemapIndex || t.priority == prioritySitemap) {
		return c.processSitemap(ctx, t, opts)
	}
	if t.priority == priorityFeed {
		return c.processFeed(ctx, t, opts)
	}

	fetchOpts := httpfetch.Options{Timeout: opts.Timeout, UserAgent: opts.UserAgent}
	if len(opts.Headers) > 0 || len(opts.Cookies) > 0 {
		fetchOpts.Auth = &httpfetch.Auth{Headers: opts.Headers, Cookies: opts.Cookies}
	}
	if opts.Delta && c.Cache != nil {
		if etag, lastMod, ok := c.Cache.Get(normalize.Normalize(t.url)); ok {
			fetchOpts.ConditionalHeaders = map[string]string{}
			if etag != "" {
				fetchOpts.ConditionalHeaders["If-None-Match"] = etag
			}
			if lastMod != "" {
				fetchOpts.ConditionalHeaders["If-Modified-Since"] = lastMod
			}
		}
	}

	var html string
	var status int
	var header http.Header

	if t.viaHeadless && c.Render != nil {
		rendered, err := c.Render.Render(ctx, t.url, maxDuration(opts.Timeout, 60*time.Second), headless.RenderOptions{
			UserAgent:   opts.UserAgent,
			PageActions: opts.PageActions,
		})
		if err != nil {
			c.recordSkip(t.url, "headless_render_failed: "+err.Error())
			return nil
		}
		html, status = rendered, 200
	} else {
		cb := c.domainBreaker(normalize.Domain(t.url))
		fetchStart := time.Now()
		result, err := cb.Execute(func() (interface{}, error) {
			return c.HTTP.Fetch(ctx, t.url, fetchOpts)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				metrics.RecordFetchCircuitOpen()
				c.recordSkip(t.url, "circuit_open")
				return nil
			}
			metrics.RecordFetchFailure(time.Since(fetchStart))
			if fe, ok := err.(*entity.FetchError); ok && fe.Status == http.StatusNotModified {
				c.recordSkip(t.url, "not_modified_304")
				return nil
			}
			c.recordSkip(t.url, "fetch_error: "+err.Error())
			return nil
		}
		resp := result.(httpfetch.Response)
		metrics.RecordFetchSuccess(time.Since(fetchStart), len(resp.Body))
		html, status, header = resp.Body, resp.StatusCode, resp.Header
	}

	if status != 200 {
		c.recordSkip(t.url, fmt.Sprintf("status_%d", status))
		return nil
	}
	if header != nil {
		ct := header.Get("Content-Type")
		if ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
			c.recordSkip(t.url, "non_html_content_type")
			return nil
		}
		if opts.Delta && c.Cache != nil {
			etag := header.Get("ETag")
			lastMod := header.Get("Last-Modified")
			if etag != "" || lastMod != "" {
				c.Cache.Set(normalize.Normalize(t.url), etag, lastMod)
			}
		}
	}

	if !t.viaHeadless && opts.RenderJS != RenderNever && (opts.RenderJS == RenderAlways || heuristics.NeedsJS(html, 150)) {
		metrics.RecordStrategyEscalation()
		return []discoveredLink{{url: t.url, depth: t.depth, priority: priorityPlaywright, viaHeadless: true}}
	}

	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))
	score := heuristics.ArticleScore(t.url, html, doc)

	if score >= heuristics.ArticleScoreThreshold {
		if opts.IncludeRegex == nil || opts.IncludeRegex.MatchString(t.url) {
			article := c.extractArticle(html, t.url, strategyFor(t.viaHeadless))
			if article.WordCount >= 10 {
				metrics.RecordPageCrawled(normalize.Domain(t.url), true)
				c.articlesMu.Lock()
				c.articles = append(c.articles, article)
				c.articlesMu.Unlock()
				if c.ArticleIndex != nil {
					_ = c.ArticleIndex.Append(ArticleIndexEntry{
						Slug:                 normalize.Slug(t.url, 100),
						URL:                  article.URL,
						Title:                article.Title,
						Author:               article.Author,
						PublishedAt:          article.PublishedAt,
						Summary:              article.Summary,
						Tags:                 article.Tags,
						WordCount:            article.WordCount,
						ReadingTimeMinutes:   article.ReadingTimeMinutes,
						ExtractionMethodUsed: article.ExtractionMethodUsed,
					})
				}
			} else {
				c.recordSkip(t.url, "extracted_too_short")
			}
		} else {
			c.recordSkip(t.url, "include_regex_mismatch")
		}
	} else {
		c.recordSkip(t.url, fmt.Sprintf("low_article_score (%d)", score))
	}

	if t.depth >= opts.MaxDepth {
		return nil
	}

	var links []discoveredLink
	if nextHref, ok := doc.Find(`link[rel=next]`).Attr("href"); ok {
		if abs, err := resolve(t.url, nextHref); err == nil && c.crawlable(abs, allowed, opts) {
			links = append(links, discoveredLink{url: abs, depth: t.depth + 1, priority: priorityRelNext})
		}
	}

	doc.Find(`link[rel=alternate]`).Each(func(_ int, s *goquery.Selection) {
		ltype := strings.ToLower(s.AttrOr("type", ""))
		href, ok := s.Attr("href")
		if !ok || (!strings.Contains(ltype, "rss") && !strings.Contains(ltype, "atom")) {
			return
		}
		if abs, err := resolve(t.url, href); err == nil && c.crawlable(abs, allowed, opts) {
			links = append(links, discoveredLink{url: abs, depth: t.depth + 1, priority: priorityFeed})
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		abs, err := resolve(t.url, href)
		if err != nil {
			return
		}
		if !c.crawlable(abs, allowed, opts) {
			return
		}
		links = append(links, discoveredLink{url: abs, depth: t.depth + 1, priority: priorityLink})
	})

	return links
}

func strategyFor(viaHeadless bool) string {
	if viaHeadless {
		return string(entity.StrategyPlaywright)
	}
	return string(entity.StrategyStatic)
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// crawlable applies the §4.16 URL filter: scheme, allowed host,
// non-asset, hard-exclude regexes, and the caller's exclude regex.
func (c *Crawler) crawlable(rawURL string, allowed map[string]struct{}, opts Options) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Host)
	if _, ok := allowed[host]; !ok {
		if !opts.AllowSubdomains || !isSubdomainOfAny(host, allowed) {
			return false
		}
	}

	if normalize.IsAsset(rawURL) {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, pat := range hardExcludePatterns {
		if pat.MatchString(path) {
			return false
		}
	}

	if opts.ExcludeRegex != nil && opts.ExcludeRegex.MatchString(rawURL) {
		return false
	}
	return true
}

func isSubdomainOfAny(host string, allowed map[string]struct{}) bool {
	for a := range allowed {
		if strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

func (c *Crawler) domainChannel(domain string, capacity int) chan struct{} {
	c.domainSemMu.Lock()
	defer c.domainSemMu.Unlock()
	ch, ok := c.domainSem[domain]
	if !ok {
		ch = make(chan struct{}, capacity)
		c.domainSem[domain] = ch
	}
	return ch
}

func (c *Crawler) recordSkip(rawURL, reason string) {
	c.mu.Lock()
	c.skippedCount++
	c.mu.Unlock()
	metrics.RecordSkip(reason)
	metrics.RecordPageCrawled(normalize.Domain(rawURL), false)
	if c.SkipLog != nil {
		_ = c.SkipLog.Log(SkipEntry{URL: rawURL, Reason: reason, Timestamp: time.Now()})
	}
}

// processSitemap fetches a sitemap document and, depending on whether
// it is an index or a leaf, either recurses into child sitemaps or
// enqueues its <url><loc> entries. Fetch failures are swallowed —
// a missing sitemap is expected, not fatal.
func (c *Crawler) processSitemap(ctx context.Context, t task, opts Options) []discoveredLink {
	var body string
	err := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
		b, ferr := c.HTTP.Get(ctx, t.url, httpfetch.Options{Timeout: opts.Timeout, UserAgent: opts.UserAgent})
		body = b
		return ferr
	})
	if err != nil {
		return nil
	}
	locs, isIndex := parseSitemap(body)
	var out []discoveredLink
	for _, loc := range locs {
		if isIndex {
			out = append(out, discoveredLink{url: loc, depth: 0, priority: prioritySitemap})
		} else {
			out = append(out, discoveredLink{url: loc, depth: 0, priority: priorityStart})
		}
	}
	return out
}

// processFeed fetches a feed probe path and enqueues its entry URLs at
// start-page priority; a 404/parse failure is swallowed.
func (c *Crawler) processFeed(ctx context.Context, t task, opts Options) []discoveredLink {
	var body string
	err := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
		b, ferr := c.HTTP.Get(ctx, t.url, httpfetch.Options{Timeout: opts.Timeout, UserAgent: opts.UserAgent})
		body = b
		return ferr
	})
	if err != nil {
		return nil
	}
	entries := feed.Parse(body, t.url)
	out := make([]discoveredLink, 0, len(entries))
	for _, e := range entries {
		out = append(out, discoveredLink{url: e.URL, depth: 0, priority: priorityStart})
	}
	return out
}

// parseSitemap extracts every <loc> URL from a sitemap document and
// reports whether the root element was a sitemapindex (recurse) versus
// a urlset (leaf, enqueue directly).
func parseSitemap(body string) (locs []string, isIndex bool) {
	dec := xml.NewDecoder(strings.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if se, ok := tok.(xml.StartElement); ok {
			isIndex = strings.Contains(strings.ToLower(se.Name.Local), "sitemapindex")
			break
		}
	}

	locRe := regexp.MustCompile(`(?is)<loc>\s*([^<\s]+)\s*</loc>`)
	for _, m := range locRe.FindAllStringSubmatch(body, -1) {
		locs = append(locs, strings.TrimSpace(m[1]))
	}
	return locs, isIndex
}

// extractArticle runs the shared extraction pipeline — the same
// metadata/content/block/markdown/detect/score wiring the Query API
// uses — and tags the result with strategyUsed.
func (c *Crawler) extractArticle(html, pageURL, strategyUsed string) entity.ArticleRecord {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))

	meta := metadata.Extract(html, pageURL)
	extracted := content.ExtractMainContent(html, pageURL, nil)
	contentBlocks := blocks.Parse(extracted.HTML, pageURL)
	contentText := plainText(extracted.HTML)
	contentMarkdown := markdown.RenderArticle(meta.Title, meta.Author, meta.PublishedAt, meta.Tags, meta.Summary, markdown.RenderBody(extracted.HTML))

	blockResult := detect.DetectBlock(html, pageURL, 200)
	score := heuristics.ArticleScore(pageURL, html, doc)

	wordCount := extracted.WordCount
	if wordCount == 0 {
		wordCount = len(strings.Fields(contentText))
	}

	images := append([]entity.Image{}, meta.Images...)
	images = append(images, content.ExtractImages(extracted.HTML, pageURL)...)

	canonical := meta.CanonicalURL
	if canonical == "" {
		canonical = pageURL
	}

	article := entity.ArticleRecord{
		URL:                  pageURL,
		CanonicalURL:         canonical,
		Title:                meta.Title,
		Author:               meta.Author,
		PublishedAt:          meta.PublishedAt,
		UpdatedAt:            meta.UpdatedAt,
		SiteName:             meta.SiteName,
		Language:             meta.Language,
		Summary:              meta.Summary,
		Tags:                 meta.Tags,
		ContentMarkdown:      contentMarkdown,
		ContentText:          contentText,
		ContentBlocks:        contentBlocks,
		Images:               images,
		Links:                content.ExtractLinks(html, pageURL, normalize.Domain(pageURL)),
		WordCount:            wordCount,
		ExtractionMethodUsed: string(extracted.Method),
		ArticleScore:         score,
		RawMetadata:          meta.RawMetadata,
		IsBlocked:            blockResult.IsBlocked,
		BlockType:            blockResult.BlockType,
		BlockReason:          blockResult.BlockReason,
		FetchStrategy:        strategyUsed,
		ScrapedAt:            time.Now().UTC(),
	}
	article.Finalize()
	return article
}

func plainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}

// priorityQueue is a simple insertion-ordered max-priority queue: the
// highest-priority task wins, ties broken by arrival order (FIFO),
// giving BFS-like traversal within a priority band.
type priorityQueue struct {
	items []task
}

func (q *priorityQueue) push(t task) {
	q.items = append(q.items, t)
}

func (q *priorityQueue) pop() (task, bool) {
	if len(q.items) == 0 {
		return task{}, false
	}
	best := 0
	for i := 1; i < len(q.items); i++ {
		if q.items[i].priority > q.items[best].priority ||
			(q.items[i].priority == q.items[best].priority && q.items[i].seq < q.items[best].seq) {
			best = i
		}
	}
	t := q.items[best]
	q.items = append(q.items[:best], q.items[best+1:]...)
	return t, true
}
