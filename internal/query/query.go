// Package query is the single-URL Query API: parse runs the
// extraction pipeline against already-fetched HTML; fetch drives the
// adaptive fetcher first; fetch_batch and fetch_feed fan out over many
// URLs.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"pageforge/internal/detect"
	"pageforge/internal/domain/entity"
	"pageforge/internal/extract/blocks"
	"pageforge/internal/extract/content"
	"pageforge/internal/extract/markdown"
	"pageforge/internal/extract/metadata"
	"pageforge/internal/feed"
	"pageforge/internal/fetch/adaptive"
	"pageforge/internal/fetch/headless"
	"pageforge/internal/fetch/httpfetch"
	"pageforge/internal/fetch/proxy"
	"pageforge/internal/heuristics"
	"pageforge/internal/normalize"
	"pageforge/internal/plugin"
)

// OnErrorPolicy controls how fetch_batch handles a per-URL failure.
type OnErrorPolicy string

const (
	OnErrorSkip    OnErrorPolicy = "skip"
	OnErrorRaise   OnErrorPolicy = "raise"
	OnErrorInclude OnErrorPolicy = "include"
)

// FetchOptions configures a single URL fetch.
type FetchOptions struct {
	RenderJS     bool
	Timeout      time.Duration
	UserAgent    string
	ProxyList    []string
	RetryOnBlock bool
	Auth         *httpfetch.Auth
	RateLimiter  httpfetch.RateLimiter
	PageActions  []headless.PageAction
}

// Service wires the extraction pipeline to the adaptive fetcher and
// exposes the query-level operations.
type Service struct {
	HTTP     *httpfetch.Client
	Adaptive *adaptive.Fetcher
	Render   headless.Renderer
	Registry *plugin.Registry
}

// New constructs a Service. reg may be nil to use the process-wide
// default plugin registry.
func New(httpClient *httpfetch.Client, render headless.Renderer, reg *plugin.Registry) *Service {
	if reg == nil {
		reg = plugin.Default()
	}
	return &Service{
		HTTP:     httpClient,
		Adaptive: adaptive.New(httpClient, render, reg),
		Render:   render,
		Registry: reg,
	}
}

// Parse runs the full extraction pipeline against already-fetched
// HTML with no network access. fetch_strategy is always pre_fetched.
func (s *Service) Parse(html, pageURL string) entity.ArticleRecord {
	article := s.extract(html, pageURL, 200)
	article.FetchStrategy = string(entity.StrategyPreFetched)
	return article
}

// Fetch retrieves urlStr (directly via the headless renderer when
// RenderJS is set, otherwise via the adaptive fetcher), extracts it,
// and — when a proxy list is supplied — rotates proxies on a blocked
// or failed response up to min(5, len(proxies)) times.
func (s *Service) Fetch(ctx context.Context, urlStr string, opts FetchOptions) (entity.ArticleRecord, error) {
	if len(opts.ProxyList) == 0 {
		return s.fetchOnce(ctx, urlStr, opts, "")
	}

	rotator, err := proxy.New(opts.ProxyList, proxy.RoundRobin)
	if err != nil {
		return entity.ArticleRecord{}, err
	}

	maxAttempts := len(opts.ProxyList)
	if maxAttempts > 5 {
		maxAttempts = 5
	}

	var last entity.ArticleRecord
	var lastErr error
	for attempt := 0; attempt < maxAttempts && rotator.HasProxies(); attempt++ {
		current := rotator.Get()
		article, err := s.fetchOnce(ctx, urlStr, opts, current)
		if err != nil {
			rotator.MarkFailed(current)
			lastErr = err
			rotator.Rotate()
			continue
		}
		last = article
		lastErr = nil
		if article.IsBlocked {
			rotator.MarkFailed(current)
			rotator.Rotate()
			continue
		}
		rotator.MarkSuccess(current)
		return article, nil
	}
	if lastErr != nil && last.URL == "" {
		return entity.ArticleRecord{}, lastErr
	}
	return last, nil
}

func (s *Service) fetchOnce(ctx context.Context, urlStr string, opts FetchOptions, proxyURL string) (entity.ArticleRecord, error) {
	if opts.RenderJS {
		if s.Render == nil {
			return entity.ArticleRecord{}, fmt.Errorf("query: render_js requested but no headless renderer configured")
		}
		timeout := opts.Timeout
		if timeout < 60*time.Second {
			timeout = 60 * time.Second
		}
		html, err := s.Render.Render(ctx, urlStr, timeout, headless.RenderOptions{
			ProxyURL:    proxyURL,
			UserAgent:   opts.UserAgent,
			PageActions: opts.PageActions,
		})
		if err != nil {
			return entity.ArticleRecord{}, err
		}
		article := s.extract(html, urlStr, 200)
		article.FetchStrategy = string(entity.StrategyPlaywrightForced)
		return article, nil
	}

	result, err := s.Adaptive.Fetch(ctx, urlStr, adaptive.Options{
		Timeout:     opts.Timeout,
		UserAgent:   opts.UserAgent,
		ProxyURL:    proxyURL,
		Auth:        opts.Auth,
		RateLimiter: opts.RateLimiter,
		PageActions: opts.PageActions,
	})
	if err != nil {
		return entity.ArticleRecord{}, err
	}

	article := s.extract(result.HTML, urlStr, 200)
	article.FetchStrategy = result.StrategyUsed
	article.PageType = result.Classification.PageType
	if article.RawMetadata == nil {
		article.RawMetadata = map[string]any{}
	}
	article.RawMetadata["_classification"] = map[string]any{
		"reason":              result.Classification.Reason,
		"confidence":          result.Classification.Confidence,
		"frameworks":          result.Classification.Signals.FrameworksDetected,
		"amp_url":             result.Classification.Signals.AMPURL,
		"feed_url":            result.Classification.Signals.FeedURL,
		"body_word_count":     result.Classification.Signals.BodyWordCount,
	}
	return article, nil
}

// FetchBatch fans urls out to maxWorkers concurrent fetches, preserving
// input order in the returned slice. With onError=raise, the first
// failure cancels every still-in-flight fetch immediately rather than
// waiting for the whole batch to drain.
func (s *Service) FetchBatch(ctx context.Context, urls []string, maxWorkers int, onError OnErrorPolicy, opts FetchOptions) ([]*entity.ArticleRecord, error) {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}

	type slot struct {
		article *entity.ArticleRecord
		err     error
	}
	results := make([]slot, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			article, err := s.Fetch(gctx, u, opts)
			if err != nil {
				results[i] = slot{err: err}
				if onError == OnErrorRaise {
					return err
				}
				return nil
			}
			results[i] = slot{article: &article}
			return nil
		})
	}
	if err := g.Wait(); err != nil && onError == OnErrorRaise {
		return nil, err
	}

	out := make([]*entity.ArticleRecord, 0, len(urls))
	for _, r := range results {
		switch onError {
		case OnErrorInclude:
			out = append(out, r.article)
		default: // skip (raise already returned above on any error)
			if r.err == nil {
				out = append(out, r.article)
			}
		}
	}
	return out, nil
}

// FetchFeed fetches feedURL, parses its entries, and runs the first
// maxArticles URLs through FetchBatch with on_error=skip.
func (s *Service) FetchFeed(ctx context.Context, feedURL string, maxArticles int, opts FetchOptions) ([]*entity.ArticleRecord, error) {
	if maxArticles <= 0 {
		maxArticles = 50
	}

	xmlText, err := s.HTTP.Get(ctx, feedURL, httpfetch.Options{Timeout: opts.Timeout, UserAgent: opts.UserAgent})
	if err != nil {
		return nil, err
	}

	entries := feed.Parse(xmlText, feedURL)
	if len(entries) > maxArticles {
		entries = entries[:maxArticles]
	}

	urls := make([]string, len(entries))
	for i, e := range entries {
		urls[i] = e.URL
	}
	return s.FetchBatch(ctx, urls, 8, OnErrorSkip, opts)
}

// extract runs the shared extraction pipeline (metadata, main content,
// block layout, markdown rendering, block detection, article scoring)
// against already-retrieved html.
func (s *Service) extract(html, pageURL string, statusCode int) entity.ArticleRecord {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))

	meta := metadata.Extract(html, pageURL)
	extracted := content.ExtractMainContent(html, pageURL, s.Registry)
	contentBlocks := blocks.Parse(extracted.HTML, pageURL)
	contentText := plainText(extracted.HTML)
	contentMarkdown := markdown.RenderArticle(meta.Title, meta.Author, meta.PublishedAt, meta.Tags, meta.Summary, markdown.RenderBody(extracted.HTML))

	blockResult := detect.DetectBlock(html, pageURL, statusCode)
	score := heuristics.ArticleScore(pageURL, html, doc)

	wordCount := extracted.WordCount
	if wordCount == 0 {
		wordCount = len(strings.Fields(contentText))
	}

	images := append([]entity.Image{}, meta.Images...)
	images = append(images, content.ExtractImages(extracted.HTML, pageURL)...)

	article := entity.ArticleRecord{
		URL:                  pageURL,
		CanonicalURL:         meta.CanonicalURL,
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
