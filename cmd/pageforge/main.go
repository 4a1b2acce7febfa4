// Package main provides the pageforge crawl CLI.
// Usage: pageforge --start-url URL --out DIR [flags]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"pageforge/internal/crawl"
	"pageforge/internal/fetch/headless"
	"pageforge/internal/fetch/httpfetch"
	"pageforge/internal/observability/logging"
)

func main() {
	var (
		startURL        string
		outDir          string
		maxPages        int
		maxDepth        int
		concurrency     int
		renderJS        string
		robotsEnabled   bool
		includeRegex    string
		excludeRegex    string
		cacheEnabled    bool
		resume          bool
		allowSubdomains bool
		extraDomains    string
		progress        bool
		schedule        string
	)

	flag.StringVar(&startURL, "start-url", "", "seed URL to crawl (required)")
	flag.StringVar(&outDir, "out", "./out", "output directory for the article index, skip log, and caches")
	flag.IntVar(&maxPages, "max-pages", 200, "maximum number of pages to fetch")
	flag.IntVar(&maxDepth, "max-depth", 3, "maximum BFS link depth from the start URL")
	flag.IntVar(&concurrency, "concurrency", 8, "maximum concurrent in-flight requests")
	flag.StringVar(&renderJS, "render-js", "auto", "JS rendering mode: auto, always, or never")
	flag.BoolVar(&robotsEnabled, "robots", true, "honor robots.txt (reserved; not yet enforced)")
	flag.StringVar(&includeRegex, "include-regex", "", "only extract URLs matching this regex")
	flag.StringVar(&excludeRegex, "exclude-regex", "", "never crawl URLs matching this regex")
	flag.BoolVar(&cacheEnabled, "delta", false, "use conditional requests (ETag/Last-Modified) to skip unchanged pages")
	flag.BoolVar(&resume, "resume", false, "resume from a prior run's seen-URL set and article index")
	flag.BoolVar(&allowSubdomains, "allow-subdomains", false, "also crawl subdomains of the start URL's host")
	flag.StringVar(&extraDomains, "extra-domains", "", "comma-separated additional domains to crawl")
	flag.BoolVar(&progress, "progress", true, "log progress as the crawl runs")
	flag.StringVar(&schedule, "schedule", "", "if set, a 5-field cron expression to re-run the crawl on a recurring schedule instead of once")
	flag.Parse()

	logger := logging.NewLogger()

	if startURL == "" {
		logger.Error("missing required flag", slog.String("flag", "start-url"))
		os.Exit(1)
	}

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		logger.Error("failed to create output directory", slog.Any("error", err))
		os.Exit(1)
	}

	var includeRe, excludeRe *regexp.Regexp
	var err error
	if includeRegex != "" {
		if includeRe, err = regexp.Compile(includeRegex); err != nil {
			logger.Error("invalid --include-regex", slog.Any("error", err))
			os.Exit(1)
		}
	}
	if excludeRegex != "" {
		if excludeRe, err = regexp.Compile(excludeRegex); err != nil {
			logger.Error("invalid --exclude-regex", slog.Any("error", err))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpfetch.New()
	renderer := headless.NewChromeRenderer(2)
	defer renderer.Close()

	crawler := crawl.New(httpClient, renderer)
	crawler.Seen = newFileSeenStore(outDir + "/seen.txt")
	crawler.ArticleIndex = newFileArticleIndex(outDir + "/articles.json")
	crawler.SkipLog = newFileSkipLog(outDir + "/skipped.jsonl")
	crawler.Cache = newFileConditionalCache(outDir + "/cache.json")

	opts := crawl.Options{
		StartURL:           startURL,
		MaxPages:           maxPages,
		MaxDepth:           maxDepth,
		RenderJS:           crawl.RenderMode(renderJS),
		IncludeRegex:       includeRe,
		ExcludeRegex:       excludeRe,
		AllowSubdomains:    allowSubdomains,
		ExtraDomains:       splitNonEmpty(extraDomains, ","),
		Resume:             resume,
		Delta:              cacheEnabled,
		ConcurrentRequests: concurrency,
		PerDomainCap:       4,
		RequestDelay:       time.Second,
		Timeout:            30 * time.Second,
	}

	runOnce := func(ctx context.Context) error {
		runID := uuid.New().String()
		runCtx := logging.WithRunIDValue(ctx, runID)
		runLogger := logging.WithRunID(runCtx, logger)

		if progress {
			runLogger.Info("crawl starting",
				slog.String("start_url", startURL),
				slog.Int("max_pages", maxPages),
				slog.Int("max_depth", maxDepth))
		}

		summary, articles, err := crawler.Run(runCtx, opts)
		if err != nil {
			runLogger.Error("crawl failed", slog.Any("error", err))
			return err
		}

		runLogger.Info("crawl finished",
			slog.Int("crawled", summary.Crawled),
			slog.Int("skipped", summary.Skipped),
			slog.String("reason", summary.Reason))

		out, err := json.MarshalIndent(articles, "", "  ")
		if err != nil {
			runLogger.Error("failed to marshal articles", slog.Any("error", err))
			return err
		}
		if err := os.WriteFile(outDir+"/articles_full.json", out, 0o600); err != nil {
			runLogger.Error("failed to write articles_full.json", slog.Any("error", err))
			return err
		}

		fmt.Fprintf(os.Stdout, "crawled=%d skipped=%d articles=%d\n", summary.Crawled, summary.Skipped, len(articles))
		return nil
	}

	if schedule == "" {
		if err := runOnce(ctx); err != nil {
			os.Exit(1)
		}
		return
	}

	sched := cron.New()
	id, err := sched.AddFunc(schedule, func() {
		if err := runOnce(ctx); err != nil {
			logger.Error("scheduled crawl failed", slog.Any("error", err))
		}
	})
	if err != nil {
		logger.Error("invalid --schedule expression", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("crawl scheduled", slog.String("cron", schedule), slog.Int("entry_id", int(id)))
	sched.Start()
	<-ctx.Done()
	<-sched.Stop().Done()
	logger.Info("scheduler stopped")
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || string(s[i]) == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
