// Package main provides feeddiag, a utility that probes a list of feed
// URLs and reports which ones parse cleanly. Usage:
//
//	feeddiag --feeds feeds.txt
//
// feeds.txt holds one feed URL per line (blank lines and lines
// starting with # are ignored).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"pageforge/internal/fetch/httpfetch"
)

// FeedDiagnostic is the result of probing a single feed URL.
type FeedDiagnostic struct {
	URL          string `json:"url"`
	Status       string `json:"status"` // OK, FETCH_ERROR, PARSE_ERROR, EMPTY
	ItemCount    int    `json:"item_count"`
	LatestDate   string `json:"latest_date,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	FeedType     string `json:"feed_type,omitempty"` // rss, atom, json
	ResponseTime int64  `json:"response_time_ms"`
}

func main() {
	var feedsPath string
	var timeout time.Duration
	flag.StringVar(&feedsPath, "feeds", "", "path to a file of feed URLs, one per line (required)")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "per-feed fetch timeout")
	flag.Parse()

	if feedsPath == "" {
		log.Fatal("missing required flag: --feeds")
	}

	urls, err := readFeedList(feedsPath)
	if err != nil {
		log.Fatalf("failed to read feed list: %v", err)
	}

	client := httpfetch.New()
	log.Printf("diagnosing %d feeds...", len(urls))

	diagnostics := make([]FeedDiagnostic, 0, len(urls))
	for i, u := range urls {
		log.Printf("[%d/%d] %s", i+1, len(urls), u)
		diagnostics = append(diagnostics, diagnoseFeed(client, u, timeout))
	}

	generateReport(diagnostics)
	if err := generateJSONReport(diagnostics); err != nil {
		log.Printf("failed to write JSON report: %v", err)
	}
}

func readFeedList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

func diagnoseFeed(client *httpfetch.Client, feedURL string, timeout time.Duration) FeedDiagnostic {
	diag := FeedDiagnostic{URL: feedURL}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	xmlText, err := client.Get(ctx, feedURL, httpfetch.Options{Timeout: timeout})
	diag.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		diag.Status = "FETCH_ERROR"
		diag.ErrorMessage = err.Error()
		return diag
	}

	parsed, err := gofeed.NewParser().ParseString(xmlText)
	if err != nil || parsed == nil {
		diag.Status = "PARSE_ERROR"
		if err != nil {
			diag.ErrorMessage = err.Error()
		} else {
			diag.ErrorMessage = "empty parse result"
		}
		return diag
	}

	diag.FeedType = string(parsed.FeedType)
	diag.ItemCount = len(parsed.Items)
	if len(parsed.Items) > 0 {
		item := parsed.Items[0]
		if item.PublishedParsed != nil {
			diag.LatestDate = item.PublishedParsed.Format(time.RFC3339)
		} else {
			diag.LatestDate = item.Published
		}
	}

	if diag.ItemCount == 0 {
		diag.Status = "EMPTY"
		diag.ErrorMessage = "feed has no items"
		return diag
	}

	diag.Status = "OK"
	return diag
}

func generateReport(diagnostics []FeedDiagnostic) {
	f, err := os.Create("feed_diagnostic_report.txt")
	if err != nil {
		log.Printf("failed to create report file: %v", err)
		return
	}
	defer f.Close()

	okCount := 0
	for _, d := range diagnostics {
		if d.Status == "OK" {
			okCount++
		}
	}

	fmt.Fprintf(f, "RSS/Atom Feed Diagnostic Report\n")
	fmt.Fprintf(f, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(f, "Total feeds: %d, working: %d, broken: %d\n\n", len(diagnostics), okCount, len(diagnostics)-okCount)

	for _, d := range diagnostics {
		fmt.Fprintf(f, "%-6s %s\n", d.Status, d.URL)
		if d.Status == "OK" {
			fmt.Fprintf(f, "       type=%s items=%d latest=%s response=%dms\n", d.FeedType, d.ItemCount, d.LatestDate, d.ResponseTime)
		} else {
			fmt.Fprintf(f, "       %s\n", d.ErrorMessage)
		}
	}

	log.Println("wrote feed_diagnostic_report.txt")
}

func generateJSONReport(diagnostics []FeedDiagnostic) error {
	f, err := os.Create("feed_diagnostic_report.json")
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(diagnostics); err != nil {
		return err
	}
	log.Println("wrote feed_diagnostic_report.json")
	return nil
}
