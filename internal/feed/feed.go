// Package feed parses RSS 2.0 and Atom 1.0 feeds into a flat entry
// list, never panicking or erroring on malformed input — a parse
// failure simply yields an empty slice.
package feed

import (
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"pageforge/internal/domain/entity"
)

// Parse decodes xmlText as an RSS or Atom feed (gofeed auto-detects
// the format) and returns its entries in file order. Relative entry
// links are resolved against baseURL. Malformed XML yields nil rather
// than an error, per the no-exceptions contract.
func Parse(xmlText, baseURL string) []entity.FeedEntry {
	if strings.TrimSpace(xmlText) == "" {
		return nil
	}
	fp := gofeed.NewParser()
	parsed, err := fp.ParseString(xmlText)
	if err != nil || parsed == nil {
		return nil
	}

	base, _ := url.Parse(baseURL)
	entries := make([]entity.FeedEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		if base != nil {
			if resolved, err := base.Parse(link); err == nil {
				link = resolved.String()
			}
		}

		entries = append(entries, entity.FeedEntry{
			URL:         link,
			Title:       strings.TrimSpace(item.Title),
			Author:      authorOf(item),
			PublishedAt: publishedAtOf(item),
			Summary:     summaryOf(item),
		})
	}
	return entries
}

func authorOf(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if len(item.Authors) > 0 && item.Authors[0].Name != "" {
		return item.Authors[0].Name
	}
	return ""
}

func publishedAtOf(item *gofeed.Item) string {
	if item.Published != "" {
		return item.Published
	}
	if item.PublishedParsed != nil {
		return item.PublishedParsed.Format(time.RFC3339)
	}
	if item.Updated != "" {
		return item.Updated
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.Format(time.RFC3339)
	}
	return ""
}

func summaryOf(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}
