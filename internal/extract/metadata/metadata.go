// Package metadata extracts article metadata from HTML via a
// deterministic priority chain: JSON-LD, then Open Graph, then
// Twitter Card, then plain <meta> tags and <title>/<html lang>.
package metadata

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"pageforge/internal/domain/entity"
)

var articleJSONLDTypes = map[string]struct{}{
	"article": {}, "blogging": {}, "blogposting": {}, "newsarticle": {},
	"techarticle": {}, "scholarlyarticle": {}, "liveblogposting": {}, "reportage": {},
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Bundle holds every metadata field the extractor can derive.
type Bundle struct {
	Title        string
	Author       string
	PublishedAt  string
	UpdatedAt    string
	SiteName     string
	Language     string
	Summary      string
	Tags         []string
	CanonicalURL string
	Images       []entity.Image
	RawMetadata  map[string]any
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDate(raw string) string {
	if raw == "" {
		return ""
	}
	raw = whitespaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return ""
	}
	if t.Year() < 1990 || t.Year() > 2099 {
		return ""
	}
	return t.Format(time.RFC3339)
}

func extractJSONLD(doc *goquery.Document) map[string]any {
	result := map[string]any{}
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		var nodes []any
		switch v := raw.(type) {
		case []any:
			nodes = v
		case map[string]any:
			if graph, ok := v["@graph"].([]any); ok {
				nodes = graph
			} else {
				nodes = []any{v}
			}
		}
		for _, n := range nodes {
			node, ok := n.(map[string]any)
			if !ok {
				continue
			}
			dtype := strings.ToLower(stringField(node, "@type"))
			_, isArticle := articleJSONLDTypes[dtype]
			if !isArticle && dtype != "webpage" && dtype != "website" {
				continue
			}
			if isArticle || len(result) == 0 {
				result = node
			}
		}
	})
	return result
}

func stringField(node map[string]any, key string) string {
	v, ok := node[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func authorFromJSONLD(node map[string]any) string {
	author, ok := node["author"]
	if !ok {
		return ""
	}
	switch v := author.(type) {
	case map[string]any:
		return stringField(v, "name")
	case []any:
		if len(v) == 0 {
			return ""
		}
		if m, ok := v[0].(map[string]any); ok {
			return stringField(m, "name")
		}
		if s, ok := v[0].(string); ok {
			return s
		}
	case string:
		return v
	}
	return ""
}

func tagsFromJSONLD(node map[string]any) []string {
	kw, ok := node["keywords"]
	if !ok {
		return nil
	}
	switch v := kw.(type) {
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if t := strings.TrimSpace(part); t != "" {
				out = append(out, t)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				if t := strings.TrimSpace(s); t != "" {
					out = append(out, t)
				}
			}
		}
		return out
	}
	return nil
}

func extractOGTwitter(doc *goquery.Document) (og, twitter map[string]string) {
	og = map[string]string{}
	twitter = map[string]string{}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		prop := s.AttrOr("property", "")
		if prop == "" {
			prop = s.AttrOr("name", "")
		}
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		propLower := strings.ToLower(prop)
		switch {
		case strings.HasPrefix(propLower, "og:"), strings.HasPrefix(propLower, "article:"):
			og[propLower] = content
		case strings.HasPrefix(propLower, "twitter:"):
			twitter[propLower] = content
		}
	})
	return
}

func extractTags(jsonld map[string]any, doc *goquery.Document) []string {
	tags := tagsFromJSONLD(jsonld)

	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, s *goquery.Selection) {
		val := strings.TrimSpace(s.AttrOr("content", ""))
		if val == "" {
			return
		}
		for _, t := range tags {
			if t == val {
				return
			}
		}
		tags = append(tags, val)
	})

	if len(tags) == 0 {
		if content := doc.Find(`meta[name="keywords"]`).AttrOr("content", ""); content != "" {
			for _, part := range strings.Split(content, ",") {
				if t := strings.TrimSpace(part); t != "" {
					tags = append(tags, t)
				}
			}
		}
	}

	seen := map[string]struct{}{}
	var unique []string
	for _, t := range tags {
		lower := strings.ToLower(t)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		unique = append(unique, t)
	}
	return unique
}

func extractCanonical(doc *goquery.Document, pageURL string) string {
	base, _ := url.Parse(pageURL)
	canonical := ""
	doc.Find("link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if !hasRelValue(rel, "canonical") {
			return true
		}
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return true
		}
		if strings.HasPrefix(href, "http") {
			canonical = href
		} else if base != nil {
			if resolved, err := base.Parse(href); err == nil {
				canonical = resolved.String()
			}
		} else {
			canonical = href
		}
		return false
	})
	if canonical != "" {
		return canonical
	}
	return strings.TrimSpace(doc.Find(`meta[property="og:url"]`).AttrOr("content", ""))
}

func hasRelValue(rel, want string) bool {
	for _, v := range strings.Fields(rel) {
		if v == want {
			return true
		}
	}
	return false
}

func extractLanguage(doc *goquery.Document, og map[string]string, jsonld map[string]any) string {
	if lang := strings.TrimSpace(doc.Find("html").AttrOr("lang", "")); lang != "" {
		return truncate(lang, 10)
	}
	if locale := og["og:locale"]; locale != "" {
		region := strings.Split(strings.ReplaceAll(locale, "_", "-"), "-")[0]
		return truncate(region, 5)
	}
	if lang := stringField(jsonld, "inLanguage"); lang != "" {
		return truncate(lang, 10)
	}
	if content := strings.TrimSpace(doc.Find(`meta[http-equiv="content-language"]`).AttrOr("content", "")); content != "" {
		return truncate(content, 10)
	}
	if content := strings.TrimSpace(doc.Find(`meta[name="language"]`).AttrOr("content", "")); content != "" {
		return truncate(content, 10)
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func extractImagesMeta(og map[string]string, jsonld map[string]any, pageURL string) []entity.Image {
	base, _ := url.Parse(pageURL)
	resolve := func(u string) string {
		if u == "" || strings.HasPrefix(u, "http") || base == nil {
			return u
		}
		if resolved, err := base.Parse(u); err == nil {
			return resolved.String()
		}
		return u
	}

	var images []entity.Image
	seen := map[string]struct{}{}

	if ogImg := og["og:image"]; ogImg != "" {
		u := resolve(ogImg)
		images = append(images, entity.Image{URL: u, Alt: og["og:image:alt"]})
		seen[u] = struct{}{}
	}

	if jldImg, ok := jsonld["image"]; ok {
		switch v := jldImg.(type) {
		case string:
			u := resolve(v)
			if _, dup := seen[u]; !dup {
				images = append(images, entity.Image{URL: u})
			}
		case map[string]any:
			if rawURL := stringField(v, "url"); rawURL != "" {
				u := resolve(rawURL)
				if _, dup := seen[u]; !dup {
					images = append(images, entity.Image{URL: u, Alt: stringField(v, "description")})
				}
			}
		}
	}
	return images
}

func extractTimeDatetime(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("time").First().AttrOr("datetime", ""))
}

// Extract derives a Bundle of metadata from html, resolving relative
// URLs (canonical link, og:image) against pageURL.
func Extract(html, pageURL string) Bundle {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Bundle{RawMetadata: map[string]any{}}
	}

	jsonld := extractJSONLD(doc)
	og, twitter := extractOGTwitter(doc)

	titleTag := strings.TrimSpace(doc.Find("title").First().Text())
	h1Tag := strings.TrimSpace(doc.Find("h1").First().Text())
	title := first(stringField(jsonld, "headline"), stringField(jsonld, "name"),
		og["og:title"], twitter["twitter:title"], titleTag, h1Tag)

	authorMeta := strings.TrimSpace(doc.Find(`meta[name="author"]`).AttrOr("content", ""))
	author := first(authorFromJSONLD(jsonld), og["article:author"], twitter["twitter:creator"], authorMeta)

	pubdateMeta := doc.Find(`meta[name="pubdate"]`).AttrOr("content", "")
	publishedAt := parseDate(first(stringField(jsonld, "datePublished"), og["article:published_time"],
		pubdateMeta, extractTimeDatetime(doc)))
	updatedAt := parseDate(first(stringField(jsonld, "dateModified"), og["article:modified_time"], og["og:updated_time"]))

	var publisherName string
	if publisher, ok := jsonld["publisher"].(map[string]any); ok {
		publisherName = stringField(publisher, "name")
	}
	hostSiteName := ""
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			hostSiteName = strings.TrimPrefix(u.Host, "www.")
		}
	}
	siteName := first(og["og:site_name"], publisherName, hostSiteName)

	descMeta := strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	summary := first(stringField(jsonld, "description"), og["og:description"], twitter["twitter:description"], descMeta)

	return Bundle{
		Title:        strings.TrimSpace(title),
		Author:       author,
		PublishedAt:  publishedAt,
		UpdatedAt:    updatedAt,
		SiteName:     siteName,
		Language:     extractLanguage(doc, og, jsonld),
		Summary:      strings.TrimSpace(summary),
		Tags:         extractTags(jsonld, doc),
		CanonicalURL: extractCanonical(doc, pageURL),
		Images:       extractImagesMeta(og, jsonld, pageURL),
		RawMetadata: map[string]any{
			"jsonld":  jsonld,
			"og":      og,
			"twitter": twitter,
		},
	}
}
