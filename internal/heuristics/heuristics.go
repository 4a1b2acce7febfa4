// Package heuristics scores pages for article likelihood, detects
// whether a page needs JavaScript rendering, and estimates reading time.
package heuristics

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ArticleScoreThreshold is the minimum article_score considered likely
// to be a single-article page.
const ArticleScoreThreshold = 35

var articlePathSegments = map[string]struct{}{
	"blog": {}, "blogs": {}, "post": {}, "posts": {}, "article": {}, "articles": {},
	"news": {}, "story": {}, "stories": {}, "essay": {}, "essays": {}, "journal": {},
	"write": {}, "writing": {}, "p": {}, "entry": {}, "entries": {},
	"publication": {}, "publications": {}, "insight": {}, "insights": {},
	"tutorial": {}, "tutorials": {}, "guide": {}, "guides": {}, "learn": {},
	"thought": {}, "thoughts": {},
}

var excludedPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/tag/`),
	regexp.MustCompile(`(?i)/tags/`),
	regexp.MustCompile(`(?i)/category/`),
	regexp.MustCompile(`(?i)/categories/`),
	regexp.MustCompile(`(?i)/search(\?|$|/)`),
	regexp.MustCompile(`(?i)/login(\?|$|/)`),
	regexp.MustCompile(`(?i)/signin(\?|$|/)`),
	regexp.MustCompile(`(?i)/signup(\?|$|/)`),
	regexp.MustCompile(`(?i)/register(\?|$|/)`),
	regexp.MustCompile(`(?i)/logout(\?|$|/)`),
	regexp.MustCompile(`(?i)/privacy(\?|$|/)`),
	regexp.MustCompile(`(?i)/terms(\?|$|/)`),
	regexp.MustCompile(`(?i)/feed(\?|$|/)`),
	regexp.MustCompile(`(?i)/rss(\?|$|/)`),
	regexp.MustCompile(`(?i)/sitemap`),
	regexp.MustCompile(`(?i)/archive(\?|$|/)`),
	regexp.MustCompile(`(?i)/archives(\?|$|/)`),
	regexp.MustCompile(`(?i)/_next/static/`),
	regexp.MustCompile(`(?i)/cdn-cgi/`),
	regexp.MustCompile(`(?i)/wp-content/uploads/`),
	regexp.MustCompile(`(?i)/__webpack`),
	regexp.MustCompile(`(?i)/page/\d+`),
}

var dateInPathRe = regexp.MustCompile(`/\d{4}/\d{2}(/\d{2})?`)

var articleJSONLDTypes = map[string]struct{}{
	"article": {}, "blogging": {}, "blogposting": {}, "newsarticle": {},
	"techarticle": {}, "scholarlyarticle": {}, "liveblogposting": {},
	"reportage": {}, "satiricalarticle": {}, "socialmediaposting": {},
}

var jsRootSelectors = []string{
	"#__next", "#app", "#root", "#__nuxt", "#app-root",
	"#gatsby-focus-wrapper", "[data-reactroot]", "[data-server-rendered]",
	"div[ng-app]", "#angular-app", "#ember-application",
}

var jsRequiredPhrases = []string{
	"enable javascript", "javascript is required", "please enable javascript",
	"javascript must be enabled", "this site requires javascript",
	"you need to enable javascript", "requires javascript to function",
}

var noiseTagsForJS = []string{"script", "style", "nav", "header", "footer", "noscript"}

// ArticleScore returns an integer score (may be negative, unbounded
// above) indicating how likely rawURL/html is a single article page.
// Pass a pre-parsed doc to avoid re-parsing; nil triggers a fresh parse.
// A path matching an excluded pattern scores -30 without content signals.
func ArticleScore(rawURL, html string, doc *goquery.Document) int {
	score, excluded := urlScore(rawURL)
	if excluded {
		return score
	}
	score += contentScore(html, doc)
	return score
}

func urlScore(rawURL string) (int, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, false
	}
	path := strings.ToLower(u.Path)

	for _, pat := range excludedPathPatterns {
		if pat.MatchString(path) {
			return -30, true
		}
	}

	score := 0
	segments := splitPath(path)
	for _, seg := range segments {
		if _, ok := articlePathSegments[seg]; ok {
			score += 15
			break
		}
	}

	if dateInPathRe.MatchString(path) {
		score += 10
	}

	switch n := len(segments); {
	case n >= 4:
		score += 5
	case n == 2:
		score += 3
	case n <= 1:
		score -= 20
	}

	q := u.Query()
	if q.Has("page") || regexp.MustCompile(`/page/\d+`).MatchString(path) {
		score -= 15
	}

	if strings.Contains(path, "/author/") && len(segments) <= 2 {
		score -= 10
	}

	return score, false
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contentScore(html string, doc *goquery.Document) int {
	if doc == nil {
		d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return 0
		}
		doc = d
	}
	doc = cloneDoc(doc)

	doc.Find("nav, header, footer, aside, script, style, noscript").Remove()

	bodyText := doc.Find("body").Text()
	words := len(strings.Fields(bodyText))

	score := 0
	switch {
	case words > 300:
		score += 20
	case words >= 150:
		score += 10
	case words < 50:
		score -= 20
	}

	h1Count := doc.Find("h1").Length()
	switch {
	case h1Count == 1:
		score += 15
	case h1Count > 3:
		score -= 5
	}

	substantialParas := 0
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if len(strings.Fields(s.Text())) >= 20 {
			substantialParas++
		}
	})
	if substantialParas >= 3 {
		score += 5
	}

	hasAuthor, hasDate, jsonldArticle, ogArticle := quickMeta(doc)
	if hasAuthor {
		score += 10
	}
	if hasDate {
		score += 10
	}
	if jsonldArticle {
		score += 10
	}
	if ogArticle {
		score += 5
	}

	links := doc.Find("a[href]").Length()
	if links > 30 {
		score -= 10
	}

	hasNextPrev := false
	doc.Find("link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		for _, v := range strings.Fields(rel) {
			if v == "next" || v == "prev" {
				hasNextPrev = true
				return false
			}
		}
		return true
	})
	if hasNextPrev {
		score -= 15
	}

	return score
}

func quickMeta(doc *goquery.Document) (hasAuthor, hasDate, jsonldArticle, ogArticle bool) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		dtype, author, date := scanJSONLDForScore(s.Text())
		if _, ok := articleJSONLDTypes[strings.ToLower(dtype)]; ok {
			jsonldArticle = true
		}
		if author {
			hasAuthor = true
		}
		if date {
			hasDate = true
		}
	})

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		if prop == "" {
			prop, _ = s.Attr("name")
		}
		prop = strings.ToLower(prop)
		content, _ := s.Attr("content")

		if prop == "og:type" && strings.ToLower(content) == "article" {
			ogArticle = true
		}
		if prop == "article:published_time" && content != "" {
			hasDate = true
		}
		if (prop == "author" || prop == "article:author" || prop == "og:article:author") && content != "" {
			hasAuthor = true
		}
	})
	return
}

// scanJSONLDForScore extracts a @type string and whether author/datePublished
// fields are present, from one JSON-LD script body. Accepts a bare object or
// a list, taking the first element of a list.
func scanJSONLDForScore(raw string) (dtype string, hasAuthor, hasDate bool) {
	var asList []map[string]any
	if err := json.Unmarshal([]byte(raw), &asList); err == nil {
		if len(asList) == 0 {
			return "", false, false
		}
		return fieldsFromJSONLDNode(asList[0])
	}
	var asObj map[string]any
	if err := json.Unmarshal([]byte(raw), &asObj); err == nil {
		return fieldsFromJSONLDNode(asObj)
	}
	return "", false, false
}

func fieldsFromJSONLDNode(node map[string]any) (dtype string, hasAuthor, hasDate bool) {
	if t, ok := node["@type"].(string); ok {
		dtype = t
	}
	_, hasAuthor = node["author"]
	_, hasDate = node["datePublished"]
	return
}

// NeedsJS reports whether html appears to require JavaScript to render
// its content: an explicit "enable javascript" message, a meaningful
// noscript block, a JS-framework root with sparse visible text, or many
// external scripts paired with near-empty body text.
func NeedsJS(html string, thresholdWords int) bool {
	if thresholdWords <= 0 {
		thresholdWords = 100
	}
	if strings.TrimSpace(html) == "" {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	fullText := strings.ToLower(doc.Text())
	for _, phrase := range jsRequiredPhrases {
		if strings.Contains(fullText, phrase) {
			return true
		}
	}

	found := false
	doc.Find("noscript").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(strings.Fields(s.Text())) > 15 {
			found = true
			return false
		}
		return true
	})
	if found {
		return true
	}

	scriptCount := doc.Find("script[src]").Length()

	stripped := cloneDoc(doc)
	stripped.Find(strings.Join(noiseTagsForJS, ", ")).Remove()
	visibleText := stripped.Find("body").Text()
	wordCount := len(strings.Fields(visibleText))

	hasJSRoot := false
	for _, sel := range jsRootSelectors {
		if stripped.Find(sel).Length() > 0 {
			hasJSRoot = true
			break
		}
	}
	if hasJSRoot && wordCount < thresholdWords {
		return true
	}

	if scriptCount > 8 && wordCount < 50 {
		return true
	}

	return false
}

// ReadingTime estimates reading time in minutes at wpm words per minute,
// never less than one minute. wpm<=0 defaults to 200.
func ReadingTime(wordCount, wpm int) int {
	if wpm <= 0 {
		wpm = 200
	}
	if wordCount <= 0 {
		return 1
	}
	minutes := (wordCount + wpm - 1) / wpm
	if minutes < 1 {
		return 1
	}
	return minutes
}

// cloneDoc re-parses the document's HTML so destructive .Remove() calls
// (used for scoring) don't mutate a caller-shared *goquery.Document.
func cloneDoc(doc *goquery.Document) *goquery.Document {
	html, err := doc.Html()
	if err != nil {
		return doc
	}
	clone, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return doc
	}
	return clone
}
