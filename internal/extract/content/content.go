// Package content extracts the main article body from a raw HTML page
// using a best-of-two cascade (two independent Readability-family
// engines) falling back to a DOM-density heuristic, then a registry of
// caller-supplied extractor plugins.
package content

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readeck "codeberg.org/readeck/go-readability/v2"
	goreadability "github.com/go-shiori/go-readability"
	neturl "net/url"

	"pageforge/internal/domain/entity"
	"pageforge/internal/plugin"
)

const (
	readabilityMinWords     = 50
	secondOpinionMinWords   = 30
	domMinWords             = 10
	dominantShareThreshold  = 0.55
	secondOpinionWinFactor  = 1.4
)

var contentSelectors = []string{
	"article", "main", `[role="main"]`, `[itemprop="articleBody"]`,
	".post-content", ".article-content", ".entry-content", ".post-body",
	".article-body", "#article-content", "#post-content", "#entry-content",
	"#content", "#main-content", ".content-body", ".story-body",
	".blog-post", ".post", ".single-content",
}

var boilerplateTags = []string{
	"nav", "header", "footer", "aside", "script", "style",
	"noscript", "form", "button", "input", "select", "textarea",
}

var noiseSubstrings = []string{
	"sidebar", "comment", "advertisement", "banner", "promo",
	"related", "share", "social", "newsletter", "cookie", "popup",
	"modal", "widget",
}

var cookieConsentSelectors = []string{
	".cky-consent-container", ".cookieyes-modal",
	"#cookie-law-info-bar", ".cli-modal", ".cli-settings-overlay",
	"#CybotCookiebotDialog", "#CybotCookiebotDialogBodyContent",
	"#onetrust-consent-sdk", "#onetrust-banner-sdk", "#onetrust-pc-sdk",
	"#cmplz-cookiebanner-container", ".cmplz-cookiebanner",
	"#BorlabsCookieBox",
	"#cookie_notice", "#gdpr-cookie-notice",
	".cookie-banner", ".cookie-notice", ".cookie-popup",
	".cookie-modal", ".cookie-overlay", ".cookie-consent",
	"#cookie-notice", "#cookie-banner", "#cookie-popup",
	".gdpr-overlay", "#gdpr_overlay", ".gdpr-banner",
	`[aria-label='cookieconsent']`,
}

var consentWidgetKeywords = []string{
	"cookieyes", "cookiebot", "cookiehub", "onetrust",
	"borlabs", "complianz", "cookielawinfo", "cky-",
	"wpconsent", "cookie-consent", "gdpr-consent",
}

var templateRe = regexp.MustCompile(`(?is)<template\b[^>]*>.*?</template>`)

// StripCookieConsent removes cookie-consent / GDPR overlay elements
// from doc in place. Exported so other components (the page
// classifier's word-count signal) can share the same noise model.
func StripCookieConsent(doc *goquery.Document) {
	for _, sel := range cookieConsentSelectors {
		doc.Find(sel).Remove()
	}
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		combined := strings.ToLower(class + " " + id)
		for _, kw := range consentWidgetKeywords {
			if strings.Contains(combined, kw) {
				s.Remove()
				return
			}
		}
	})
}

// Preprocess strips <template> blocks and cookie-consent overlays from
// html before any extractor sees it. <template> content is removed by
// regex before parsing because the HTML5 parser re-parents template
// children into the document body, which defeats a post-parse Remove().
func Preprocess(html string) string {
	html = templateRe.ReplaceAllString(html, "")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	StripCookieConsent(doc)
	out, err := doc.Html()
	if err != nil {
		return html
	}
	return out
}

func countWords(html string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0
	}
	return len(strings.Fields(doc.Text()))
}

// Result is the outcome of ExtractMainContent: the extracted HTML
// fragment, which engine produced it, and its approximate word count.
type Result struct {
	HTML      string
	Method    entity.ExtractionMethod
	WordCount int
}

func tryReadability(html, pageURL string) (string, int, bool) {
	u, _ := neturl.Parse(pageURL)
	article, err := goreadability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return "", 0, false
	}
	if article.Content == "" {
		return "", 0, false
	}
	wc := countWords(article.Content)
	if wc < readabilityMinWords {
		return "", 0, false
	}
	return article.Content, wc, true
}

func trySecondOpinion(html, pageURL string) (string, int, bool) {
	u, _ := neturl.Parse(pageURL)
	article, err := readeck.FromReader(strings.NewReader(html), u)
	if err != nil || article.Node == nil {
		return "", 0, false
	}
	var htmlBuf, textBuf bytes.Buffer
	if err := article.RenderHTML(&htmlBuf); err != nil {
		return "", 0, false
	}
	if err := article.RenderText(&textBuf); err != nil {
		return "", 0, false
	}
	wc := len(strings.Fields(textBuf.String()))
	if wc < secondOpinionMinWords {
		return "", 0, false
	}
	return htmlBuf.String(), wc, true
}

func isNoisyElement(s *goquery.Selection) bool {
	class, _ := s.Attr("class")
	id, _ := s.Attr("id")
	role, _ := s.Attr("role")
	combined := strings.ToLower(class + " " + id + " " + role)
	for _, noise := range noiseSubstrings {
		if strings.Contains(combined, noise) {
			return true
		}
	}
	return false
}

func paragraphDensityScore(s *goquery.Selection) (paraWords, totalWords int) {
	var paraText strings.Builder
	s.Find("p").Each(func(_ int, p *goquery.Selection) {
		paraText.WriteString(p.Text())
		paraText.WriteString(" ")
	})
	paraWords = len(strings.Fields(paraText.String()))
	totalWords = len(strings.Fields(s.Text()))
	return
}

// domHeuristicExtract extracts main content by stripping boilerplate,
// then trying priority CSS selectors, then scoring div/section
// elements by paragraph density, falling back to the full body.
func domHeuristicExtract(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find(strings.Join(boilerplateTags, ", ")).Remove()
	doc.Find("div, section, aside").Each(func(_ int, s *goquery.Selection) {
		if isNoisyElement(s) {
			s.Remove()
		}
	})

	for _, sel := range contentSelectors {
		matches := doc.Find(sel)
		if matches.Length() == 0 {
			continue
		}
		var best *goquery.Selection
		bestWords := -1
		matches.Each(func(_ int, s *goquery.Selection) {
			wc := len(strings.Fields(s.Text()))
			if wc > bestWords {
				bestWords = wc
				best = s
			}
		})
		if best != nil && bestWords >= domMinWords {
			out, err := goquery.OuterHtml(best)
			if err == nil {
				return out
			}
		}
	}

	type candidate struct {
		score float64
		sel   *goquery.Selection
	}
	var candidates []candidate
	doc.Find("div, section").Each(func(_ int, s *goquery.Selection) {
		paraWords, totalWords := paragraphDensityScore(s)
		if paraWords < domMinWords {
			return
		}
		if totalWords < 1 {
			totalWords = 1
		}
		density := float64(paraWords) / float64(totalWords)
		candidates = append(candidates, candidate{score: float64(paraWords) * density, sel: s})
	})

	if len(candidates) > 0 {
		top := candidates[0]
		for _, c := range candidates[1:] {
			if c.score > top.score {
				top = c
			}
		}
		body := doc.Find("body")
		bodyWC := len(strings.Fields(body.Text()))
		topWC := len(strings.Fields(top.sel.Text()))
		if bodyWC == 0 || float64(topWC)/float64(bodyWC) >= dominantShareThreshold {
			out, err := goquery.OuterHtml(top.sel)
			if err == nil {
				return out
			}
		}
		if out, err := body.Html(); err == nil {
			return "<body>" + out + "</body>"
		}
	}

	if out, err := doc.Find("body").Html(); err == nil {
		return "<body>" + out + "</body>"
	}
	return html
}

// ExtractMainContent runs the best-of-two + DOM-heuristic cascade over
// html, then offers the page to registered extractor plugins in
// descending priority, adopting the first plugin output with more words
// than the cascade's result.
func ExtractMainContent(html, pageURL string, reg *plugin.Registry) Result {
	html = Preprocess(html)

	rHTML, rWC, rOK := tryReadability(html, pageURL)
	sHTML, sWC, sOK := trySecondOpinion(html, pageURL)

	var result Result
	switch {
	case rOK && sOK && sWC >= int(float64(rWC)*secondOpinionWinFactor):
		result = Result{HTML: sHTML, Method: entity.MethodTrafilatura, WordCount: sWC}
	case rOK:
		result = Result{HTML: rHTML, Method: entity.MethodReadability, WordCount: rWC}
	case sOK:
		result = Result{HTML: sHTML, Method: entity.MethodTrafilatura, WordCount: sWC}
	default:
		domHTML := domHeuristicExtract(html)
		result = Result{HTML: domHTML, Method: entity.MethodDOMHeuristic, WordCount: countWords(domHTML)}
	}

	if reg == nil {
		return result
	}
	extractors := reg.Extractors()
	sort.SliceStable(extractors, func(i, j int) bool { return extractors[i].Priority() > extractors[j].Priority() })
	for _, p := range extractors {
		if !p.CanExtract(html, pageURL) {
			continue
		}
		out, err := p.Extract(html, pageURL)
		if err != nil || out == "" {
			continue
		}
		wc := countWords(out)
		if wc > result.WordCount {
			result = Result{HTML: out, Method: entity.ExtractionMethod(p.Name()), WordCount: wc}
			break
		}
	}
	return result
}

// ExtractImages collects every <img> in html, resolving src against
// baseURL and deduplicating by resolved URL.
func ExtractImages(html, baseURL string) []entity.Image {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, _ := neturl.Parse(baseURL)

	var images []entity.Image
	seen := map[string]struct{}{}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" {
			if srcset, ok := s.Attr("srcset"); ok {
				first := strings.TrimSpace(strings.Split(srcset, ",")[0])
				src = strings.TrimSpace(strings.Split(first, " ")[0])
			}
		}
		if src == "" {
			return
		}
		if base != nil {
			if resolved, err := base.Parse(src); err == nil {
				src = resolved.String()
			}
		}
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}

		alt := strings.TrimSpace(s.AttrOr("alt", ""))
		caption := ""
		if parent := s.Parent(); goquery.NodeName(parent) == "figure" {
			caption = strings.TrimSpace(parent.Find("figcaption").First().Text())
		}
		images = append(images, entity.Image{URL: src, Alt: alt, Caption: caption})
	})
	return images
}

var skippedHrefPrefixes = []string{"#", "mailto:", "javascript:", "tel:", "data:", "sms:"}

// ExtractLinks collects every <a href> in html, resolving against
// baseURL and tagging each as internal/external relative to baseDomain.
func ExtractLinks(html, baseURL, baseDomain string) []entity.Link {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, _ := neturl.Parse(baseURL)

	var links []entity.Link
	seen := map[string]struct{}{}

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		lower := strings.ToLower(href)
		for _, prefix := range skippedHrefPrefixes {
			if strings.HasPrefix(lower, prefix) {
				return
			}
		}
		if base != nil {
			if resolved, err := base.Parse(href); err == nil {
				href = resolved.String()
			}
		}
		parsed, err := neturl.Parse(href)
		if err == nil && parsed.Scheme != "" && parsed.Scheme != "http" && parsed.Scheme != "https" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}

		text := strings.TrimSpace(s.Text())
		rel := s.AttrOr("rel", "")
		isInternal := baseDomain != "" && err == nil && strings.EqualFold(parsed.Host, baseDomain)

		links = append(links, entity.Link{Href: href, Text: text, Rel: rel, IsInternal: isInternal})
	})
	return links
}
