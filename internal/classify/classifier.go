// Package classify detects the shape of a fetched page — plain static
// HTML, a JavaScript SPA, a cookie-consent wall, a paywall, or
// unknown — and recommends a fetch strategy for it.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pageforge/internal/domain/entity"
	"pageforge/internal/extract/content"
)

// minContentWords is the body-word threshold above which a static
// fetch is considered good enough on its own.
const minContentWords = 150

type framework struct {
	name string
	re   *regexp.Regexp
}

var jsFrameworkPatterns = []framework{
	{"Next.js", regexp.MustCompile(`(?i)/_next/static/|window\.__NEXT_DATA__`)},
	{"Nuxt.js", regexp.MustCompile(`(?i)/__nuxt/|window\.__NUXT__`)},
	{"React/CRA", regexp.MustCompile(`(?i)/static/js/main\.[a-f0-9]+\.js`)},
	{"Webpack", regexp.MustCompile(`(?i)chunk\.[a-f0-9]+\.js`)},
	{"Angular", regexp.MustCompile(`(?i)angular(?:\.min)?\.js|ng-app`)},
	{"Vue", regexp.MustCompile(`(?i)vue(?:\.min)?\.js|data-v-app`)},
	{"Ember", regexp.MustCompile(`(?i)ember(?:\.min)?\.js`)},
	{"Gatsby", regexp.MustCompile(`(?i)gatsby-focus-wrapper|window\.__gatsby`)},
	{"Svelte", regexp.MustCompile(`(?i)svelte(?:kit)?|__svelte`)},
	{"Remix", regexp.MustCompile(`(?i)__remixContext`)},
	{"Astro", regexp.MustCompile(`(?i)astro-island|astro:page-load`)},
}

var jsRootIDRe = regexp.MustCompile(`(?i)^(root|app|__next|__nuxt|app-root|gatsby-focus-wrapper|ember-application)$`)

var paywallCSS = []string{
	".paywall", ".paid-content", ".premium-content",
	"#piano-paywall", ".tp-modal", ".tp-iframe-wrapper",
	".subscriber-only", ".metered-paywall",
	`[class*='paywall']`, `[id*='paywall']`,
	".subscription-required", ".access-denied",
	".piano-container", ".reg-wall",
}

var paywallPhrases = []string{
	"subscribe to continue", "subscribe to read", "sign in to read",
	"this article is for subscribers", "become a member to",
	"unlock this article", "member-only content",
	"you've reached your free article limit", "you have read your free articles",
	"subscribe for unlimited", "create a free account to continue",
}

var cookieWallPhrases = []string{
	"cookie preferences", "essential cookies enable", "cookie consent",
	"manage your cookie", "accept all cookies", "reject all cookies",
	"cookieyes", "cookiebot",
}

var noiseTags = []string{"script", "style", "nav", "header", "footer", "noscript", "aside"}

func rawWordCount(html string) int {
	return len(strings.Fields(regexp.MustCompile(`<[^>]+>`).ReplaceAllString(html, " ")))
}

// RawWordCount counts whitespace-delimited tokens in html after
// stripping tags, with no noise removal. The adaptive fetcher uses
// this (rather than the classifier's noise-stripped BodyWordCount) to
// compare candidate fetch strategies against each other.
func RawWordCount(html string) int {
	return rawWordCount(html)
}

// detectSignals extracts every classification feature from html. It
// parses html twice: once for structural signals that need the raw
// markup (script tags, link rels), and once over a noise-stripped
// copy (scripts/nav/cookie-consent removed) for an accurate visible
// body word count.
func detectSignals(html string) entity.PageSignals {
	var sig entity.PageSignals

	docFull, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		sig.BodyWordCount = rawWordCount(html)
		return sig
	}

	stripped := content.Preprocess(html)
	docText, err := goquery.NewDocumentFromReader(strings.NewReader(stripped))
	if err != nil {
		sig.BodyWordCount = rawWordCount(html)
	} else {
		docText.Find(strings.Join(noiseTags, ", ")).Remove()
		body := docText.Find("body")
		if body.Length() > 0 {
			sig.BodyWordCount = len(strings.Fields(body.Text()))
		} else {
			sig.BodyWordCount = len(strings.Fields(docText.Text()))
		}
	}

	sig.HasMetaTitle = docFull.Find(`meta[property="og:title"]`).Length() > 0 ||
		docFull.Find("title").Length() > 0

	docFull.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		txt := s.Text()
		if strings.Contains(txt, "Article") || strings.Contains(txt, "BlogPosting") || strings.Contains(txt, "NewsArticle") {
			sig.HasArticleSchema = true
			return false
		}
		return true
	})

	docFull.Find("link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if hasRelValue(rel, "amphtml") {
			if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
				sig.AMPURL = strings.TrimSpace(href)
			}
			return false
		}
		return true
	})

	docFull.Find("link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if !hasRelValue(rel, "alternate") {
			return true
		}
		ltype := strings.ToLower(s.AttrOr("type", ""))
		if strings.Contains(ltype, "rss") || strings.Contains(ltype, "atom") {
			if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
				sig.FeedURL = strings.TrimSpace(href)
				return false
			}
		}
		return true
	})

	var allScriptText strings.Builder
	docFull.Find("script").Each(func(_ int, s *goquery.Selection) {
		allScriptText.WriteString(s.AttrOr("src", ""))
		allScriptText.WriteString(" ")
		allScriptText.WriteString(s.Text())
		allScriptText.WriteString(" ")
	})
	scriptText := allScriptText.String()
	for _, fw := range jsFrameworkPatterns {
		if fw.re.MatchString(scriptText) {
			sig.FrameworksDetected = append(sig.FrameworksDetected, fw.name)
		}
	}

	docFull.Find("[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		if !jsRootIDRe.MatchString(id) {
			return true
		}
		if len(strings.Fields(s.Text())) < 20 {
			sig.JSRootFound = true
			return false
		}
		return true
	})

	hasScriptWithSrc := docFull.Find("script[src]").Length() > 0
	if (len(sig.FrameworksDetected) > 0 && (sig.JSRootFound || sig.BodyWordCount < 100)) ||
		(sig.BodyWordCount < 10 && hasScriptWithSrc) {
		sig.IsJSSpa = true
	}

	body := docFull.Find("body")
	bodyLower := strings.ToLower(body.Text())
	if body.Length() == 0 {
		bodyLower = strings.ToLower(docFull.Text())
	}

	cookieHits := 0
	for _, p := range cookieWallPhrases {
		if strings.Contains(bodyLower, p) {
			cookieHits++
		}
	}
	if cookieHits >= 2 || (cookieHits >= 1 && sig.BodyWordCount < 150) {
		sig.IsCookieWalled = true
	}

	if !sig.IsCookieWalled {
		paywallHits := 0
		for _, p := range paywallPhrases {
			if strings.Contains(bodyLower, p) {
				paywallHits++
			}
		}
		if paywallHits >= 1 {
			sig.IsPaywalled = true
		} else {
			for _, sel := range paywallCSS {
				if docFull.Find(sel).Length() > 0 {
					sig.IsPaywalled = true
					break
				}
			}
		}
	}

	return sig
}

func hasRelValue(rel, want string) bool {
	for _, v := range strings.Fields(rel) {
		if v == want {
			return true
		}
	}
	return false
}

// Classify inspects html and recommends a fetch strategy, in priority
// order: JS SPA > cookie wall > paywall > AMP available > good static
// > thin static with metadata > default static.
func Classify(html, url string) entity.ClassificationResult {
	sig := detectSignals(html)

	if sig.IsJSSpa {
		strategy := entity.StrategyPlaywright
		if sig.AMPURL != "" {
			strategy = entity.StrategyAMP
		}
		fw := "ultra-thin body + scripts"
		confidence := 0.80
		if len(sig.FrameworksDetected) > 0 {
			fw = strings.Join(sig.FrameworksDetected, ", ")
			confidence = 0.90
		}
		return entity.ClassificationResult{
			PageType:            entity.PageJSSpa,
			Signals:             sig,
			RecommendedStrategy: strategy,
			Confidence:          confidence,
			Reason:              "JS SPA (" + fw + "); visible body=" + strconv.Itoa(sig.BodyWordCount) + " words",
		}
	}

	if sig.IsCookieWalled {
		return entity.ClassificationResult{
			PageType:            entity.PageCookieWalled,
			Signals:             sig,
			RecommendedStrategy: entity.StrategyPlaywright,
			Confidence:          0.85,
			Reason:              "Cookie-consent wall detected; visible body=" + strconv.Itoa(sig.BodyWordCount) + " words",
		}
	}

	if sig.IsPaywalled && sig.BodyWordCount < 500 {
		return entity.ClassificationResult{
			PageType:            entity.PagePaywalled,
			Signals:             sig,
			RecommendedStrategy: entity.StrategyPlaywright,
			Confidence:          0.75,
			Reason:              "Paywall detected — a headless render may bypass soft paywalls",
		}
	}

	if sig.AMPURL != "" && sig.BodyWordCount < minContentWords {
		return entity.ClassificationResult{
			PageType:            entity.PageStaticHTML,
			Signals:             sig,
			RecommendedStrategy: entity.StrategyAMP,
			Confidence:          0.70,
			Reason:              "AMP URL found; thin static body (" + strconv.Itoa(sig.BodyWordCount) + " words)",
		}
	}

	if sig.BodyWordCount >= minContentWords {
		return entity.ClassificationResult{
			PageType:            entity.PageStaticHTML,
			Signals:             sig,
			RecommendedStrategy: entity.StrategyStatic,
			Confidence:          0.90,
			Reason:              "Static HTML; " + strconv.Itoa(sig.BodyWordCount) + " body words — no JS needed",
		}
	}

	if sig.HasMetaTitle && sig.BodyWordCount < minContentWords {
		strategy := entity.StrategyMobileUA
		if sig.AMPURL != "" {
			strategy = entity.StrategyAMP
		}
		return entity.ClassificationResult{
			PageType:            entity.PageUnknown,
			Signals:             sig,
			RecommendedStrategy: strategy,
			Confidence:          0.50,
			Reason:              "Thin content (" + strconv.Itoa(sig.BodyWordCount) + " words), metadata present",
		}
	}

	return entity.ClassificationResult{
		PageType:            entity.PageStaticHTML,
		Signals:             sig,
		RecommendedStrategy: entity.StrategyStatic,
		Confidence:          0.55,
		Reason:              "Default static (" + strconv.Itoa(sig.BodyWordCount) + " body words)",
	}
}

