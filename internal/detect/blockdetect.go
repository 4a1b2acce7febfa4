// Package detect classifies fetched HTML as a bot-protection/CAPTCHA
// page, an IP ban, a soft block, an empty response, or clean content.
// Pure string/regex matching; no network calls.
package detect

import (
	"fmt"
	"regexp"
	"strings"

	"pageforge/internal/domain/entity"
)

var (
	cfBodyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)just a moment`),
		regexp.MustCompile(`(?i)cf-browser-verification`),
		regexp.MustCompile(`(?i)challenges\.cloudflare\.com`),
		regexp.MustCompile(`(?i)cf-challenge`),
		regexp.MustCompile(`(?i)__cf_bm`),
		regexp.MustCompile(`(?i)cf-ray`),
	}
	cfTitlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)attention required`),
		regexp.MustCompile(`(?i)just a moment`),
	}
	captchaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)g-recaptcha`),
		regexp.MustCompile(`(?i)h-captcha`),
		regexp.MustCompile(`(?i)hcaptcha\.com`),
		regexp.MustCompile(`(?i)cf-turnstile`),
		regexp.MustCompile(`(?i)FriendlyCaptcha`),
		regexp.MustCompile(`(?i)recaptcha\.net`),
	}
	dataDomePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)datadome`),
		regexp.MustCompile(`(?i)ddCaptcha`),
		regexp.MustCompile(`(?i)_dd_s`),
	}
	perimeterXPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)px-captcha`),
		regexp.MustCompile(`(?i)pxi_loader`),
		regexp.MustCompile(`(?i)_pxAppId`),
		regexp.MustCompile(`(?i)perimeterx`),
	}
	akamaiPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ak_bmsc`),
		regexp.MustCompile(`(?i)_abck`),
		regexp.MustCompile(`(?i)bmak\.js`),
	}

	externalScriptRe = regexp.MustCompile(`(?i)<script[^>]+\bsrc\s*=\s*["']https?://`)
	tagStripRe       = regexp.MustCompile(`<[^>]+>`)
	titleRe          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

func wordCount(html string) int {
	text := tagStripRe.ReplaceAllString(html, " ")
	return len(strings.Fields(text))
}

func getTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func countExternalScripts(html string) int {
	return len(externalScriptRe.FindAllString(html, -1))
}

func countMatches(html string, patterns []*regexp.Regexp) int {
	n := 0
	for _, p := range patterns {
		if p.MatchString(html) {
			n++
		}
	}
	return n
}

// DetectBlock classifies html as a bot-protection page, IP ban, soft
// block, or empty response, in priority order: ip_ban, cloudflare,
// captcha, datadome, perimeterx, akamai, soft_block, empty. The first
// matching rule wins. url is informational only (it appears in the
// ip_ban reason string). statusCode defaults to 200 semantics when 0.
func DetectBlock(html, url string, statusCode int) entity.BlockResult {
	if statusCode == 0 {
		statusCode = 200
	}
	wc := wordCount(html)

	if (statusCode == 401 || statusCode == 403 || statusCode == 407) && wc < 200 {
		origin := ""
		if url != "" {
			origin = " from " + url
		}
		return entity.BlockResult{
			IsBlocked:   true,
			BlockType:   entity.BlockIPBan,
			BlockReason: fmt.Sprintf("HTTP %d%s with sparse content (%d words)", statusCode, origin, wc),
			Confidence:  0.95,
		}
	}

	title := getTitle(html)
	cfTitleHit := false
	for _, p := range cfTitlePatterns {
		if p.MatchString(title) {
			cfTitleHit = true
			break
		}
	}
	cfBodyHit := false
	for _, p := range cfBodyPatterns {
		if p.MatchString(html) {
			cfBodyHit = true
			break
		}
	}
	if cfTitleHit || cfBodyHit {
		return entity.BlockResult{
			IsBlocked:   true,
			BlockType:   entity.BlockCloudflare,
			BlockReason: "Cloudflare challenge page detected",
			Confidence:  0.95,
		}
	}

	if hits := countMatches(html, captchaPatterns); hits >= 1 {
		return entity.BlockResult{
			IsBlocked:   true,
			BlockType:   entity.BlockCaptcha,
			BlockReason: fmt.Sprintf("CAPTCHA widget detected (%d signal(s))", hits),
			Confidence:  0.90,
		}
	}

	if hits := countMatches(html, dataDomePatterns); hits >= 1 {
		return entity.BlockResult{
			IsBlocked:   true,
			BlockType:   entity.BlockDataDome,
			BlockReason: fmt.Sprintf("DataDome bot protection detected (%d signal(s))", hits),
			Confidence:  0.92,
		}
	}

	if hits := countMatches(html, perimeterXPatterns); hits >= 1 {
		return entity.BlockResult{
			IsBlocked:   true,
			BlockType:   entity.BlockPerimeterX,
			BlockReason: fmt.Sprintf("PerimeterX bot protection detected (%d signal(s))", hits),
			Confidence:  0.92,
		}
	}

	if hits := countMatches(html, akamaiPatterns); hits >= 1 {
		return entity.BlockResult{
			IsBlocked:   true,
			BlockType:   entity.BlockAkamai,
			BlockReason: fmt.Sprintf("Akamai bot manager detected (%d signal(s))", hits),
			Confidence:  0.90,
		}
	}

	extScripts := countExternalScripts(html)
	if wc < 30 && extScripts > 6 {
		return entity.BlockResult{
			IsBlocked: true,
			BlockType: entity.BlockSoft,
			BlockReason: fmt.Sprintf(
				"Sparse content (%d words) with heavy JS load (%d external scripts)", wc, extScripts),
			Confidence: 0.75,
		}
	}

	if statusCode == 200 && wc < 20 {
		return entity.BlockResult{
			IsBlocked:   true,
			BlockType:   entity.BlockEmptyPage,
			BlockReason: fmt.Sprintf("HTTP 200 but page has only %d words", wc),
			Confidence:  0.80,
		}
	}

	return entity.BlockResult{IsBlocked: false, Confidence: 1.0}
}
