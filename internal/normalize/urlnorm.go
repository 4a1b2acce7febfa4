// Package normalize canonicalizes URLs for deduplication and derives
// filesystem-safe slugs and asset/domain helpers from them.
package normalize

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// trackingParams carries no semantic meaning for content identity and is
// stripped by Normalize. utm_* is handled as a prefix match below rather
// than enumerated here.
var trackingParams = map[string]struct{}{
	"fbclid":       {},
	"gclid":        {},
	"gclsrc":       {},
	"dclid":        {},
	"msclkid":      {},
	"ref":          {},
	"source":       {},
	"via":          {},
	"_ga":          {},
	"_gac":         {},
	"mc_cid":       {},
	"mc_eid":       {},
	"igshid":       {},
	"s_kwcid":      {},
	"ef_id":        {},
	"affiliate_id": {},
	"clickid":      {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ftp":   "21",
}

var (
	slugUnsafeRe   = regexp.MustCompile(`[^\w\-]`)
	multiDashRe    = regexp.MustCompile(`-{2,}`)
	leadTrailDash  = regexp.MustCompile(`^-+|-+$`)
)

// nonContentExtensions are asset extensions IsAsset recognizes as never
// holding article HTML.
var nonContentExtensions = map[string]struct{}{
	".pdf": {}, ".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {},
	".webp": {}, ".bmp": {}, ".tiff": {}, ".ico": {},
	".css": {}, ".js": {}, ".json": {}, ".xml": {}, ".txt": {}, ".csv": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".rar": {}, ".7z": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {}, ".webm": {},
}

func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	if strings.HasPrefix(k, "utm_") {
		return true
	}
	_, ok := trackingParams[k]
	return ok
}

// Normalize returns a canonical form of rawURL suitable for deduplication:
// lowercases scheme and host, drops the default port for http/https/ftp,
// strips the fragment, removes tracking query parameters, and sorts the
// remaining parameters by key while preserving each key's value order.
// Invalid input is returned unchanged.
func Normalize(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil {
		return rawURL
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	host := strings.ToLower(u.Host)

	if h, p, ok := strings.Cut(host, ":"); ok {
		if defaultPorts[scheme] == p {
			host = h
		}
	}

	q := u.Query()
	cleaned := url.Values{}
	for k, v := range q {
		if isTrackingParam(k) {
			continue
		}
		cleaned[k] = v
	}

	out := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     u.Path,
		Opaque:   u.Opaque,
		RawQuery: encodeSortedValues(cleaned),
	}
	return out.String()
}

// encodeSortedValues renders query values with keys sorted lexically,
// matching the Python implementation's sorted(cleaned.items()).
func encodeSortedValues(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for _, k := range keys {
		for _, val := range v[k] {
			if buf.Len() > 0 {
				buf.WriteByte('&')
			}
			buf.WriteString(url.QueryEscape(k))
			buf.WriteByte('=')
			buf.WriteString(url.QueryEscape(val))
		}
	}
	return buf.String()
}

// Slug converts a URL into a filesystem-safe token derived from its path
// (or host, if the path is empty), collapsing runs of non-word/dash
// characters to a single dash and truncating to maxLen. An empty result
// becomes "index".
func Slug(rawURL string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 100
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p := strings.Trim(u.Path, "/")
		if p == "" {
			p = strings.ReplaceAll(u.Host, ".", "-")
		}
		path = p
	}

	s := slugUnsafeRe.ReplaceAllString(path, "-")
	s = multiDashRe.ReplaceAllString(s, "-")
	s = leadTrailDash.ReplaceAllString(s, "")
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = leadTrailDash.ReplaceAllString(s, "")

	if s == "" {
		return "index"
	}
	return s
}

// IsAsset reports whether rawURL's final path extension belongs to a
// closed set of non-HTML asset types (images, audio, video, fonts,
// archives, css/js/json/xml/csv/pdf/txt).
func IsAsset(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return false
	}
	ext := path[idx:]
	_, ok := nonContentExtensions[ext]
	return ok
}

// Domain returns the lowercased host component of rawURL, or "" on
// parse failure.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
