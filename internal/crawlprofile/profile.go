// Package crawlprofile loads YAML crawl profiles: a default settings
// block plus per-domain overrides, merged against the domain of the
// URL being crawled.
package crawlprofile

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is one merged profile: the default block overridden by the
// longest-matching domain entry.
type Settings struct {
	MaxPages           int      `yaml:"max_pages"`
	MaxDepth           int      `yaml:"max_depth"`
	RenderJS           string   `yaml:"render_js"`
	IncludeRegex       string   `yaml:"include_regex"`
	ExcludeRegex       string   `yaml:"exclude_regex"`
	AllowSubdomains    bool     `yaml:"allow_subdomains"`
	ExtraDomains       []string `yaml:"extra_domains"`
	ConcurrentRequests int      `yaml:"concurrent_requests"`
	RequestDelaySec    float64  `yaml:"request_delay_sec"`
	UserAgent          string   `yaml:"user_agent"`
	ProxyList          []string `yaml:"proxy_list"`
}

type document struct {
	Default map[string]any            `yaml:"default"`
	Domains map[string]map[string]any `yaml:"domains"`
}

// Load reads a profile file and returns the settings merged for
// targetURL's domain: the default block overridden by the
// longest-matching domain key (an exact match or a suffix match when
// the key is a parent domain of targetURL's host).
func Load(path, targetURL string) (Settings, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- path comes from CLI configuration, not end-user input
	if err != nil {
		return Settings{}, fmt.Errorf("crawlprofile: read %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Settings{}, fmt.Errorf("crawlprofile: parse %s: %w", path, err)
	}

	host := ""
	if u, err := url.Parse(targetURL); err == nil {
		host = strings.ToLower(u.Host)
	}

	merged := map[string]any{}
	for k, v := range doc.Default {
		merged[k] = v
	}

	bestKey := ""
	var bestCfg map[string]any
	for key, cfg := range doc.Domains {
		keyLower := strings.ToLower(key)
		if (host == keyLower || strings.HasSuffix(host, "."+keyLower)) && len(keyLower) > len(bestKey) {
			bestKey = keyLower
			bestCfg = cfg
		}
	}
	for k, v := range bestCfg {
		merged[k] = v
	}

	return decodeSettings(merged)
}

// decodeSettings round-trips the merged map through YAML so the
// existing yaml struct tags on Settings drive the conversion, rather
// than hand-rolling a type switch per field.
func decodeSettings(merged map[string]any) (Settings, error) {
	raw, err := yaml.Marshal(merged)
	if err != nil {
		return Settings{}, fmt.Errorf("crawlprofile: re-encode merged settings: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("crawlprofile: decode merged settings: %w", err)
	}
	return s, nil
}
