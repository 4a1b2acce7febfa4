package content

import (
	"strings"
	"testing"
)

func TestPreprocess_StripsCookieBanner(t *testing.T) {
	html := `<html><body><div id="onetrust-banner-sdk">Accept cookies</div><p>hello</p></body></html>`
	out := Preprocess(html)
	if strings.Contains(out, "onetrust-banner-sdk") {
		t.Errorf("cookie banner not stripped: %s", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("article content should survive preprocessing: %s", out)
	}
}

func TestPreprocess_StripsTemplateBlocks(t *testing.T) {
	html := `<html><body><template><div class="wpconsent">hidden</div></template><p>visible</p></body></html>`
	out := Preprocess(html)
	if strings.Contains(out, "hidden") {
		t.Errorf("template content should be stripped: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("visible content should survive: %s", out)
	}
}

func TestDomHeuristicExtract_PrefersArticleTag(t *testing.T) {
	html := `<html><body>
		<nav>navigation links</nav>
		<article>` + strings.Repeat("word ", 40) + `</article>
		<aside class="sidebar">` + strings.Repeat("ad ", 40) + `</aside>
	</body></html>`
	out := domHeuristicExtract(html)
	if strings.Contains(out, "navigation") || strings.Contains(out, "sidebar") {
		t.Errorf("boilerplate/noise leaked into extracted content: %s", out)
	}
}

func TestExtractImages_DedupesAndResolves(t *testing.T) {
	html := `<html><body>
		<figure><img src="/a.jpg"><figcaption>caption one</figcaption></figure>
		<img src="/a.jpg">
		<img src="b.jpg" alt="second">
	</body></html>`
	images := ExtractImages(html, "https://example.com/post/")
	if len(images) != 2 {
		t.Fatalf("len = %d, want 2 (dedup by resolved url)", len(images))
	}
	if images[0].URL != "https://example.com/a.jpg" {
		t.Errorf("url = %q", images[0].URL)
	}
	if images[0].Caption != "caption one" {
		t.Errorf("caption = %q", images[0].Caption)
	}
}

func TestExtractLinks_SkipsNonHTTPSchemes(t *testing.T) {
	html := `<html><body>
		<a href="mailto:a@b.com">mail</a>
		<a href="/about">About</a>
		<a href="https://other.com/x">Other</a>
	</body></html>`
	links := ExtractLinks(html, "https://example.com/", "example.com")
	if len(links) != 2 {
		t.Fatalf("len = %d, want 2", len(links))
	}
	found := map[string]bool{}
	for _, l := range links {
		found[l.Href] = l.IsInternal
	}
	if !found["https://example.com/about"] {
		t.Error("expected internal about link resolved")
	}
	if found["https://other.com/x"] {
		t.Error("other.com link should not be marked internal")
	}
}
