package normalize

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercase scheme host, strip default port, strip fragment, drop tracking, sort params",
			in:   "HTTPS://Example.COM:443/Post?utm_source=x&b=2&a=1#frag",
			want: "https://example.com/Post?a=1&b=2",
		},
		{
			name: "tracking-only query strips entirely",
			in:   "https://example.com/p?utm_source=a&fbclid=b",
			want: "https://example.com/p",
		},
		{
			name: "non-default port kept",
			in:   "https://example.com:8443/p",
			want: "https://example.com:8443/p",
		},
		{
			name: "invalid url returned unchanged",
			in:   "://bad",
			want: "://bad",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	urls := []string{
		"https://example.com/a/b?z=1&a=2&utm_source=x",
		"HTTP://Foo.com:80/bar#baz",
	}
	for _, u := range urls {
		once := Normalize(u)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent: Normalize(%q)=%q, Normalize(that)=%q", u, once, twice)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"basic blog path", "https://example.com/blog/how-to-scrape-data", "blog-how-to-scrape-data"},
		{"empty path falls back to host", "https://example.com", "example-com"},
		{"collapses punctuation", "https://example.com/a!!b??c", "a-b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.in, 100); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsAsset(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/image.jpg", true},
		{"https://example.com/style.css", true},
		{"https://example.com/article", false},
		{"https://example.com/article.html", false},
	}
	for _, tt := range tests {
		if got := IsAsset(tt.in); got != tt.want {
			t.Errorf("IsAsset(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDomain(t *testing.T) {
	if got := Domain("https://Example.COM/p"); got != "example.com" {
		t.Errorf("Domain = %q, want example.com", got)
	}
}
