package plugin

import "testing"

type fakeExtractor struct {
	name     string
	priority int
}

func (f fakeExtractor) Name() string                      { return f.name }
func (f fakeExtractor) Priority() int                      { return f.priority }
func (f fakeExtractor) CanExtract(html, url string) bool   { return true }
func (f fakeExtractor) Extract(html, url string) (string, error) { return html, nil }

func TestRegistry_RegisterAndList(t *testing.T) {
	r := New()
	r.RegisterExtractor(fakeExtractor{name: "a", priority: 1})
	r.RegisterExtractor(fakeExtractor{name: "b", priority: 2})

	got := r.Extractors()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := New()
	r.RegisterScorer(nil)
	r.Clear()
	if len(r.Scorers()) != 0 {
		t.Errorf("expected empty registry after Clear")
	}
}

func TestDefault_IsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() should return the same registry every call")
	}
}
