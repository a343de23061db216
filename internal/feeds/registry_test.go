package feeds

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	return path
}

func TestDomain(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.theguardian.com/world/rss", "theguardian.com"},
		{"https://feeds.bbci.co.uk/news/rss.xml", "feeds.bbci.co.uk"},
		{"HTTPS://WWW.Example.COM:8443/feed", "example.com"},
		{"  https://thehill.com/feed/  ", "thehill.com"},
	}
	for _, c := range cases {
		got, err := Domain(c.in)
		if err != nil {
			t.Fatalf("Domain(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Domain(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestDomainRejectsHostless(t *testing.T) {
	for _, in := range []string{"", "not a url", "/relative/path"} {
		if _, err := Domain(in); !errors.Is(err, ErrNoHost) {
			t.Errorf("Domain(%q) err = %v; want ErrNoHost", in, err)
		}
	}
	if _, err := Domain("http://[::1"); err == nil {
		t.Errorf("Domain with broken IPv6 host should fail")
	}
}

func TestReliabilityFor(t *testing.T) {
	want := map[BiasRating]Reliability{
		BiasLeft:      ReliabilityMixed,
		BiasLeanLeft:  ReliabilityHigh,
		BiasCenter:    ReliabilityVeryHigh,
		BiasLeanRight: ReliabilityHigh,
		BiasRight:     ReliabilityMixed,
		"unknown":     ReliabilityMixed,
	}
	for b, r := range want {
		if got := ReliabilityFor(b); got != r {
			t.Errorf("ReliabilityFor(%q) = %q; want %q", b, got, r)
		}
	}
}

func TestParseBiasRating(t *testing.T) {
	b, err := ParseBiasRating(" Lean-Right ")
	if err != nil || b != BiasLeanRight {
		t.Fatalf("ParseBiasRating = %q, %v", b, err)
	}
	if _, err := ParseBiasRating("far-left"); err == nil {
		t.Fatalf("expected error for unknown rating")
	}
}

func TestDefaultCatalog(t *testing.T) {
	list := Default()
	if err := Validate(list); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}

	perBias := make(map[BiasRating]int)
	domains := make(map[string]bool)
	for _, d := range list {
		perBias[d.BiasRating]++
		dom, err := d.Domain()
		if err != nil {
			t.Fatalf("%s: %v", d.Name, err)
		}
		if domains[dom] {
			t.Errorf("duplicate domain %s", dom)
		}
		domains[dom] = true
	}
	for _, b := range BiasRatings {
		if perBias[b] != 3 {
			t.Errorf("bias %s has %d sources; want 3", b, perBias[b])
		}
	}

	// Default returns a copy.
	list[0].Name = "changed"
	if Default()[0].Name == "changed" {
		t.Errorf("Default() shares its backing array")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeRegistry(t, `
sources:
  - name: BBC News
    feed_url: https://feeds.bbci.co.uk/news/rss.xml
    bias_rating: center
  - name: Fox News
    feed_url: https://moxie.foxnews.com/google-publisher/latest.xml
    bias_rating: right
`)
	list, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(list) != 2 || list[1].BiasRating != BiasRight {
		t.Fatalf("unexpected list: %+v", list)
	}

	reg := &FileRegistry{Path: path}
	got, err := reg.Sources(context.Background())
	if err != nil || len(got) != 2 {
		t.Fatalf("FileRegistry.Sources = %v, %v", got, err)
	}
}

func TestLoadFileValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    error
	}{
		{"empty", "sources: []\n", ErrNoSources},
		{"missing name", "sources:\n  - feed_url: https://a.com/rss\n    bias_rating: left\n", ErrSourceMissingName},
		{"missing url", "sources:\n  - name: A\n    bias_rating: left\n", ErrSourceMissingURL},
		{"bad bias", "sources:\n  - name: A\n    feed_url: https://a.com/rss\n    bias_rating: far-left\n", ErrInvalidBias},
		{"duplicate", "sources:\n  - name: A\n    feed_url: https://a.com/rss\n    bias_rating: left\n  - name: A\n    feed_url: https://b.com/rss\n    bias_rating: right\n", ErrDuplicateSource},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := LoadFile(writeRegistry(t, c.content))
			if !errors.Is(err, c.want) {
				t.Fatalf("err = %v; want %v", err, c.want)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	reg := &FileRegistry{Path: filepath.Join(t.TempDir(), "nope.yaml")}
	if _, err := reg.Sources(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
