package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry validation errors.
var (
	ErrNoSources         = errors.New("at least one source is required")
	ErrSourceMissingName = errors.New("source name is required")
	ErrSourceMissingURL  = errors.New("source feed_url is required")
	ErrDuplicateSource   = errors.New("source name must be unique")
	ErrInvalidBias       = errors.New("source bias_rating must be one of: left, lean-left, center, lean-right, right")
	ErrNoHost            = errors.New("feed url has no host")
)

// Descriptor names one news source, its feed URL, and its curated bias.
type Descriptor struct {
	Name       string     `yaml:"name" json:"name"`
	FeedURL    string     `yaml:"feed_url" json:"feedUrl"`
	BiasRating BiasRating `yaml:"bias_rating" json:"biasRating"`
}

// Domain returns the natural storage key of the source: the host of its feed
// URL, lower-cased, without a leading "www.".
func (d Descriptor) Domain() (string, error) {
	return Domain(d.FeedURL)
}

// Domain derives the storage domain from a feed URL.
func Domain(feedURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(feedURL))
	if err != nil {
		return "", fmt.Errorf("feeds: parse url %q: %w", feedURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("feeds: %q: %w", feedURL, ErrNoHost)
	}
	return strings.TrimPrefix(host, "www."), nil
}

// StaticRegistry serves a fixed list of descriptors.
type StaticRegistry struct {
	list []Descriptor
}

// NewStaticRegistry wraps a descriptor list.
func NewStaticRegistry(list []Descriptor) *StaticRegistry {
	return &StaticRegistry{list: list}
}

// Sources returns a copy of the descriptor list.
func (r *StaticRegistry) Sources(context.Context) ([]Descriptor, error) {
	out := make([]Descriptor, len(r.list))
	copy(out, r.list)
	return out, nil
}

// FileRegistry reads descriptors from a YAML file on every call so edits to
// the file apply to the next run without a restart.
type FileRegistry struct {
	Path string
}

// Sources loads and validates the registry file.
func (r *FileRegistry) Sources(context.Context) ([]Descriptor, error) {
	return LoadFile(r.Path)
}

type registryFile struct {
	Sources []Descriptor `yaml:"sources"`
}

// LoadFile reads a YAML registry of the form:
//
//	sources:
//	  - name: BBC News
//	    feed_url: https://feeds.bbci.co.uk/news/rss.xml
//	    bias_rating: center
func LoadFile(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("feeds: read registry: %w", err)
	}

	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("feeds: parse registry: %w", err)
	}

	if err := Validate(f.Sources); err != nil {
		return nil, fmt.Errorf("feeds: invalid registry %s: %w", path, err)
	}
	return f.Sources, nil
}

// Validate checks a descriptor list for missing fields, unknown ratings, and
// duplicate names.
func Validate(list []Descriptor) error {
	if len(list) == 0 {
		return ErrNoSources
	}

	seen := make(map[string]bool, len(list))
	for i, d := range list {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingName, i)
		}
		if strings.TrimSpace(d.FeedURL) == "" {
			return fmt.Errorf("%w: source[%d] %s", ErrSourceMissingURL, i, d.Name)
		}
		if !d.BiasRating.Valid() {
			return fmt.Errorf("%w: source[%d] %s has %q", ErrInvalidBias, i, d.Name, d.BiasRating)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}
