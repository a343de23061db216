package scraper

import (
	"strings"
	"time"
)

// Field is an optional feed field. A field that is present but blank counts
// as absent.
type Field struct {
	value string
	set   bool
}

// Value returns a present field holding s.
func Value(s string) Field {
	return Field{value: s, set: true}
}

// Get returns the trimmed value and whether the field carries any text.
func (f Field) Get() (string, bool) {
	if !f.set {
		return "", false
	}
	v := strings.TrimSpace(f.value)
	if v == "" {
		return "", false
	}
	return v, true
}

// RawItem is one feed entry with every field the extractor recognises.
type RawItem struct {
	Title     string
	Link      string
	Published *time.Time

	MediaContentURL Field // media:content url attribute
	EnclosureURL    Field // enclosure url attribute
	ContentEncoded  Field // content:encoded (RSS) or content (Atom)
	Description     Field // description (RSS) or summary (Atom)
	Snippet         Field // plain-text summary supplied by the feed
}

// ExtractImageURL picks the representative image of an item. Sources are
// tried in order: media:content, enclosure, the first <img> in
// content:encoded, the first <img> in description. It returns "" when none
// yields a URL.
func ExtractImageURL(item RawItem) string {
	if u, ok := item.MediaContentURL.Get(); ok {
		return u
	}
	if u, ok := item.EnclosureURL.Get(); ok {
		return u
	}
	if html, ok := item.ContentEncoded.Get(); ok {
		if src := firstImageSrc(html); src != "" {
			return src
		}
	}
	if html, ok := item.Description.Get(); ok {
		if src := firstImageSrc(html); src != "" {
			return src
		}
	}
	return ""
}

// ExtractDescription returns plain display text for an item: the feed's own
// snippet when it has one, otherwise the cleaned description. It returns ""
// when nothing usable remains.
func ExtractDescription(item RawItem) string {
	if s, ok := item.Snippet.Get(); ok {
		return s
	}
	if html, ok := item.Description.Get(); ok {
		return CleanText(html)
	}
	return ""
}
