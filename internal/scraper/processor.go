package scraper

import (
	"regexp"
	"strings"
)

// reHTMLTag matches HTML tags.
var reHTMLTag = regexp.MustCompile(`<[^>]*>`)

// reScriptStyle matches script and style blocks including their contents.
var reScriptStyle = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>|<style\b[^>]*>.*?</style\s*>`)

// reWhitespace matches sequences of whitespace (spaces, tabs, newlines).
var reWhitespace = regexp.MustCompile(`\s+`)

// reImgSrc matches the src attribute of an <img> tag.
var reImgSrc = regexp.MustCompile(`(?i)<img[^>]+src\s*=\s*["']([^"']+)["']`)

// entityReplacer decodes the entities feeds commonly leave in descriptions.
// A single pass means "&amp;lt;" becomes "&lt;", never "<".
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
)

// CleanText turns a fragment of feed HTML into a single line of display text:
// script and style blocks are dropped, remaining tags stripped, common
// entities decoded and whitespace collapsed.
func CleanText(html string) string {
	if html == "" {
		return ""
	}

	text := reScriptStyle.ReplaceAllString(html, " ")
	text = reHTMLTag.ReplaceAllString(text, " ")
	text = entityReplacer.Replace(text)
	text = reWhitespace.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// firstImageSrc returns the src of the first <img> tag in html.
func firstImageSrc(html string) string {
	m := reImgSrc.FindStringSubmatch(html)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// truncate shortens s to at most n runes for log output.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
