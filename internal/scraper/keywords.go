package scraper

import (
	"regexp"
	"strings"
)

// MaxKeywords caps the keywords stored per article.
const MaxKeywords = 10

var reKeyword = regexp.MustCompile(`\b[a-z]{3,}\b`)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "were": true, "been": true, "be": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true,
	"this": true, "that": true, "these": true, "those": true, "it": true, "its": true,
	"what": true, "which": true, "who": true, "when": true, "where": true, "why": true,
	"how": true,
}

// ExtractKeywords returns up to MaxKeywords distinct lower-case words of three
// or more ASCII letters from the title and description, in order of first
// appearance, skipping stopwords.
func ExtractKeywords(title, description string) []string {
	text := strings.ToLower(title + " " + description)

	seen := make(map[string]bool)
	out := make([]string, 0, MaxKeywords)
	for _, w := range reKeyword.FindAllString(text, -1) {
		if seen[w] || stopwords[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}
