package handlers

import (
	"encoding/xml"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Saul-Punybz/unbiased/internal/feeds"
	"github.com/Saul-Punybz/unbiased/internal/models"
)

const feedItemLimit = 50

// FeedHandler re-exports aggregated articles as RSS.
type FeedHandler struct {
	Articles ArticleReader
}

// ServeFeed handles GET /feed.xml. It accepts the article filters of
// ListArticles and returns the newest matches as RSS 2.0, with the source's
// bias rating as each item's category.
func (h *FeedHandler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	filter, err := parseArticleFilter(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	articles, err := h.Articles.Find(r.Context(), filter, models.SortNewest, feedItemLimit, 0)
	if err != nil {
		slog.Error("feed: list articles", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// HTTP caching: the newest change among the listed articles.
	var lastMod time.Time
	for _, a := range articles {
		if a.UpdatedAt.After(lastMod) {
			lastMod = a.UpdatedAt
		}
	}
	if !lastMod.IsZero() {
		lastMod = lastMod.UTC().Truncate(time.Second)
		w.Header().Set("Last-Modified", lastMod.Format(http.TimeFormat))
		etag := fmt.Sprintf(`"%x-%d"`, lastMod.Unix(), len(articles))
		w.Header().Set("ETag", etag)

		if ifNone := r.Header.Get("If-None-Match"); ifNone != "" {
			if strings.Contains(ifNone, etag) {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		} else if ifMod := r.Header.Get("If-Modified-Since"); ifMod != "" {
			if t, err := http.ParseTime(ifMod); err == nil && !lastMod.After(t) {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}
	w.Header().Set("Cache-Control", "public, max-age=900")

	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	baseURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	lastBuild := time.Now().UTC()
	if !lastMod.IsZero() {
		lastBuild = lastMod
	}

	channel := rssChannel{
		Title:       "Unbiased",
		Link:        baseURL,
		Description: "News from across the political spectrum",
		Language:    "en",
		LastBuild:   lastBuild.Format(time.RFC1123Z),
		TTL:         60,
		AtomLink: rssAtomLink{
			Href: baseURL + r.URL.RequestURI(),
			Rel:  "self",
			Type: "application/rss+xml",
		},
	}
	for _, a := range articles {
		channel.Items = append(channel.Items, rssItem{
			Title:          fmt.Sprintf("[%s] %s", a.SourceName, a.Title),
			Link:           a.URL,
			Desc:           a.Description,
			ContentEncoded: cdataStr{Value: buildContentHTML(a)},
			Source:         rssSource{URL: "https://" + a.SourceDomain, Value: a.SourceName},
			PubDate:        a.PublishedAt.UTC().Format(time.RFC1123Z),
			GUID:           rssGUID{IsPermaLink: "true", Value: a.URL},
			Category:       string(a.BiasRating),
		})
	}

	rss := rssFeed{
		Version:   "2.0",
		NSContent: "http://purl.org/rss/1.0/modules/content/",
		NSAtom:    "http://www.w3.org/2005/Atom",
		Channel:   channel,
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(rss); err != nil {
		slog.Error("feed: encode", "err", err)
	}
}

// biasColors tints the bias badge, left to right.
var biasColors = map[feeds.BiasRating]string{
	feeds.BiasLeft:      "#1d4ed8",
	feeds.BiasLeanLeft:  "#60a5fa",
	feeds.BiasCenter:    "#6b7280",
	feeds.BiasLeanRight: "#f87171",
	feeds.BiasRight:     "#b91c1c",
}

// buildContentHTML creates rich HTML for the content:encoded field.
func buildContentHTML(a models.Article) string {
	var b strings.Builder

	if a.ImageURL != "" {
		b.WriteString(`<p><img src="`)
		b.WriteString(html.EscapeString(a.ImageURL))
		b.WriteString(`" alt=""/></p>`)
	}

	if a.Description != "" {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(a.Description))
		b.WriteString("</p>")
	}

	color, ok := biasColors[a.BiasRating]
	if !ok {
		color = "#6b7280"
	}
	b.WriteString(fmt.Sprintf(
		`<p><span style="display:inline-block;padding:2px 8px;border-radius:4px;font-size:12px;font-weight:bold;color:#fff;background:%s">%s</span></p>`,
		color, html.EscapeString(strings.ToUpper(a.BiasRating.Label())),
	))

	b.WriteString("<p style=\"font-size:11px;color:#9ca3af;\">")
	b.WriteString(html.EscapeString(a.SourceName))
	if len(a.Keywords) > 0 {
		b.WriteString(" &mdash; ")
		b.WriteString(html.EscapeString(strings.Join(a.Keywords, ", ")))
	}
	b.WriteString("</p>")

	return b.String()
}

// ── RSS XML types ────────────────────────────────────────────────

type rssFeed struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	NSContent string     `xml:"xmlns:content,attr"`
	NSAtom    string     `xml:"xmlns:atom,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string      `xml:"title"`
	Link        string      `xml:"link"`
	Description string      `xml:"description"`
	Language    string      `xml:"language"`
	LastBuild   string      `xml:"lastBuildDate"`
	TTL         int         `xml:"ttl"`
	AtomLink    rssAtomLink `xml:"atom:link"`
	Items       []rssItem   `xml:"item"`
}

type rssAtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title          string    `xml:"title"`
	Link           string    `xml:"link"`
	Desc           string    `xml:"description,omitempty"`
	ContentEncoded cdataStr  `xml:"content:encoded"`
	Source         rssSource `xml:"source"`
	PubDate        string    `xml:"pubDate"`
	GUID           rssGUID   `xml:"guid"`
	Category       string    `xml:"category"`
}

type rssSource struct {
	URL   string `xml:"url,attr"`
	Value string `xml:",chardata"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type cdataStr struct {
	Value string `xml:",cdata"`
}
