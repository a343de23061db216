package feeds

// defaultSources is the built-in catalog, three sources per bias rating.
var defaultSources = []Descriptor{
	{Name: "The Guardian", FeedURL: "https://www.theguardian.com/world/rss", BiasRating: BiasLeft},
	{Name: "NBC News", FeedURL: "https://www.nbcnews.com/rss/nbcnews/public/news", BiasRating: BiasLeft},
	{Name: "Huffington Post", FeedURL: "https://www.huffpost.com/section/front-page/feed", BiasRating: BiasLeft},

	{Name: "NPR", FeedURL: "https://feeds.npr.org/1001/rss.xml", BiasRating: BiasLeanLeft},
	{Name: "The New York Times", FeedURL: "https://rss.nytimes.com/services/xml/rss/nyt/HomePage.xml", BiasRating: BiasLeanLeft},
	{Name: "Washington Post", FeedURL: "https://feeds.washingtonpost.com/rss/world", BiasRating: BiasLeanLeft},

	{Name: "BBC News", FeedURL: "https://feeds.bbci.co.uk/news/rss.xml", BiasRating: BiasCenter},
	{Name: "Bloomberg", FeedURL: "https://feeds.bloomberg.com/politics/news.rss", BiasRating: BiasCenter},
	{Name: "Axios", FeedURL: "https://api.axios.com/feed/", BiasRating: BiasCenter},

	{Name: "Wall Street Journal", FeedURL: "https://feeds.a.dj.com/rss/RSSWorldNews.xml", BiasRating: BiasLeanRight},
	{Name: "The Hill", FeedURL: "https://thehill.com/feed/", BiasRating: BiasLeanRight},
	{Name: "The Washington Times", FeedURL: "https://www.washingtontimes.com/rss/headlines/news/", BiasRating: BiasLeanRight},

	{Name: "Fox News", FeedURL: "https://moxie.foxnews.com/google-publisher/latest.xml", BiasRating: BiasRight},
	{Name: "Breitbart", FeedURL: "https://www.breitbart.com/feed/", BiasRating: BiasRight},
	{Name: "The Daily Wire", FeedURL: "https://www.dailywire.com/feeds/rss.xml", BiasRating: BiasRight},
}

// Default returns a copy of the built-in source catalog.
func Default() []Descriptor {
	out := make([]Descriptor, len(defaultSources))
	copy(out, defaultSources)
	return out
}
