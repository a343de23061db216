package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func articlePages() *httptest.Server {
	mux := http.NewServeMux()
	page := func(head string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, "<html><head>%s</head><body><p>story</p></body></html>", head)
		}
	}
	mux.HandleFunc("/og", page(`<meta property="og:image" content=" https://img.example/og.jpg ">
		<meta name="twitter:image" content="https://img.example/tw.jpg">`))
	mux.HandleFunc("/twitter", page(`<meta name="twitter:image" content="https://img.example/tw.jpg">`))
	mux.HandleFunc("/plain", page(`<title>no image</title>`))
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return httptest.NewServer(mux)
}

func TestPageImage(t *testing.T) {
	srv := articlePages()
	defer srv.Close()

	s := NewScraper()
	tests := []struct {
		path string
		want string
	}{
		{"/og", "https://img.example/og.jpg"},
		{"/twitter", "https://img.example/tw.jpg"},
		{"/plain", ""},
		{"/gone", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := s.PageImage(context.Background(), srv.URL+tt.path); got != tt.want {
				t.Errorf("PageImage = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestPageImageCancelled(t *testing.T) {
	srv := articlePages()
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := NewScraper().PageImage(ctx, srv.URL+"/og"); got != "" {
		t.Errorf("cancelled lookup = %q", got)
	}
}

func TestFillImages(t *testing.T) {
	srv := articlePages()
	defer srv.Close()

	articles := []Article{
		{Title: "has image", URL: srv.URL + "/plain", ImageURL: "https://img.example/keep.jpg"},
		{Title: "og", URL: srv.URL + "/og"},
		{Title: "plain", URL: srv.URL + "/plain"},
		{Title: "over limit", URL: srv.URL + "/twitter"},
	}

	filled := NewScraper().FillImages(context.Background(), articles, 2)
	if filled != 1 {
		t.Errorf("filled = %d; want 1", filled)
	}
	if articles[0].ImageURL != "https://img.example/keep.jpg" {
		t.Errorf("existing image overwritten: %q", articles[0].ImageURL)
	}
	if articles[1].ImageURL != "https://img.example/og.jpg" {
		t.Errorf("og image = %q", articles[1].ImageURL)
	}
	if articles[3].ImageURL != "" {
		t.Errorf("lookup beyond limit: %q", articles[3].ImageURL)
	}
}
