package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Wikipedia finds the best-matching article and returns its lead summary.
// It implements rag.ExternalSearch.
type Wikipedia struct {
	httpSource
}

// NewWikipedia creates a Wikipedia source for baseURL, e.g. https://en.wikipedia.org.
func NewWikipedia(baseURL string, httpClient *http.Client, rps float64) *Wikipedia {
	return &Wikipedia{httpSource: newHTTPSource(baseURL, httpClient, rps)}
}

// Name returns "wikipedia".
func (w *Wikipedia) Name() string { return "wikipedia" }

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type wikiSummaryResponse struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// Search returns "<title>: <summary>" for the top hit, or "" when nothing matched.
func (w *Wikipedia) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", "1")
	params.Set("format", "json")

	var found wikiSearchResponse
	if err := w.getJSON(ctx, w.baseURL+"/w/api.php?"+params.Encode(), &found); err != nil {
		return "", fmt.Errorf("wikipedia search: %w", err)
	}
	if len(found.Query.Search) == 0 {
		return "", nil
	}

	title := found.Query.Search[0].Title
	var summary wikiSummaryResponse
	page := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	if err := w.getJSON(ctx, w.baseURL+"/api/rest_v1/page/summary/"+page, &summary); err != nil {
		return "", fmt.Errorf("wikipedia summary: %w", err)
	}

	extract := strings.TrimSpace(summary.Extract)
	if extract == "" {
		return "", nil
	}
	if summary.Title != "" {
		title = summary.Title
	}
	return title + ": " + extract, nil
}
