package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// maxRelatedTopics bounds how many related topics are used when no abstract exists.
const maxRelatedTopics = 3

// DuckDuckGo queries the instant answer API.
// It implements rag.ExternalSearch.
type DuckDuckGo struct {
	httpSource
}

// NewDuckDuckGo creates a web source for baseURL, e.g. https://api.duckduckgo.com.
func NewDuckDuckGo(baseURL string, httpClient *http.Client, rps float64) *DuckDuckGo {
	return &DuckDuckGo{httpSource: newHTTPSource(baseURL, httpClient, rps)}
}

// Name returns "web".
func (d *DuckDuckGo) Name() string { return "web" }

type instantAnswer struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	Answer        string `json:"Answer"`
	RelatedTopics []struct {
		Text string `json:"Text"`
	} `json:"RelatedTopics"`
}

// Search returns the abstract for query, or up to three related topics, or "".
func (d *DuckDuckGo) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var ia instantAnswer
	if err := d.getJSON(ctx, d.baseURL+"/?"+params.Encode(), &ia); err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}

	if text := strings.TrimSpace(ia.AbstractText); text != "" {
		if ia.Heading != "" {
			return ia.Heading + ": " + text, nil
		}
		return text, nil
	}
	if answer := strings.TrimSpace(ia.Answer); answer != "" {
		return answer, nil
	}

	var topics []string
	for _, topic := range ia.RelatedTopics {
		if text := strings.TrimSpace(topic.Text); text != "" {
			topics = append(topics, text)
		}
		if len(topics) == maxRelatedTopics {
			break
		}
	}
	return strings.Join(topics, "\n"), nil
}
