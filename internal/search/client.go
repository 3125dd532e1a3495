// Package search queries public knowledge sources used to augment document context.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

const userAgent = "paperchat/1.0 (research assistant)"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// httpSource holds what every external source shares: a base URL, an HTTP
// client and a request rate limit.
type httpSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPSource(baseURL string, httpClient *http.Client, rps float64) httpSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return httpSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// getJSON waits for the rate limiter, fetches url and decodes the JSON body into out.
func (s httpSource) getJSON(ctx context.Context, url string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
