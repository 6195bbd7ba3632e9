// Package fetcher implements the feed clients that supply raw articles.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"newsdigest/internal/model"
)

const (
	userAgent    = "newsdigest/1.0"
	maxBodyBytes = 5 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Query carries the parameters of one fetch.
type Query struct {
	Day   time.Time
	Terms string
}

// Client fetches a batch of raw articles from a provider.
type Client interface {
	// Name identifies the provider; it becomes the batch source.
	Name() string
	Fetch(ctx context.Context, q Query) ([]model.RawArticle, error)
}

// get performs a GET and returns the body of a 200 response.
// Every failure is reported as model.ErrFeedUnavailable.
func get(ctx context.Context, client HTTPClient, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", model.ErrFeedUnavailable, err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http get: %w", model.ErrFeedUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", model.ErrFeedUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", model.ErrFeedUnavailable, err)
	}
	return body, nil
}
