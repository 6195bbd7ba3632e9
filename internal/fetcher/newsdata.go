package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"newsdigest/internal/model"
)

// DefaultNewsDataURL is the newsdata.io latest-news endpoint.
const DefaultNewsDataURL = "https://newsdata.io/api/1/latest"

// On errors newsdata.io returns an object instead of a list under "results".
type newsDataResponse struct {
	Status  string          `json:"status"`
	Results json.RawMessage `json:"results"`
}

type newsDataError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type newsDataArticle struct {
	ArticleID   string `json:"article_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	SourceName  string `json:"source_name"`
	PubDate     string `json:"pubDate"`
}

// NewsData fetches articles from the newsdata.io JSON API.
type NewsData struct {
	client  HTTPClient
	baseURL string
	apiKey  string
}

var _ Client = (*NewsData)(nil)

// NewNewsData creates a newsdata.io client. An empty baseURL uses DefaultNewsDataURL.
func NewNewsData(client HTTPClient, baseURL, apiKey string) *NewsData {
	if baseURL == "" {
		baseURL = DefaultNewsDataURL
	}
	return &NewsData{client: client, baseURL: baseURL, apiKey: apiKey}
}

// Name implements Client.
func (n *NewsData) Name() string {
	return "newsdata.io"
}

// Fetch implements Client. A response whose status is not "success" is a feed failure.
func (n *NewsData) Fetch(ctx context.Context, q Query) ([]model.RawArticle, error) {
	params := url.Values{}
	params.Set("apikey", n.apiKey)
	if q.Terms != "" {
		params.Set("q", q.Terms)
	}

	body, err := get(ctx, n.client, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp newsDataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", model.ErrFeedUnavailable, err)
	}
	if resp.Status != "success" {
		var apiErr newsDataError
		_ = json.Unmarshal(resp.Results, &apiErr)
		return nil, fmt.Errorf("%w: provider status %q: %s %s", model.ErrFeedUnavailable, resp.Status, apiErr.Code, apiErr.Message)
	}

	var articles []newsDataArticle
	if len(resp.Results) > 0 && string(resp.Results) != "null" {
		if err := json.Unmarshal(resp.Results, &articles); err != nil {
			return nil, fmt.Errorf("%w: decode results: %w", model.ErrFeedUnavailable, err)
		}
	}

	out := make([]model.RawArticle, 0, len(articles))
	for _, a := range articles {
		out = append(out, model.RawArticle{
			ID:          a.ArticleID,
			Title:       a.Title,
			Description: a.Description,
			Link:        a.Link,
			SourceName:  a.SourceName,
			PublishedAt: a.PubDate,
		})
	}
	return out, nil
}
