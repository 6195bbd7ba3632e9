package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"newsdigest/internal/model"
)

// RSS fetches articles from an RSS or Atom feed.
type RSS struct {
	client HTTPClient
	url    string
	name   string
}

var _ Client = (*RSS)(nil)

// NewRSS creates a feed client for url. The name becomes the batch source;
// when empty, the URL is used.
func NewRSS(client HTTPClient, url, name string) *RSS {
	if name == "" {
		name = url
	}
	return &RSS{client: client, url: url, name: name}
}

// Name implements Client.
func (r *RSS) Name() string {
	return r.name
}

// Fetch implements Client. Query terms are ignored; the feed URL defines the selection.
func (r *RSS) Fetch(ctx context.Context, _ Query) ([]model.RawArticle, error) {
	body, err := get(ctx, r.client, r.url, nil)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed: %w", model.ErrFeedUnavailable, err)
	}

	out := make([]model.RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		out = append(out, model.RawArticle{
			ID:          ItemGUID(item),
			Title:       item.Title,
			Description: item.Description,
			Link:        item.Link,
			SourceName:  feed.Title,
			PublishedAt: itemDate(item),
		})
	}
	return out, nil
}

// ItemGUID returns the GUID for an RSS item.
// If the item has no GUID, a SHA-256 hash of title+link is used.
// Items with neither produce an empty ID and are dropped downstream.
func ItemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Title == "" && item.Link == "" {
		return ""
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

func itemDate(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	return item.Published
}
