// Package ingest merges fetched article batches into the daily log.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsdigest/internal/dailylog"
	"newsdigest/internal/fetcher"
	"newsdigest/internal/filter"
	"newsdigest/internal/logkey"
	"newsdigest/internal/metrics"
	"newsdigest/internal/model"
)

// DefaultFeedTimeout bounds a single feed fetch.
const DefaultFeedTimeout = 10 * time.Second

// Notifier announces that a daily log gained a batch.
type Notifier interface {
	Publish(ctx context.Context, msg model.NotificationMessage) error
}

// Status is the outcome of a successful ingestion cycle.
type Status string

// Ingestion outcomes.
const (
	StatusNoNewData Status = "no_new_data"
	StatusAppended  Status = "appended"
)

// Result describes one ingestion cycle.
type Result struct {
	Status       Status
	Key          string
	Fetched      int
	NewArticles  int
	TotalBatches int
	Dropped      int
	Filtered     int
	Duplicates   int
	Notified     bool
}

// Ingestor fetches a batch, dedups it against today's log and appends the rest.
type Ingestor struct {
	feed       fetcher.Client
	logs       *dailylog.Store
	notifier   Notifier
	normalizer *Normalizer
	filters    *filter.Engine
	terms      string
	bucket     string
	timeout    time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithFilters applies keyword rules before dedup.
func WithFilters(e *filter.Engine) Option {
	return func(i *Ingestor) { i.filters = e }
}

// WithTerms sets the query terms passed to the feed.
func WithTerms(terms string) Option {
	return func(i *Ingestor) { i.terms = terms }
}

// WithBucket sets the store identifier reported in notifications.
func WithBucket(bucket string) Option {
	return func(i *Ingestor) { i.bucket = bucket }
}

// WithFeedTimeout overrides DefaultFeedTimeout.
func WithFeedTimeout(d time.Duration) Option {
	return func(i *Ingestor) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) { i.now = now }
}

// New creates an Ingestor. A nil notifier disables notifications.
func New(feed fetcher.Client, logs *dailylog.Store, notifier Notifier, log *slog.Logger, opts ...Option) *Ingestor {
	i := &Ingestor{
		feed:       feed,
		logs:       logs,
		notifier:   notifier,
		normalizer: NewNormalizer(),
		timeout:    DefaultFeedTimeout,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest runs one cycle for the current UTC day.
func (i *Ingestor) Ingest(ctx context.Context) (*Result, error) {
	start := time.Now()
	source := i.feed.Name()

	res, err := i.ingest(ctx, source)
	switch {
	case err != nil:
		metrics.RecordIngest(source, "error", time.Since(start).Seconds())
	default:
		metrics.RecordIngest(source, string(res.Status), time.Since(start).Seconds())
		metrics.RecordArticles(source, metrics.OutcomeAppended, res.NewArticles)
		metrics.RecordArticles(source, metrics.OutcomeDuplicate, res.Duplicates)
		metrics.RecordArticles(source, metrics.OutcomeDropped, res.Dropped)
		metrics.RecordArticles(source, metrics.OutcomeFiltered, res.Filtered)
	}
	return res, err
}

func (i *Ingestor) ingest(ctx context.Context, source string) (*Result, error) {
	now := i.now().UTC()
	key := logkey.Raw(now)

	raws, err := i.fetch(ctx, now)
	if err != nil {
		return nil, err
	}
	res := &Result{Key: key, Fetched: len(raws)}

	candidates := make([]model.ArticleRecord, 0, len(raws))
	for idx, raw := range raws {
		rec, ok := i.normalizer.Normalize(raw)
		if !ok {
			res.Dropped++
			i.log.Warn("dropping article without id", "source", source, "index", idx, "title", raw.Title)
			continue
		}
		if !i.filters.Match(rec) {
			res.Filtered++
			continue
		}
		candidates = append(candidates, rec)
	}

	daily, err := i.logs.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load daily log: %w", err)
	}

	seen := daily.IDs()
	fresh := make([]model.ArticleRecord, 0, len(candidates))
	for _, rec := range candidates {
		if _, dup := seen[rec.ID]; dup {
			res.Duplicates++
			continue
		}
		seen[rec.ID] = struct{}{}
		fresh = append(fresh, rec)
	}

	res.TotalBatches = len(daily.Batches)
	if len(fresh) == 0 {
		res.Status = StatusNoNewData
		i.log.Info("no new articles",
			"source", source,
			"key", key,
			"fetched", res.Fetched,
			"duplicates", res.Duplicates,
			"dropped", res.Dropped,
			"filtered", res.Filtered,
		)
		return res, nil
	}

	daily.Append(model.NewBatchRecord(now, source, fresh))
	if err := i.logs.Save(ctx, daily); err != nil {
		return nil, fmt.Errorf("save daily log: %w", err)
	}

	res.Status = StatusAppended
	res.NewArticles = len(fresh)
	res.TotalBatches = len(daily.Batches)
	i.log.Info("appended batch",
		"source", source,
		"key", key,
		"new_articles", res.NewArticles,
		"total_batches", res.TotalBatches,
		"duplicates", res.Duplicates,
		"dropped", res.Dropped,
	)

	res.Notified = i.notify(ctx, model.NotificationMessage{
		Status:          model.StatusSuccess,
		Bucket:          i.bucket,
		StoreKey:        key,
		NewArticleCount: res.NewArticles,
		TotalBatchCount: res.TotalBatches,
		Timestamp:       model.Timestamp{Time: now},
	})
	return res, nil
}

func (i *Ingestor) fetch(ctx context.Context, now time.Time) ([]model.RawArticle, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	raws, err := i.feed.Fetch(ctx, fetcher.Query{Day: now, Terms: i.terms})
	if err == nil {
		return raws, nil
	}
	if !errors.Is(err, model.ErrFeedUnavailable) {
		err = fmt.Errorf("%w: %w", model.ErrFeedUnavailable, err)
	}
	return nil, fmt.Errorf("fetch %s: %w", i.feed.Name(), err)
}

// notify publishes msg. Failures are logged and never fail the cycle.
func (i *Ingestor) notify(ctx context.Context, msg model.NotificationMessage) bool {
	if i.notifier == nil {
		return false
	}
	if err := i.notifier.Publish(ctx, msg); err != nil {
		i.log.Warn("publish notification", "key", msg.StoreKey, "error", err)
		return false
	}
	return true
}
