// Package summarize turns the tail of a daily log into a summary artifact.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsdigest/internal/dailylog"
	"newsdigest/internal/llm"
	"newsdigest/internal/logkey"
	"newsdigest/internal/metrics"
	"newsdigest/internal/model"
	"newsdigest/internal/notify"
	"newsdigest/internal/storage"
)

const (
	// DefaultWindow is the number of most recent batches summarized.
	DefaultWindow = 3

	// PromptPrefix precedes the serialized window in the generation prompt.
	PromptPrefix = "Summarize the whole:  "

	// FailureText is stored when text generation fails.
	FailureText = "Error: Could not generate summary due to API failure."
)

// Result describes one summarization cycle.
type Result struct {
	Key        string
	SummaryKey string
	Batches    int
	Generated  bool
	Artifact   model.SummaryArtifact
}

// Summarizer reads a daily log and writes its summary artifact.
type Summarizer struct {
	logs    *dailylog.Store
	objects storage.Store
	gen     llm.Client
	window  int
	timeout time.Duration
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithWindow overrides DefaultWindow.
func WithWindow(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithTimeout bounds the generation request.
func WithTimeout(d time.Duration) Option {
	return func(s *Summarizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Summarizer) { s.now = now }
}

// New creates a Summarizer. Daily logs are read through logs and summaries
// are written to objects.
func New(logs *dailylog.Store, objects storage.Store, gen llm.Client, log *slog.Logger, opts ...Option) *Summarizer {
	s := &Summarizer{
		logs:    logs,
		objects: objects,
		gen:     gen,
		window:  DefaultWindow,
		timeout: llm.DefaultTimeout,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize handles one notification. Generation failures are recorded in
// the artifact and do not fail the cycle.
func (s *Summarizer) Summarize(ctx context.Context, msg model.NotificationMessage) (*Result, error) {
	res, err := s.summarize(ctx, msg)
	switch {
	case err == nil && res.Generated:
		metrics.RecordSummary("generated")
	case err == nil:
		metrics.RecordSummary("placeholder")
	case errors.Is(err, model.ErrInvalidMessage):
		metrics.RecordSummary("invalid")
	default:
		metrics.RecordSummary("error")
	}
	return res, err
}

func (s *Summarizer) summarize(ctx context.Context, msg model.NotificationMessage) (*Result, error) {
	if err := msg.Validate(); err != nil {
		s.log.Warn("invalid notification", "error", err)
		return nil, err
	}
	key := msg.StoreKey

	daily, err := s.logs.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load daily log: %w", err)
	}
	if !daily.Exists() {
		s.log.Warn("daily log not found", "key", key)
		return nil, fmt.Errorf("%w: daily log %s not found", model.ErrInvalidMessage, key)
	}

	window := daily.Tail(s.window)
	text, generated := s.generate(ctx, key, window)

	res := &Result{
		Key:        key,
		SummaryKey: logkey.Summary(key),
		Batches:    len(window),
		Generated:  generated,
		Artifact: model.SummaryArtifact{
			SourceStoreKey: key,
			Text:           text,
			GeneratedAt:    s.now().UTC(),
		},
	}

	if err := s.objects.Put(ctx, res.SummaryKey, []byte(text), storage.ContentTypeText); err != nil {
		return nil, fmt.Errorf("%w: write %s: %w", model.ErrStoreUnavailable, res.SummaryKey, err)
	}

	s.log.Info("summary saved",
		"key", key,
		"summary_key", res.SummaryKey,
		"batches", res.Batches,
		"generated", generated,
	)
	return res, nil
}

// generate returns the summary text and whether generation succeeded.
func (s *Summarizer) generate(ctx context.Context, key string, window []model.BatchRecord) (string, bool) {
	prompt, err := Prompt(window)
	if err != nil {
		s.log.Error("build prompt", "key", key, "error", err)
		return FailureText, false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.gen.Complete(ctx, prompt)
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		err = fmt.Errorf("%w: %w", model.ErrGenerationFailure, err)
		s.log.Error("generate summary", "key", key, "error", err)
		return FailureText, false
	}
	return text, true
}

// Prompt builds the generation prompt for a window of batches.
func Prompt(window []model.BatchRecord) (string, error) {
	if window == nil {
		window = []model.BatchRecord{}
	}
	data, err := json.Marshal(window)
	if err != nil {
		return "", fmt.Errorf("encode window: %w", err)
	}
	return PromptPrefix + string(data), nil
}

// HandleDelivery decodes a stream delivery and summarizes it.
func (s *Summarizer) HandleDelivery(ctx context.Context, d notify.Delivery) error {
	msg, err := notify.DecodeMessage(d.Body)
	if err != nil {
		return err
	}
	_, err = s.Summarize(ctx, msg)
	return err
}
