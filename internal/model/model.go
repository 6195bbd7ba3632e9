// Package model defines the domain types used across the application.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RawArticle is an article as returned by a feed provider, before validation.
type RawArticle struct {
	ID          string
	Title       string
	Description string
	Link        string
	SourceName  string
	PublishedAt string
}

// ArticleRecord is a normalized article. Two records are duplicates iff their
// IDs are equal.
type ArticleRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Source      string `json:"source"`
	PublishedAt string `json:"date"`
}

// BatchRecord holds the articles found new by one ingestion cycle.
type BatchRecord struct {
	IngestedAt Timestamp       `json:"timestamp"`
	Source     string          `json:"source"`
	Count      int             `json:"count"`
	Articles   []ArticleRecord `json:"articles"`
}

// NewBatchRecord builds a batch with Count derived from articles.
func NewBatchRecord(at time.Time, source string, articles []ArticleRecord) BatchRecord {
	return BatchRecord{
		IngestedAt: Timestamp{Time: at.UTC()},
		Source:     source,
		Count:      len(articles),
		Articles:   articles,
	}
}

// NotificationStatus is the outcome reported in a NotificationMessage.
type NotificationStatus string

// StatusSuccess is the only status currently emitted.
const StatusSuccess NotificationStatus = "success"

// NotificationMessage tells the summarizer which daily log changed.
type NotificationMessage struct {
	Status          NotificationStatus `json:"status"`
	Bucket          string             `json:"bucket"`
	StoreKey        string             `json:"key"`
	NewArticleCount int                `json:"new_articles"`
	TotalBatchCount int                `json:"total_records"`
	Timestamp       Timestamp          `json:"timestamp"`
}

// Validate reports whether the message carries enough to locate a log.
func (m NotificationMessage) Validate() error {
	if strings.TrimSpace(m.StoreKey) == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidMessage)
	}
	return nil
}

// SummaryArtifact is the text derived from the tail of a daily log.
type SummaryArtifact struct {
	SourceStoreKey string
	Text           string
	GeneratedAt    time.Time
}

// Timestamp is a UTC instant encoded as RFC 3339 in JSON. It also accepts the
// naive ISO-8601 form without a zone, which is read as UTC.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = v.UTC()
		return nil
	}
	for _, layout := range naiveLayouts {
		if v, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

// FilterKind defines the type of filter rule.
type FilterKind string

// Supported filter kinds.
const (
	FilterInclude   FilterKind = "include"
	FilterExclude   FilterKind = "exclude"
	FilterIncludeRe FilterKind = "include_re"
	FilterExcludeRe FilterKind = "exclude_re"
)

// FilterScope defines which part of an article a filter matches against.
type FilterScope string

// Supported filter scopes.
const (
	ScopeTitle   FilterScope = "title"
	ScopeContent FilterScope = "content"
	ScopeAll     FilterScope = "all"
)

// Filter is a single keyword rule applied to articles before dedup.
type Filter struct {
	Kind  FilterKind
	Scope FilterScope
	Value string
}
