// Package dailylog persists the append-only per-day sequence of ingestion batches.
package dailylog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"newsdigest/internal/model"
	"newsdigest/internal/storage"
)

const indent = "  "

// ErrConflict is returned by Save when another writer changed the log after it was loaded.
var ErrConflict = errors.New("daily log changed since load")

// Log is an in-memory view of one day's batches.
type Log struct {
	Key     string
	Batches []model.BatchRecord

	// raw holds the stored bytes of the first len(raw) batches.
	raw     []json.RawMessage
	version int64
	exists  bool
}

// Exists reports whether the log was present in the store when loaded.
func (l *Log) Exists() bool {
	return l.exists
}

// IDs returns the set of article IDs across every batch.
func (l *Log) IDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, b := range l.Batches {
		for _, a := range b.Articles {
			ids[a.ID] = struct{}{}
		}
	}
	return ids
}

// Append adds a batch at the end of the log. Existing batches are not touched.
func (l *Log) Append(b model.BatchRecord) {
	l.Batches = append(l.Batches, b)
}

// Tail returns the last n batches in append order, or all of them if fewer exist.
func (l *Log) Tail(n int) []model.BatchRecord {
	if n <= 0 {
		return nil
	}
	if n >= len(l.Batches) {
		return l.Batches
	}
	return l.Batches[len(l.Batches)-n:]
}

// ArticleCount returns the number of articles across all batches.
func (l *Log) ArticleCount() int {
	total := 0
	for _, b := range l.Batches {
		total += len(b.Articles)
	}
	return total
}

// Store loads and saves daily logs through an object store.
type Store struct {
	objects     storage.Store
	conditional bool
	log         *slog.Logger
}

// New creates a Store. When conditional is true and the backend supports
// versioned writes, Save fails with ErrConflict instead of overwriting a log
// that changed after it was loaded.
func New(objects storage.Store, conditional bool, log *slog.Logger) *Store {
	return &Store{objects: objects, conditional: conditional, log: log}
}

// Load reads the log stored under key. A missing key yields an empty log.
func (s *Store) Load(ctx context.Context, key string) (*Log, error) {
	obj, err := s.objects.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Debug("daily log not found, starting empty", "key", key)
		return &Log{Key: key}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", model.ErrStoreUnavailable, key, err)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(obj.Body, &elems); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", model.ErrStoreUnavailable, key, err)
	}
	batches := make([]model.BatchRecord, len(elems))
	for i, e := range elems {
		if err := json.Unmarshal(e, &batches[i]); err != nil {
			return nil, fmt.Errorf("%w: decode %s batch %d: %w", model.ErrStoreUnavailable, key, i, err)
		}
	}
	return &Log{Key: key, Batches: batches, raw: elems, version: obj.Version, exists: true}, nil
}

// Save writes the log back under its key. Batches read by Load are written
// back byte for byte; only appended batches are encoded.
func (s *Store) Save(ctx context.Context, l *Log) error {
	body, elems, err := l.encode()
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", model.ErrStoreUnavailable, l.Key, err)
	}

	vs, versioned := s.objects.(storage.VersionedStore)
	if s.conditional && versioned {
		err = vs.PutIfVersion(ctx, l.Key, body, storage.ContentTypeJSON, l.version)
		if errors.Is(err, storage.ErrVersionConflict) {
			return fmt.Errorf("%w: write %s: %w", model.ErrStoreUnavailable, l.Key, ErrConflict)
		}
	} else {
		err = s.objects.Put(ctx, l.Key, body, storage.ContentTypeJSON)
	}
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", model.ErrStoreUnavailable, l.Key, err)
	}

	l.raw = elems
	l.version++
	l.exists = true
	return nil
}

func (l *Log) encode() ([]byte, []json.RawMessage, error) {
	kept := l.raw[:min(len(l.raw), len(l.Batches))]
	elems := make([]json.RawMessage, 0, len(l.Batches))
	elems = append(elems, kept...)
	for _, b := range l.Batches[len(kept):] {
		data, err := json.MarshalIndent(b, indent, indent)
		if err != nil {
			return nil, nil, err
		}
		elems = append(elems, data)
	}

	if len(elems) == 0 {
		return []byte("[]"), elems, nil
	}
	var buf bytes.Buffer
	buf.WriteString("[\n" + indent)
	for i, e := range elems {
		if i > 0 {
			buf.WriteString(",\n" + indent)
		}
		buf.Write(e)
	}
	buf.WriteString("\n]")
	return buf.Bytes(), elems, nil
}

// Encode renders batches as the indented JSON array kept in storage.
func Encode(batches []model.BatchRecord) ([]byte, error) {
	body, _, err := (&Log{Batches: batches}).encode()
	return body, err
}
