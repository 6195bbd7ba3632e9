package dailylog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"newsdigest/internal/model"
	"newsdigest/internal/storage"
)

const testKey = "raw_data/daily_log_2025-04-01.json"

func newTestObjects(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func batch(at int, ids ...string) model.BatchRecord {
	arts := make([]model.ArticleRecord, 0, len(ids))
	for _, id := range ids {
		arts = append(arts, model.ArticleRecord{ID: id, Title: "title " + id})
	}
	return model.NewBatchRecord(time.Date(2025, 4, 1, at, 0, 0, 0, time.UTC), "test", arts)
}

type failingStore struct {
	getErr error
	putErr error
}

func (f *failingStore) Get(context.Context, string) (*storage.Object, error) {
	return nil, f.getErr
}

func (f *failingStore) Put(context.Context, string, []byte, string) error {
	return f.putErr
}

func (f *failingStore) Close() error { return nil }

func TestLoadMissingIsEmpty(t *testing.T) {
	s := New(newTestObjects(t), true, discardLogger())

	l, err := s.Load(context.Background(), testKey)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if l.Exists() {
		t.Error("expected missing log to report !Exists")
	}
	if diff := cmp.Diff(0, len(l.Batches)); diff != "" {
		t.Errorf("batch count mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(newTestObjects(t), true, discardLogger())

	l, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	l.Append(batch(1, "a1", "a2"))
	l.Append(batch(2, "a3"))
	if err := s.Save(ctx, l); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.Exists() {
		t.Error("expected saved log to exist")
	}
	if diff := cmp.Diff(l.Batches, got.Batches); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(3, got.ArticleCount()); diff != "" {
		t.Errorf("article count mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveTwiceFromSameLoad(t *testing.T) {
	ctx := context.Background()
	s := New(newTestObjects(t), true, discardLogger())

	l, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	l.Append(batch(1, "a1"))
	if err := s.Save(ctx, l); err != nil {
		t.Fatalf("first save: %v", err)
	}
	l.Append(batch(2, "a2"))
	if err := s.Save(ctx, l); err != nil {
		t.Fatalf("second save with tracked version: %v", err)
	}
}

func TestConditionalSaveDetectsConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	s := New(newTestObjects(t), true, discardLogger())

	first, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("load first: %v", err)
	}
	second, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("load second: %v", err)
	}

	first.Append(batch(1, "a1"))
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}

	second.Append(batch(2, "b1"))
	err = s.Save(ctx, second)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("expected conflict classified as store failure, got %v", err)
	}

	got, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if diff := cmp.Diff(first.Batches, got.Batches); diff != "" {
		t.Errorf("winner's batches lost (-want +got):\n%s", diff)
	}
}

func TestUnconditionalSaveIsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := New(newTestObjects(t), false, discardLogger())

	first, _ := s.Load(ctx, testKey)
	second, _ := s.Load(ctx, testKey)

	first.Append(batch(1, "a1"))
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	second.Append(batch(2, "b1"))
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	got, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if diff := cmp.Diff(second.Batches, got.Batches); diff != "" {
		t.Errorf("expected last writer to win (-want +got):\n%s", diff)
	}
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	tests := []struct {
		name  string
		store *failingStore
		save  bool
	}{
		{name: "read error", store: &failingStore{getErr: boom}},
		{name: "write error", store: &failingStore{getErr: storage.ErrNotFound, putErr: boom}, save: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.store, true, discardLogger())
			l, err := s.Load(ctx, testKey)
			if !tt.save {
				if !errors.Is(err, model.ErrStoreUnavailable) {
					t.Fatalf("expected ErrStoreUnavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			l.Append(batch(1, "a1"))
			if err := s.Save(ctx, l); !errors.Is(err, model.ErrStoreUnavailable) {
				t.Fatalf("expected ErrStoreUnavailable, got %v", err)
			}
		})
	}
}

func TestLoadCorruptBody(t *testing.T) {
	ctx := context.Background()
	objects := newTestObjects(t)
	if err := objects.Put(ctx, testKey, []byte("{not json"), storage.ContentTypeJSON); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, err := New(objects, true, discardLogger()).Load(ctx, testKey)
	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestLoadLegacyLog(t *testing.T) {
	ctx := context.Background()
	objects := newTestObjects(t)
	legacy := `[
  {
    "timestamp": "2025-04-01T08:15:00.123456",
    "source": "newsdata.io",
    "count": 1,
    "articles": [
      {"id": "x1", "title": "Old", "description": null, "link": "https://e.com/x1", "source": "e", "date": "2025-04-01 07:00:00"}
    ]
  }
]`
	if err := objects.Put(ctx, testKey, []byte(legacy), storage.ContentTypeJSON); err != nil {
		t.Fatalf("put: %v", err)
	}

	l, err := New(objects, true, discardLogger()).Load(ctx, testKey)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []model.BatchRecord{{
		IngestedAt: model.Timestamp{Time: time.Date(2025, 4, 1, 8, 15, 0, 123456000, time.UTC)},
		Source:     "newsdata.io",
		Count:      1,
		Articles: []model.ArticleRecord{
			{ID: "x1", Title: "Old", Link: "https://e.com/x1", Source: "e", PublishedAt: "2025-04-01 07:00:00"},
		},
	}}
	if diff := cmp.Diff(want, l.Batches); diff != "" {
		t.Errorf("legacy decode mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveKeepsLoadedBatchesVerbatim(t *testing.T) {
	ctx := context.Background()
	objects := newTestObjects(t)
	legacy := `[{"timestamp": "2025-04-01T08:15:00.123456", "source": "newsdata.io", "count": 1, "articles": [{"id": "x1", "title": "Old", "description": null, "link": "https://e.com/x1", "source": "e", "date": "2025-04-01 07:00:00", "image_url": "https://e.com/i.png"}]}]`
	if err := objects.Put(ctx, testKey, []byte(legacy), storage.ContentTypeJSON); err != nil {
		t.Fatalf("put: %v", err)
	}
	var want []json.RawMessage
	if err := json.Unmarshal([]byte(legacy), &want); err != nil {
		t.Fatalf("decode legacy: %v", err)
	}

	s := New(objects, true, discardLogger())
	l, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	l.Append(batch(9, "a1"))
	if err := s.Save(ctx, l); err != nil {
		t.Fatalf("save: %v", err)
	}
	l.Append(batch(10, "a2"))
	if err := s.Save(ctx, l); err != nil {
		t.Fatalf("second save: %v", err)
	}

	obj, err := objects.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var got []json.RawMessage
	if err := json.Unmarshal(obj.Body, &got); err != nil {
		t.Fatalf("decode saved log: %v", err)
	}
	if diff := cmp.Diff(3, len(got)); diff != "" {
		t.Fatalf("batch count mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(string(want[0]), string(got[0])); diff != "" {
		t.Errorf("legacy batch rewritten (-want +got):\n%s", diff)
	}

	reloaded, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if diff := cmp.Diff(l.Batches, reloaded.Batches); diff != "" {
		t.Errorf("batches mismatch after reload (-want +got):\n%s", diff)
	}
}

func TestEncodeMatchesIndentedArray(t *testing.T) {
	batches := []model.BatchRecord{batch(1, "a1"), batch(2, "a2", "a3")}
	want, err := json.MarshalIndent(batches, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Encode(batches)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if diff := cmp.Diff(string(want), string(got)); diff != "" {
		t.Errorf("encoding mismatch (-want +got):\n%s", diff)
	}
}

func TestTail(t *testing.T) {
	l := &Log{}
	for i := 0; i < 5; i++ {
		l.Append(batch(i, string(rune('a'+i))))
	}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{name: "last three", n: 3, want: []string{"c", "d", "e"}},
		{name: "more than available", n: 10, want: []string{"a", "b", "c", "d", "e"}},
		{name: "zero", n: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, b := range l.Tail(tt.n) {
				got = append(got, b.Articles[0].ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("tail mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeEmpty(t *testing.T) {
	got, err := Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if diff := cmp.Diff("[]", string(got)); diff != "" {
		t.Errorf("empty encoding mismatch (-want +got):\n%s", diff)
	}
}
