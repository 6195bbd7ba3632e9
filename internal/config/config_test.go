package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"CONFIG_PATH", "LOG_LEVEL", "METRICS_ADDR",
	"STORE_BACKEND", "STORE_SQLITE_PATH", "BUCKET_NAME", "LOG_CONDITIONAL_WRITES",
	"REDIS_URL", "REDIS_KEY_PREFIX",
	"FEED_PROVIDER", "FEED_URL", "FEED_NAME", "NEWSDATA_API_KEY", "FEED_QUERY", "FEED_TIMEOUT",
	"FILTER_INCLUDE", "FILTER_EXCLUDE",
	"INGEST_SCHEDULE", "RUN_ON_START",
	"NOTIFY_TRANSPORTS", "NOTIFY_TOPIC", "CONSUMER_GROUP", "CONSUMER_NAME", "NOTIFY_STREAM_MAXLEN", "NOTIFY_TELEGRAM_CHATS",
	"LLM_PROVIDER", "LLM_ENDPOINT", "LLM_MODEL", "LLM_API_KEY", "LLM_MAX_TOKENS", "LLM_TIMEOUT",
	"SUMMARY_WINDOW", "TELEGRAM_BOT_TOKEN", "ALLOWED_USERS",
}

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Setenv("CONSUMER_NAME", "test-consumer")
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func boolPtr(b bool) *bool { return &b }

func defaults() *Config {
	return &Config{
		LogLevel: "info",
		Store: StoreConfig{
			Backend:           BackendSQLite,
			SQLitePath:        "./data/newsdigest.db",
			Bucket:            "newsdigest",
			ConditionalWrites: boolPtr(true),
		},
		Redis: RedisConfig{URL: "redis://localhost:6379/0", KeyPrefix: "newsdigest:"},
		Feed: FeedConfig{
			Provider: ProviderNewsData,
			APIKey:   "nd-key",
			Query:    "india",
			Timeout:  10 * time.Second,
		},
		Ingest: IngestConfig{Schedule: "@every 30m"},
		Notify: NotifyConfig{
			Transports:   []string{TransportRedis},
			Topic:        "newsdigest:updates",
			Group:        "summarizer",
			Consumer:     "test-consumer",
			StreamMaxLen: 10000,
		},
		LLM:     LLMConfig{Timeout: 60 * time.Second},
		Summary: SummaryConfig{Window: 3},
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func() *Config
		wantErr bool
	}{
		{
			name:    "missing api key",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "api key only, defaults applied",
			env:  map[string]string{"NEWSDATA_API_KEY": "nd-key"},
			want: defaults,
		},
		{
			name: "all values set",
			env: map[string]string{
				"NEWSDATA_API_KEY":       "nd-key",
				"LOG_LEVEL":              "debug",
				"METRICS_ADDR":           ":9090",
				"STORE_BACKEND":          "redis",
				"BUCKET_NAME":            "news-bucket",
				"LOG_CONDITIONAL_WRITES": "false",
				"FEED_QUERY":             "monsoon",
				"FEED_TIMEOUT":           "5s",
				"FILTER_INCLUDE":         "election, title:budget",
				"FILTER_EXCLUDE":         "sponsored",
				"INGEST_SCHEDULE":        "*/15 * * * *",
				"RUN_ON_START":           "true",
				"NOTIFY_TRANSPORTS":      "redis,telegram",
				"NOTIFY_TELEGRAM_CHATS":  "-100123",
				"TELEGRAM_BOT_TOKEN":     "tok",
				"ALLOWED_USERS":          "111,222",
				"LLM_PROVIDER":           "anthropic",
				"LLM_API_KEY":            "llm-key",
				"LLM_MAX_TOKENS":         "512",
				"LLM_TIMEOUT":            "30s",
				"SUMMARY_WINDOW":         "5",
			},
			want: func() *Config {
				c := defaults()
				c.LogLevel = "debug"
				c.MetricsAddr = ":9090"
				c.Store.Backend = BackendRedis
				c.Store.Bucket = "news-bucket"
				c.Store.ConditionalWrites = boolPtr(false)
				c.Feed.Query = "monsoon"
				c.Feed.Timeout = 5 * time.Second
				c.Feed.Include = []string{"election", "title:budget"}
				c.Feed.Exclude = []string{"sponsored"}
				c.Ingest = IngestConfig{Schedule: "*/15 * * * *", RunOnStart: true}
				c.Notify.Transports = []string{TransportRedis, TransportTelegram}
				c.Notify.TelegramChats = []int64{-100123}
				c.Telegram = TelegramConfig{BotToken: "tok", AllowedUsers: []int64{111, 222}}
				c.LLM = LLMConfig{Provider: "anthropic", APIKey: "llm-key", MaxTokens: 512, Timeout: 30 * time.Second}
				c.Summary.Window = 5
				return c
			},
		},
		{
			name:    "rss provider without url",
			env:     map[string]string{"FEED_PROVIDER": "rss"},
			wantErr: true,
		},
		{
			name: "rss provider",
			env:  map[string]string{"FEED_PROVIDER": "rss", "FEED_URL": "https://news.example.com/rss"},
			want: func() *Config {
				c := defaults()
				c.Feed = FeedConfig{Provider: ProviderRSS, URL: "https://news.example.com/rss", Timeout: 10 * time.Second}
				return c
			},
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"NEWSDATA_API_KEY": "k", "STORE_BACKEND": "s3"},
			wantErr: true,
		},
		{
			name:    "telegram transport without chats",
			env:     map[string]string{"NEWSDATA_API_KEY": "k", "NOTIFY_TRANSPORTS": "telegram", "TELEGRAM_BOT_TOKEN": "tok"},
			wantErr: true,
		},
		{
			name:    "invalid user id",
			env:     map[string]string{"NEWSDATA_API_KEY": "k", "ALLOWED_USERS": "abc"},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			env:     map[string]string{"NEWSDATA_API_KEY": "k", "FEED_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "invalid window",
			env:     map[string]string{"NEWSDATA_API_KEY": "k", "SUMMARY_WINDOW": "-1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want(), got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
log_level: warn
store:
  bucket: file-bucket
feed:
  provider: newsdata
  api_key: ${TEST_NEWSDATA_KEY}
  query: elections
  timeout: 15s
  exclude:
    - "exclude_re:title:^live:"
notify:
  topic: news:file
summary:
  window: 4
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	setEnv(t, map[string]string{
		"CONFIG_PATH":       path,
		"TEST_NEWSDATA_KEY": "from-env",
		"NOTIFY_TOPIC":      "news:override",
	})

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := defaults()
	want.LogLevel = "warn"
	want.Store.Bucket = "file-bucket"
	want.Feed.APIKey = "from-env"
	want.Feed.Query = "elections"
	want.Feed.Timeout = 15 * time.Second
	want.Feed.Exclude = []string{"exclude_re:title:^live:"}
	want.Notify.Topic = "news:override"
	want.Summary.Window = 4
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		setEnv(t, map[string]string{"CONFIG_PATH": filepath.Join(t.TempDir(), "nope.yaml")})
		if _, err := Load(); err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("feed: [unclosed"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		setEnv(t, map[string]string{"CONFIG_PATH": path})
		if _, err := Load(); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("NEWSDIGEST_TEST_SET", "value")

	got := expandEnvVars("a: ${NEWSDIGEST_TEST_SET}\nb: ${NEWSDIGEST_TEST_UNSET_VAR}")
	want := "a: value\nb: ${NEWSDIGEST_TEST_UNSET_VAR}"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("expand mismatch (-want +got):\n%s", diff)
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []int64
		userID  int64
		want    bool
	}{
		{name: "empty list allows all", allowed: nil, userID: 999, want: true},
		{name: "user in list", allowed: []int64{1, 2, 3}, userID: 2, want: true},
		{name: "user not in list", allowed: []int64{1, 2, 3}, userID: 4, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Telegram: TelegramConfig{AllowedUsers: tt.allowed}}
			if diff := cmp.Diff(tt.want, cfg.IsUserAllowed(tt.userID)); diff != "" {
				t.Errorf("IsUserAllowed mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHasTransport(t *testing.T) {
	cfg := &Config{Notify: NotifyConfig{Transports: []string{TransportRedis}}}
	if !cfg.HasTransport(TransportRedis) {
		t.Error("expected redis transport")
	}
	if cfg.HasTransport(TransportTelegram) {
		t.Error("unexpected telegram transport")
	}
}
