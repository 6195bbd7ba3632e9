// Package config loads application configuration from an optional YAML file
// and environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`

	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Feed     FeedConfig     `yaml:"feed"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Notify   NotifyConfig   `yaml:"notify"`
	LLM      LLMConfig      `yaml:"llm"`
	Summary  SummaryConfig  `yaml:"summary"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// StoreConfig selects the object store holding daily logs and summaries.
type StoreConfig struct {
	Backend           string `yaml:"backend"`
	SQLitePath        string `yaml:"sqlite_path"`
	Bucket            string `yaml:"bucket"`
	ConditionalWrites *bool  `yaml:"conditional_writes"`
}

// RedisConfig is shared by the redis store backend and the stream transport.
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// FeedConfig selects the article provider.
type FeedConfig struct {
	Provider string        `yaml:"provider"`
	URL      string        `yaml:"url"`
	Name     string        `yaml:"name"`
	APIKey   string        `yaml:"api_key"`
	Query    string        `yaml:"query"`
	Timeout  time.Duration `yaml:"timeout"`
	Include  []string      `yaml:"include"`
	Exclude  []string      `yaml:"exclude"`
}

// IngestConfig controls when ingestion runs in serve mode.
type IngestConfig struct {
	Schedule   string `yaml:"schedule"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// NotifyConfig configures notification transports and the stream consumer.
type NotifyConfig struct {
	Transports    []string `yaml:"transports"`
	Topic         string   `yaml:"topic"`
	Group         string   `yaml:"group"`
	Consumer      string   `yaml:"consumer"`
	StreamMaxLen  int64    `yaml:"stream_max_len"`
	TelegramChats []int64  `yaml:"telegram_chats"`
}

// LLMConfig configures the text-generation provider.
type LLMConfig struct {
	Provider  string        `yaml:"provider"`
	Endpoint  string        `yaml:"endpoint"`
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SummaryConfig configures the summarizer.
type SummaryConfig struct {
	Window int `yaml:"window"`
}

// TelegramConfig configures the ops bot and the telegram transport.
type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	AllowedUsers []int64 `yaml:"allowed_users"`
}

// Supported values.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	ProviderNewsData = "newsdata"
	ProviderRSS      = "rss"

	TransportRedis    = "redis"
	TransportTelegram = "telegram"
)

// Load reads the YAML file named by CONFIG_PATH, if set, applies environment
// overrides and defaults, and validates the result.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value. Unset variables are left as is.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

func applyEnv(cfg *Config) error {
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.MetricsAddr, "METRICS_ADDR")

	setString(&cfg.Store.Backend, "STORE_BACKEND")
	setString(&cfg.Store.SQLitePath, "STORE_SQLITE_PATH")
	setString(&cfg.Store.Bucket, "BUCKET_NAME")
	if raw := os.Getenv("LOG_CONDITIONAL_WRITES"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid LOG_CONDITIONAL_WRITES %q: %w", raw, err)
		}
		cfg.Store.ConditionalWrites = &v
	}

	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Redis.KeyPrefix, "REDIS_KEY_PREFIX")

	setString(&cfg.Feed.Provider, "FEED_PROVIDER")
	setString(&cfg.Feed.URL, "FEED_URL")
	setString(&cfg.Feed.Name, "FEED_NAME")
	setString(&cfg.Feed.APIKey, "NEWSDATA_API_KEY")
	setString(&cfg.Feed.Query, "FEED_QUERY")
	setList(&cfg.Feed.Include, "FILTER_INCLUDE")
	setList(&cfg.Feed.Exclude, "FILTER_EXCLUDE")

	setString(&cfg.Ingest.Schedule, "INGEST_SCHEDULE")
	if raw := os.Getenv("RUN_ON_START"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid RUN_ON_START %q: %w", raw, err)
		}
		cfg.Ingest.RunOnStart = v
	}

	setList(&cfg.Notify.Transports, "NOTIFY_TRANSPORTS")
	setString(&cfg.Notify.Topic, "NOTIFY_TOPIC")
	setString(&cfg.Notify.Group, "CONSUMER_GROUP")
	setString(&cfg.Notify.Consumer, "CONSUMER_NAME")

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.Endpoint, "LLM_ENDPOINT")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")

	setString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")

	for _, d := range []struct {
		dst *time.Duration
		key string
	}{
		{&cfg.Feed.Timeout, "FEED_TIMEOUT"},
		{&cfg.LLM.Timeout, "LLM_TIMEOUT"},
	} {
		if raw := os.Getenv(d.key); raw != "" {
			v, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", d.key, raw, err)
			}
			*d.dst = v
		}
	}

	for _, n := range []struct {
		dst *int
		key string
	}{
		{&cfg.Summary.Window, "SUMMARY_WINDOW"},
		{&cfg.LLM.MaxTokens, "LLM_MAX_TOKENS"},
	} {
		if raw := os.Getenv(n.key); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", n.key, raw, err)
			}
			*n.dst = v
		}
	}

	if raw := os.Getenv("NOTIFY_STREAM_MAXLEN"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid NOTIFY_STREAM_MAXLEN %q: %w", raw, err)
		}
		cfg.Notify.StreamMaxLen = v
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		ids, err := parseIDs(raw)
		if err != nil {
			return fmt.Errorf("invalid ALLOWED_USERS: %w", err)
		}
		cfg.Telegram.AllowedUsers = ids
	}
	if raw := os.Getenv("NOTIFY_TELEGRAM_CHATS"); raw != "" {
		ids, err := parseIDs(raw)
		if err != nil {
			return fmt.Errorf("invalid NOTIFY_TELEGRAM_CHATS: %w", err)
		}
		cfg.Notify.TelegramChats = ids
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendSQLite
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "./data/newsdigest.db"
	}
	if cfg.Store.Bucket == "" {
		cfg.Store.Bucket = "newsdigest"
	}
	if cfg.Store.ConditionalWrites == nil {
		on := true
		cfg.Store.ConditionalWrites = &on
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "newsdigest:"
	}
	if cfg.Feed.Provider == "" {
		cfg.Feed.Provider = ProviderNewsData
	}
	if cfg.Feed.Query == "" && cfg.Feed.Provider == ProviderNewsData {
		cfg.Feed.Query = "india"
	}
	if cfg.Feed.Timeout == 0 {
		cfg.Feed.Timeout = 10 * time.Second
	}
	if cfg.Ingest.Schedule == "" {
		cfg.Ingest.Schedule = "@every 30m"
	}
	if len(cfg.Notify.Transports) == 0 {
		cfg.Notify.Transports = []string{TransportRedis}
	}
	if cfg.Notify.Topic == "" {
		cfg.Notify.Topic = "newsdigest:updates"
	}
	if cfg.Notify.Group == "" {
		cfg.Notify.Group = "summarizer"
	}
	if cfg.Notify.Consumer == "" {
		cfg.Notify.Consumer = defaultConsumerName()
	}
	if cfg.Notify.StreamMaxLen == 0 {
		cfg.Notify.StreamMaxLen = 10000
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.Summary.Window == 0 {
		cfg.Summary.Window = 3
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unsupported store backend %q (supported: sqlite, redis)", c.Store.Backend)
	}

	switch c.Feed.Provider {
	case ProviderNewsData:
		if c.Feed.APIKey == "" {
			return fmt.Errorf("NEWSDATA_API_KEY is required for the newsdata provider")
		}
	case ProviderRSS:
		if c.Feed.URL == "" {
			return fmt.Errorf("FEED_URL is required for the rss provider")
		}
	default:
		return fmt.Errorf("unsupported feed provider %q (supported: newsdata, rss)", c.Feed.Provider)
	}

	for _, t := range c.Notify.Transports {
		switch t {
		case TransportRedis:
		case TransportTelegram:
			if c.Telegram.BotToken == "" {
				return fmt.Errorf("TELEGRAM_BOT_TOKEN is required for the telegram transport")
			}
			if len(c.Notify.TelegramChats) == 0 {
				return fmt.Errorf("NOTIFY_TELEGRAM_CHATS is required for the telegram transport")
			}
		default:
			return fmt.Errorf("unsupported notify transport %q (supported: redis, telegram)", t)
		}
	}

	if c.Feed.Timeout < 0 || c.LLM.Timeout < 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Summary.Window < 1 {
		return fmt.Errorf("SUMMARY_WINDOW must be at least 1, got %d", c.Summary.Window)
	}
	return nil
}

// HasTransport reports whether the named transport is enabled.
func (c *Config) HasTransport(name string) bool {
	return slices.Contains(c.Notify.Transports, name)
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.Telegram.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.Telegram.AllowedUsers, userID)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "summarizer-1"
	}
	return host
}
