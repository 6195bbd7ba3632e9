package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"newsdigest/internal/bot"
	"newsdigest/internal/config"
	"newsdigest/internal/dailylog"
	"newsdigest/internal/fetcher"
	"newsdigest/internal/filter"
	"newsdigest/internal/ingest"
	"newsdigest/internal/llm"
	"newsdigest/internal/metrics"
	"newsdigest/internal/model"
	"newsdigest/internal/notify"
	"newsdigest/internal/scheduler"
	"newsdigest/internal/storage"
	"newsdigest/internal/summarize"
)

// app holds the wired components for every mode.
type app struct {
	cfg *config.Config
	log *slog.Logger

	redis      *redis.Client
	objects    storage.Store
	logs       *dailylog.Store
	telegram   *tgbotapi.BotAPI
	filters    []model.Filter
	ingestor   *ingest.Ingestor
	summarizer *summarize.Summarizer
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg

	if cfg.Store.Backend == config.BackendRedis || cfg.HasTransport(config.TransportRedis) {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	objects, err := a.openStore()
	if err != nil {
		return err
	}
	a.objects = objects
	a.logs = dailylog.New(objects, *cfg.Store.ConditionalWrites, a.log)

	if cfg.Telegram.BotToken != "" {
		api, err := bot.NewAPI(cfg.Telegram.BotToken)
		if err != nil {
			return err
		}
		a.telegram = api
	}

	a.filters, err = filter.ParseRules(cfg.Feed.Include, cfg.Feed.Exclude)
	if err != nil {
		return fmt.Errorf("parse filters: %w", err)
	}
	engine, err := filter.Compile(a.filters)
	if err != nil {
		return fmt.Errorf("compile filters: %w", err)
	}

	a.ingestor = ingest.New(a.feedClient(), a.logs, a.notifier(), a.log,
		ingest.WithFilters(engine),
		ingest.WithTerms(cfg.Feed.Query),
		ingest.WithBucket(cfg.Store.Bucket),
		ingest.WithFeedTimeout(cfg.Feed.Timeout),
	)

	gen, err := llm.New(llm.Config{
		Provider:  cfg.LLM.Provider,
		Endpoint:  cfg.LLM.Endpoint,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}
	a.summarizer = summarize.New(a.logs, a.objects, gen, a.log,
		summarize.WithWindow(cfg.Summary.Window),
		summarize.WithTimeout(cfg.LLM.Timeout),
	)
	return nil
}

func (a *app) openStore() (storage.Store, error) {
	switch a.cfg.Store.Backend {
	case config.BackendRedis:
		return storage.NewRedis(a.redis, a.cfg.Redis.KeyPrefix), nil
	default:
		path := a.cfg.Store.SQLitePath
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create data directory %s: %w", dir, err)
			}
		}
		s, err := storage.NewSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open store %s: %w", path, err)
		}
		return s, nil
	}
}

func (a *app) feedClient() fetcher.Client {
	hc := &http.Client{Timeout: a.cfg.Feed.Timeout}
	switch a.cfg.Feed.Provider {
	case config.ProviderRSS:
		return fetcher.NewRSS(hc, a.cfg.Feed.URL, a.cfg.Feed.Name)
	default:
		return fetcher.NewNewsData(hc, a.cfg.Feed.URL, a.cfg.Feed.APIKey)
	}
}

func (a *app) notifier() ingest.Notifier {
	var transports []notify.Transport
	for _, name := range a.cfg.Notify.Transports {
		switch name {
		case config.TransportRedis:
			transports = append(transports, notify.NewRedisStream(a.redis, a.cfg.Notify.StreamMaxLen))
		case config.TransportTelegram:
			transports = append(transports, notify.NewTelegram(a.telegram, a.cfg.Notify.TelegramChats))
		}
	}

	var t notify.Transport
	switch len(transports) {
	case 0:
		return nil
	case 1:
		t = transports[0]
	default:
		t = notify.NewMulti(a.log, transports...)
	}
	return notify.New(t, a.cfg.Notify.Topic, a.log)
}

func (a *app) serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	sched := scheduler.New(a.ingestor, a.cfg.Ingest.Schedule, a.cfg.Ingest.RunOnStart, a.log)
	g.Go(func() error { return sched.Run(ctx) })

	if a.cfg.HasTransport(config.TransportRedis) {
		consumer := notify.NewConsumer(a.redis, notify.ConsumerConfig{
			Stream:   a.cfg.Notify.Topic,
			Group:    a.cfg.Notify.Group,
			Consumer: a.cfg.Notify.Consumer,
			Block:    5 * time.Second,
		}, a.summarizer.HandleDelivery, a.log)
		g.Go(func() error { return consumer.Run(ctx) })
	} else {
		a.log.Warn("redis transport disabled, summaries must be triggered with -mode summarize")
	}

	if a.telegram != nil {
		b := bot.New(a.telegram, a.logs, a.objects, a.filters, a.cfg, a.log)
		g.Go(func() error {
			b.Run(ctx)
			return nil
		})
	}

	if a.cfg.MetricsAddr != "" {
		g.Go(func() error { return a.serveMetrics(ctx) })
	}

	a.log.Info("newsdigest started", "store", a.cfg.Store.Backend, "feed", a.cfg.Feed.Provider)
	err := g.Wait()
	a.log.Info("newsdigest stopped")
	return err
}

func (a *app) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.log.Info("serving metrics", "addr", a.cfg.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Close releases the store and the redis connection.
func (a *app) Close() {
	if a.objects != nil && a.cfg.Store.Backend != config.BackendRedis {
		if err := a.objects.Close(); err != nil {
			a.log.Error("close store", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("close redis", "error", err)
		}
	}
}
