package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"newsdigest/internal/config"
	"newsdigest/internal/notify"
)

const (
	modeServe     = "serve"
	modeIngest    = "ingest"
	modeSummarize = "summarize"
)

func main() {
	mode := flag.String("mode", modeServe, "serve, ingest or summarize")
	message := flag.String("message", "", "notification JSON file for summarize mode, - for stdin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *mode, *message, cfg, log); err != nil {
		log.Error("newsdigest failed", "mode", *mode, "error", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, mode, message string, cfg *config.Config, log *slog.Logger) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	switch mode {
	case modeServe:
		return a.serve(ctx)
	case modeIngest:
		res, err := a.ingestor.Ingest(ctx)
		if err != nil {
			return err
		}
		log.Info("ingestion complete",
			"status", res.Status,
			"key", res.Key,
			"new_articles", res.NewArticles,
			"total_batches", res.TotalBatches,
			"notified", res.Notified,
		)
		return nil
	case modeSummarize:
		body, err := readMessage(message)
		if err != nil {
			return err
		}
		msg, err := notify.DecodeMessage(body)
		if err != nil {
			return err
		}
		res, err := a.summarizer.Summarize(ctx, msg)
		if err != nil {
			return err
		}
		log.Info("summarization complete", "summary_key", res.SummaryKey, "generated", res.Generated)
		return nil
	default:
		return fmt.Errorf("unknown mode %q (use serve, ingest or summarize)", mode)
	}
}

func readMessage(path string) ([]byte, error) {
	switch path {
	case "":
		return nil, fmt.Errorf("-message is required in summarize mode")
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("read message: %w", err)
		}
		return data, nil
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
