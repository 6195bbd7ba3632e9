package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsdigest/internal/logkey"
	"newsdigest/internal/storage"
)

const (
	cmdStatus  = "status"
	cmdSummary = "summary"
	cmdLatest  = "latest"
	cmdFilters = "filters"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to newsdigest!

This bot reports what the news pipeline has collected and summarized.

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Commands:
/status [YYYY-MM-DD] - batches and articles in a day's log
/summary [YYYY-MM-DD] - the latest summary for a day
/latest [YYYY-MM-DD] - articles from the most recent batch
/filters - keyword rules applied during ingestion

Dates default to today (UTC).`)
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64, args string) {
	day, err := ParseDayArg(args, b.now())
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /status [YYYY-MM-DD]\n%v", err))
		return
	}

	key := logkey.Raw(day)
	l, err := b.logs.Load(ctx, key)
	if err != nil {
		b.log.Error("load daily log", "key", key, "error", err)
		b.reply(chatID, "Failed to read the daily log. Try again later.")
		return
	}
	if !l.Exists() {
		b.reply(chatID, fmt.Sprintf("No articles collected on %s.", logkey.Day(day)))
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatStatus(logkey.Day(day), l))
	msg.ReplyMarkup = dayKeyboard(logkey.Day(day))
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send status", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleSummary(ctx context.Context, chatID int64, args string) {
	day, err := ParseDayArg(args, b.now())
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /summary [YYYY-MM-DD]\n%v", err))
		return
	}

	key := logkey.Summary(logkey.Raw(day))
	obj, err := b.objects.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("No summary for %s yet.", logkey.Day(day)))
		return
	}
	if err != nil {
		b.log.Error("load summary", "key", key, "error", err)
		b.reply(chatID, "Failed to read the summary. Try again later.")
		return
	}

	b.reply(chatID, FormatSummary(logkey.Day(day), obj))
}

func (b *Bot) handleLatest(ctx context.Context, chatID int64, args string) {
	day, err := ParseDayArg(args, b.now())
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /latest [YYYY-MM-DD]\n%v", err))
		return
	}

	key := logkey.Raw(day)
	l, err := b.logs.Load(ctx, key)
	if err != nil {
		b.log.Error("load daily log", "key", key, "error", err)
		b.reply(chatID, "Failed to read the daily log. Try again later.")
		return
	}

	tail := l.Tail(1)
	if len(tail) == 0 {
		b.reply(chatID, fmt.Sprintf("No articles collected on %s.", logkey.Day(day)))
		return
	}
	b.reply(chatID, FormatBatch(tail[0], maxLatestArticles))
}

func (b *Bot) handleFilters(chatID int64) {
	b.reply(chatID, FormatFilterList(b.filters))
}
