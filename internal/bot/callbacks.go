package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func dayKeyboard(day string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Summary", cmdSummary+":"+day),
			tgbotapi.NewInlineKeyboardButtonData("Latest batch", cmdLatest+":"+day),
		),
	)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, day, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}

	switch action {
	case cmdSummary:
		b.handleSummary(ctx, chatID, day)
	case cmdLatest:
		b.handleLatest(ctx, chatID, day)
	}
}
