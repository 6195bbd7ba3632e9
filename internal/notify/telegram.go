package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts notifications to a fixed set of chats. The topic is ignored.
type Telegram struct {
	api   telegramSender
	chats []int64
}

var _ Transport = (*Telegram)(nil)

// NewTelegram creates a Telegram transport posting to chats.
func NewTelegram(api telegramSender, chats []int64) *Telegram {
	return &Telegram{api: api, chats: chats}
}

// Name implements Transport.
func (t *Telegram) Name() string {
	return "telegram"
}

// Publish implements Transport.
func (t *Telegram) Publish(ctx context.Context, _, subject string, body []byte) error {
	if len(t.chats) == 0 {
		return errors.New("telegram: no chats configured")
	}

	text := subject + "\n\n" + string(body)
	var errs []error
	for _, chatID := range t.chats {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if _, err := t.api.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("send to chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}
