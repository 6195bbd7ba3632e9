// Package bot implements a read-only Telegram bot for inspecting daily logs
// and summaries.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsdigest/internal/config"
	"newsdigest/internal/dailylog"
	"newsdigest/internal/model"
	"newsdigest/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot answers status queries about the pipeline.
type Bot struct {
	api     telegramAPI
	logs    *dailylog.Store
	objects storage.Store
	filters []model.Filter
	cfg     *config.Config
	log     *slog.Logger
	now     func() time.Time
}

// NewAPI connects to Telegram with the given token.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

// New creates a Bot. The api may be shared with the telegram notification transport.
func New(api *tgbotapi.BotAPI, logs *dailylog.Store, objects storage.Store, filters []model.Filter, cfg *config.Config, log *slog.Logger) *Bot {
	return newBot(api, logs, objects, filters, cfg, log)
}

func newBot(api telegramAPI, logs *dailylog.Store, objects storage.Store, filters []model.Filter, cfg *config.Config, log *slog.Logger) *Bot {
	return &Bot{
		api:     api,
		logs:    logs,
		objects: objects,
		filters: filters,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		if update.CallbackQuery.From != nil && !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
			return
		}
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	if update.Message.From == nil || !b.cfg.IsUserAllowed(update.Message.From.ID) {
		b.reply(update.Message.Chat.ID, "Access denied.")
		return
	}
	b.handleCommand(ctx, update.Message)
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, truncate(text))
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case cmdStatus:
		b.handleStatus(ctx, chatID, args)
	case cmdSummary:
		b.handleSummary(ctx, chatID, args)
	case cmdLatest:
		b.handleLatest(ctx, chatID, args)
	case cmdFilters:
		b.handleFilters(chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
