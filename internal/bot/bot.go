// Package bot is the Telegram side of the notifier: it answers the chat
// commands and delivers new-chapter notifications.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/config"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/delivery"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the Telegram bot that handles user commands and sends notifications.
type Bot struct {
	api     telegramAPI
	store   storage.Storage
	cfg     *config.Config
	limiter *rate.Limiter
	log     *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, store storage.Storage, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:     api,
		store:   store,
		cfg:     cfg,
		limiter: newLimiter(cfg.DeliveryRate),
		log:     log,
	}, nil
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = config.DefaultDeliveryRate
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
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
	if cb := update.CallbackQuery; cb != nil {
		if cb.From != nil && !b.cfg.IsUserAllowed(cb.From.ID) {
			return
		}
		b.handleCallback(ctx, cb)
		return
	}
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	if update.Message.From != nil && !b.cfg.IsUserAllowed(update.Message.From.ID) {
		b.reply(update.Message.Chat.ID, "Access denied.")
		return
	}
	b.handleCommand(ctx, update.Message)
}

// SetCommands registers the command menu shown by Telegram clients.
func (b *Bot) SetCommands() error {
	cmds := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c.name, Description: c.description})
	}
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}

// Deliver sends a notification to chatID, waiting for the rate limiter
// first. A chat that blocked the bot or no longer exists is reported with
// delivery.ErrUnreachable.
func (b *Bot) Deliver(ctx context.Context, chatID int64, text string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%s: %w", apiErr.Message, delivery.ErrUnreachable)
		case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "chat not found"):
			return fmt.Errorf("%s: %w", apiErr.Message, delivery.ErrUnreachable)
		}
	}
	return fmt.Errorf("send message: %w", err)
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	b.send(msg)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Error("send message", "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

type command struct {
	name        string
	description string
}

var commands = []command{
	{cmdStart, "Start receiving notifications"},
	{cmdTitles, "Show the tracked titles"},
	{cmdAdd, "Subscribe to a title"},
	{cmdDel, "Unsubscribe from a title"},
	{cmdList, "Show your subscriptions"},
	{cmdHelp, "Show the command reference"},
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case cmdStart:
		b.handleStart(ctx, chatID, chatName(msg))
		return
	case cmdHelp:
		b.handleHelp(chatID)
		return
	}

	if !b.registered(ctx, chatID) {
		return
	}

	switch cmd {
	case cmdTitles:
		b.handleTitles(ctx, chatID)
	case cmdAdd:
		b.handleAdd(ctx, chatID, args)
	case cmdDel:
		b.handleDel(ctx, chatID, args)
	case cmdList:
		b.handleList(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

// chatName is the group title, or the user name for private chats.
func chatName(msg *tgbotapi.Message) string {
	if msg.Chat == nil {
		return ""
	}
	if msg.Chat.Title != "" {
		return msg.Chat.Title
	}
	if msg.Chat.UserName != "" {
		return msg.Chat.UserName
	}
	return strings.TrimSpace(msg.Chat.FirstName + " " + msg.Chat.LastName)
}
