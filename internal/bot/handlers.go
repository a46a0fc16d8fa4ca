package bot

import (
	"context"
	"fmt"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
)

const (
	cmdStart  = "start"
	cmdHelp   = "help"
	cmdTitles = "titles"
	cmdAdd    = "add"
	cmdDel    = "del"
	cmdList   = "list"
)

const msgGenericError = "Something went wrong, please try again later."

func (b *Bot) handleStart(ctx context.Context, chatID int64, name string) {
	chat, err := b.store.ReadChat(ctx, chatID)
	if err != nil {
		b.log.Error("start: read chat", "chat_id", chatID, "error", err)
		b.reply(chatID, msgGenericError)
		return
	}

	if chat != nil {
		if name != "" && chat.Name != name && b.store.UpdateChatName(ctx, chatID, name) {
			b.log.Info("chat renamed", "chat_id", chatID, "name", name)
		}
		b.reply(chatID, "The bot is already started for this chat. Use /help to see what it can do.")
		return
	}

	if !b.store.InsertChat(ctx, chatID, name) {
		b.reply(chatID, msgGenericError)
		return
	}
	b.log.Info("chat registered", "chat_id", chatID, "name", name)
	b.reply(chatID, `Welcome to the chapter notifier!

You will get a message as soon as a new chapter of a title you follow is published.

Quick start:
1. /titles — see the tracked titles
2. /add <name or number> — follow a title

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Commands:
/start — register this chat
/titles — list the tracked titles
/add <name or number> — subscribe to a title
/add — pick a title from a menu
/del <name or number> — unsubscribe from a title
/del — pick a subscription from a menu
/list — show your subscriptions and their latest chapter
/help — show this message

Numbers refer to the positions shown by /titles (for /add) and /list (for /del).`)
}

// registered reports whether chatID ran /start, telling the chat otherwise.
func (b *Bot) registered(ctx context.Context, chatID int64) bool {
	chat, err := b.store.ReadChat(ctx, chatID)
	if err != nil {
		b.log.Error("read chat", "chat_id", chatID, "error", err)
		b.reply(chatID, msgGenericError)
		return false
	}
	if chat == nil {
		b.reply(chatID, "This chat is not started yet. Use /start first.")
		return false
	}
	return true
}

func (b *Bot) handleTitles(ctx context.Context, chatID int64) {
	titles, err := b.store.ReadTitles(ctx)
	if err != nil {
		b.log.Error("titles: read titles", "chat_id", chatID, "error", err)
		b.reply(chatID, msgGenericError)
		return
	}
	b.reply(chatID, FormatTitleList(titles))
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) {
	titles, err := b.store.ReadTitles(ctx)
	if err != nil {
		b.log.Error("add: read titles", "chat_id", chatID, "error", err)
		b.reply(chatID, msgGenericError)
		return
	}
	if len(titles) == 0 {
		b.reply(chatID, FormatTitleList(titles))
		return
	}
	if args == "" {
		b.sendMenu(chatID, "Choose the title to subscribe to:", cbAdd, titleNames(titles))
		return
	}

	title, err := ParseTitleArg(args, titleNames(titles))
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	switch b.store.Subscribe(ctx, chatID, title) {
	case model.SubscribeCreated:
		b.log.Info("subscribed", "chat_id", chatID, "title", title)
		b.reply(chatID, fmt.Sprintf("Subscribed to \"%s\".", title))
	case model.SubscribeAlreadyExists:
		b.reply(chatID, fmt.Sprintf("You are already subscribed to \"%s\".", title))
	default:
		b.reply(chatID, fmt.Sprintf("Could not subscribe to \"%s\".", title))
	}
}

func (b *Bot) handleDel(ctx context.Context, chatID int64, args string) {
	subs, err := b.store.ReadSubscriptionsByChat(ctx, chatID)
	if err != nil {
		b.log.Error("del: read subscriptions", "chat_id", chatID, "error", err)
		b.reply(chatID, msgGenericError)
		return
	}
	if len(subs) == 0 {
		b.reply(chatID, msgNoSubscriptions)
		return
	}
	if args == "" {
		b.sendMenu(chatID, "Choose the title to unsubscribe from:", cbDel, subscriptionNames(subs))
		return
	}

	title, err := ParseTitleArg(args, subscriptionNames(subs))
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	if !b.store.DeleteSubscription(ctx, chatID, title) {
		b.reply(chatID, fmt.Sprintf("Could not unsubscribe from \"%s\".", title))
		return
	}
	b.log.Info("unsubscribed", "chat_id", chatID, "title", title)
	b.reply(chatID, fmt.Sprintf("Unsubscribed from \"%s\".", title))
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	subs, err := b.store.ReadSubscriptionsByChat(ctx, chatID)
	if err != nil {
		b.log.Error("list: read subscriptions", "chat_id", chatID, "error", err)
		b.reply(chatID, msgGenericError)
		return
	}
	b.reply(chatID, FormatSubscriptionList(subs))
}

func titleNames(titles []model.Title) []string {
	names := make([]string, len(titles))
	for i, t := range titles {
		names[i] = t.Name
	}
	return names
}

func subscriptionNames(subs []model.Subscription) []string {
	names := make([]string, len(subs))
	for i, s := range subs {
		names[i] = s.Title.Name
	}
	return names
}
