package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback actions. The data of a button is "<action>:<position>", with
// the 1-based position of the entry in the menu.
const (
	cbAdd    = "add"
	cbDel    = "del"
	cbCancel = "cancel"
)

// sendMenu offers one button per item, plus a cancel button.
func (b *Bot) sendMenu(chatID int64, text, action string, items []string) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(items)+1)
	for i, item := range items {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(item, fmt.Sprintf("%s:%d", action, i+1)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Cancel", cbCancel+":0"),
	))

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, pos, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}
	if _, err := strconv.Atoi(pos); err != nil {
		return
	}

	var userID int64
	var username string
	if cb.From != nil {
		userID, username = cb.From.ID, cb.From.UserName
	}
	b.log.Info("callback",
		"action", action,
		"position", pos,
		"chat_id", chatID,
		"user_id", userID,
		"username", username,
	)

	switch action {
	case cbCancel:
		b.send(tgbotapi.NewEditMessageText(chatID, cb.Message.MessageID, "Cancelled."))
		return
	case cbAdd, cbDel:
	default:
		b.log.Warn("unknown callback", "data", cb.Data, "chat_id", chatID)
		return
	}

	b.clearMenu(chatID, cb.Message.MessageID)
	if !b.registered(ctx, chatID) {
		return
	}
	if action == cbAdd {
		b.handleAdd(ctx, chatID, pos)
	} else {
		b.handleDel(ctx, chatID, pos)
	}
}

func (b *Bot) clearMenu(chatID int64, messageID int) {
	b.send(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	}))
}
