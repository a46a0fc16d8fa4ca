// Package storage persists chats, titles, chapters and subscriptions.
//
// It is built in two tiers: SQLite runs raw statements over a single
// guarded connection and yields plain rows, while Store assembles those
// rows into model entities. Store reads return errors; Store writes
// report success as a bool and log the cause of a failure.
package storage

import (
	"context"
	"errors"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
)

// ErrDanglingReference is returned when a subscription points at a chat
// or title that is missing from the snapshot it was joined against.
var ErrDanglingReference = errors.New("dangling reference")

// Storage is the interface for all typed persistence operations.
type Storage interface {
	ReadChats(ctx context.Context) ([]model.Chat, error)
	ReadChat(ctx context.Context, id int64) (*model.Chat, error)
	InsertChat(ctx context.Context, id int64, name string) bool
	UpdateChatName(ctx context.Context, id int64, name string) bool
	DeleteChat(ctx context.Context, id int64) bool

	ReadTitles(ctx context.Context) ([]model.Title, error)
	ReadTitle(ctx context.Context, name string) (*model.Title, error)
	InsertTitle(ctx context.Context, name, link string) bool
	UpdateTitleLast(ctx context.Context, name, chapter string) bool
	DeleteTitle(ctx context.Context, name string) bool

	ReadChapters(ctx context.Context, title string) ([]model.Chapter, error)
	InsertChapter(ctx context.Context, ch model.Chapter) bool
	DeleteChapter(ctx context.Context, title, name string) bool

	ReadSubscriptions(ctx context.Context) ([]model.Subscription, error)
	ReadSubscriptionsByChat(ctx context.Context, chatID int64) ([]model.Subscription, error)
	ReadSubscriptionsByTitle(ctx context.Context, title string) ([]model.Subscription, error)
	ReadResolvableSubscriptions(ctx context.Context) ([]model.Subscription, error)
	InsertSubscription(ctx context.Context, chatID int64, title, last string) bool
	Subscribe(ctx context.Context, chatID int64, title string) model.SubscribeResult
	UpdateSubscriptionLast(ctx context.Context, chatID int64, title, last string) bool
	DeleteSubscription(ctx context.Context, chatID int64, title string) bool

	Close() error
}
