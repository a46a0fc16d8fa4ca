package pipeline

import (
	"context"
	"log/slog"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/delivery"
)

// Pruner removes subscriptions whose chat can no longer be reached.
// It never deletes chats or titles.
type Pruner struct {
	store PruneStore
	log   *slog.Logger
}

// NewPruner creates a Pruner.
func NewPruner(store PruneStore, log *slog.Logger) *Pruner {
	return &Pruner{store: store, log: log}
}

// Prune acts on the failed outcomes of report and returns the number of
// subscriptions deleted.
func (p *Pruner) Prune(ctx context.Context, report Report) int {
	deleted := 0
	for _, o := range report.Failed() {
		chatID, title := o.Subscription.Chat.ID, o.Subscription.Title.Name

		if !delivery.IsUnreachable(o.Err) {
			p.log.Warn("delivery failed, no action taken", "chat_id", chatID, "title", title, "error", o.Err)
			continue
		}

		if p.store.DeleteSubscription(ctx, chatID, title) {
			p.log.Info("removed subscription of unreachable chat", "chat_id", chatID, "title", title, "reason", o.Err.Error())
			deleted++
		} else {
			p.log.Warn("could not remove subscription of unreachable chat", "chat_id", chatID, "title", title, "reason", o.Err.Error())
		}
	}
	return deleted
}
