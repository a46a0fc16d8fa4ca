// Package pipeline turns extracted episodes into stored chapters,
// notifies subscribers that are behind and drops subscriptions whose
// destination can no longer be reached.
//
// One pass runs Ingester, Reconciler and Pruner in that order. Failures
// of single items are logged and never abort the rest of a pass.
package pipeline

import (
	"context"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
)

// ChapterStore is the part of the store used by ingestion.
type ChapterStore interface {
	ReadTitles(ctx context.Context) ([]model.Title, error)
	InsertTitle(ctx context.Context, name, link string) bool
	ReadChapters(ctx context.Context, title string) ([]model.Chapter, error)
	InsertChapter(ctx context.Context, ch model.Chapter) bool
}

// SubscriptionStore is the part of the store used by reconciliation.
type SubscriptionStore interface {
	ReadTitles(ctx context.Context) ([]model.Title, error)
	ReadSubscriptions(ctx context.Context) ([]model.Subscription, error)
	ReadResolvableSubscriptions(ctx context.Context) ([]model.Subscription, error)
	UpdateSubscriptionLast(ctx context.Context, chatID int64, title, last string) bool
}

// PruneStore is the part of the store used by pruning.
type PruneStore interface {
	DeleteSubscription(ctx context.Context, chatID int64, title string) bool
}

// Deliverer sends a message to a chat. A permanent failure is reported
// with an error wrapping delivery.ErrUnreachable.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, text string) error
}

// Outcome is the result of the single delivery attempted for a
// subscription during a pass. Err is nil on success.
type Outcome struct {
	Subscription model.Subscription
	Chapter      model.Chapter
	Err          error
}

// Report lists the outcomes of one reconciliation pass.
type Report []Outcome

// Failed returns the outcomes whose delivery did not succeed.
func (r Report) Failed() Report {
	var out Report
	for _, o := range r {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}
