package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/delivery"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/storage"
)

// DefaultWorkers is the number of deliveries sent concurrently.
const DefaultWorkers = 4

// Reconciler notifies every subscription whose acknowledged chapter
// differs from the latest chapter of its title.
type Reconciler struct {
	store   SubscriptionStore
	sender  Deliverer
	workers int
	log     *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(store SubscriptionStore, sender Deliverer, log *slog.Logger) *Reconciler {
	return &Reconciler{store: store, sender: sender, workers: DefaultWorkers, log: log}
}

// SetWorkers overrides the number of concurrent deliveries.
func (r *Reconciler) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	r.workers = n
}

// Reconcile runs one pass over all subscriptions. Each subscription gets
// at most one delivery attempt. The report holds one outcome per attempt,
// in subscription order; skipped subscriptions are not reported.
func (r *Reconciler) Reconcile(ctx context.Context) Report {
	subs, err := r.readSubscriptions(ctx)
	if err != nil {
		r.log.Error("reconcile: read subscriptions", "error", err)
		return nil
	}
	titles, err := r.store.ReadTitles(ctx)
	if err != nil {
		r.log.Error("reconcile: read titles", "error", err)
		return nil
	}

	results := make([]*Outcome, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, sub := range subs {
		latest, ok := r.target(sub, titles)
		if !ok {
			continue
		}
		g.Go(func() error {
			results[i] = r.notify(gctx, sub, latest)
			return nil
		})
	}
	_ = g.Wait()

	var report Report
	for _, o := range results {
		if o != nil {
			report = append(report, *o)
		}
	}

	if failed := len(report.Failed()); len(report) > 0 {
		r.log.Info("reconciled subscriptions", "attempted", len(report), "failed", failed)
	}
	return report
}

// readSubscriptions falls back to skipping dangling rows so that one
// orphaned subscription does not stall every other subscriber.
func (r *Reconciler) readSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	subs, err := r.store.ReadSubscriptions(ctx)
	if !errors.Is(err, storage.ErrDanglingReference) {
		return subs, err
	}
	r.log.Error("reconcile: dangling subscriptions, skipping them", "error", err)
	return r.store.ReadResolvableSubscriptions(ctx)
}

// target returns the chapter sub must be notified about, if any.
func (r *Reconciler) target(sub model.Subscription, titles []model.Title) (model.Chapter, bool) {
	title := model.FindTitle(titles, sub.Title.Name)
	if title == nil {
		r.log.Error("subscription to unknown title", "chat_id", sub.Chat.ID, "title", sub.Title.Name)
		return model.Chapter{}, false
	}
	if title.LastChapter == nil {
		r.log.Error("title without last chapter", "chat_id", sub.Chat.ID, "title", title.Name)
		return model.Chapter{}, false
	}
	if sub.LastAcknowledged == title.LastChapter.Name {
		r.log.Debug("subscription up to date", "chat_id", sub.Chat.ID, "title", title.Name, "chapter", sub.LastAcknowledged)
		return model.Chapter{}, false
	}
	return *title.LastChapter, true
}

func (r *Reconciler) notify(ctx context.Context, sub model.Subscription, latest model.Chapter) *Outcome {
	out := &Outcome{Subscription: sub, Chapter: latest}

	if err := r.sender.Deliver(ctx, sub.Chat.ID, delivery.FormatChapter(latest)); err != nil {
		out.Err = err
		r.log.Debug("delivery failed", "chat_id", sub.Chat.ID, "title", sub.Title.Name, "chapter", latest.Name, "error", err)
		return out
	}

	if !r.store.UpdateSubscriptionLast(ctx, sub.Chat.ID, sub.Title.Name, latest.Name) {
		r.log.Warn("delivered but could not acknowledge, will notify again",
			"chat_id", sub.Chat.ID, "title", sub.Title.Name, "chapter", latest.Name)
		return out
	}
	out.Subscription.LastAcknowledged = latest.Name
	return out
}
