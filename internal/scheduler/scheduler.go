// Package scheduler runs the chapter pipeline once at startup and then on
// a fixed interval, never letting two passes overlap.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/pipeline"
)

// DefaultInterval is the time between two passes.
const DefaultInterval = 15 * time.Minute

// Scanner produces the episodes currently listed by the source.
type Scanner interface {
	Scan(ctx context.Context) model.Extraction
}

// Scheduler drives ingestion, reconciliation and pruning.
type Scheduler struct {
	source   Scanner
	ingester *pipeline.Ingester
	rec      *pipeline.Reconciler
	pruner   *pipeline.Pruner
	log      *slog.Logger
	tick     time.Duration

	running sync.Mutex
}

// New creates a Scheduler running every DefaultInterval.
func New(source Scanner, ingester *pipeline.Ingester, rec *pipeline.Reconciler, pruner *pipeline.Pruner, log *slog.Logger) *Scheduler {
	return &Scheduler{
		source:   source,
		ingester: ingester,
		rec:      rec,
		pruner:   pruner,
		log:      log,
		tick:     DefaultInterval,
	}
}

// SetTickInterval overrides the default interval. A non-positive d
// keeps DefaultInterval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	s.tick = d
}

// Run performs one pass immediately and then one per tick, blocking until
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.RunPass(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunPass(ctx)
		}
	}
}

// RunPass runs a full pass unless one is already in progress, in which
// case the call is skipped and false is returned. A started pass runs to
// completion even if ctx is cancelled meanwhile.
func (s *Scheduler) RunPass(ctx context.Context) bool {
	if !s.running.TryLock() {
		s.log.Warn("previous pass still running, skipping")
		return false
	}
	defer s.running.Unlock()

	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	extracted := s.source.Scan(ctx)
	inserted := s.ingester.Ingest(ctx, extracted)
	report := s.rec.Reconcile(ctx)
	pruned := s.pruner.Prune(ctx, report)

	s.log.Info("pass finished",
		"titles", len(extracted),
		"new_chapters", inserted,
		"notified", len(report)-len(report.Failed()),
		"failed", len(report.Failed()),
		"pruned", pruned,
		"duration", time.Since(start).Round(time.Millisecond).String())
	return true
}
