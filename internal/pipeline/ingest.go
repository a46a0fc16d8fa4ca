package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
)

// Ingester stores the titles and chapters an extraction reports that the
// store does not hold yet.
type Ingester struct {
	store ChapterStore
	log   *slog.Logger
	now   func() time.Time
}

// NewIngester creates an Ingester stamping chapters with the wall clock.
func NewIngester(store ChapterStore, log *slog.Logger) *Ingester {
	return &Ingester{store: store, log: log, now: time.Now}
}

// SetClock overrides the clock used to date new chapters.
func (in *Ingester) SetClock(now func() time.Time) {
	in.now = now
}

// Ingest persists the new titles and chapters of extracted. It returns
// the number of chapters inserted.
func (in *Ingester) Ingest(ctx context.Context, extracted model.Extraction) int {
	if len(extracted) == 0 {
		in.log.Error("no chapters found")
		return 0
	}

	titles, err := in.store.ReadTitles(ctx)
	if err != nil {
		in.log.Error("ingest: read titles", "error", err)
	}

	// The source gives no publish date, so the whole pass shares one
	// discovery instant.
	now := in.now().UTC()

	names := make([]string, 0, len(extracted))
	for name := range extracted {
		names = append(names, name)
	}
	sort.Strings(names)

	inserted := 0
	for _, name := range names {
		if model.FindTitle(titles, name) == nil {
			if in.store.InsertTitle(ctx, name, "") {
				in.log.Info("new title", "title", name)
			} else {
				in.log.Warn("could not create title", "title", name)
			}
		}
		inserted += in.ingestTitle(ctx, name, extracted[name], now)
	}

	if inserted > 0 {
		in.log.Info("ingested chapters", "count", inserted)
	}
	return inserted
}

func (in *Ingester) ingestTitle(ctx context.Context, title string, episodes []model.Episode, now time.Time) int {
	existing, err := in.store.ReadChapters(ctx, title)
	if err != nil {
		in.log.Error("ingest: read chapters", "title", title, "error", err)
		return 0
	}

	inserted := 0
	for _, ep := range episodes {
		// An empty name reads as "never notified" on a subscription.
		if ep.Episode == "" {
			in.log.Warn("skip chapter without name", "title", title, "url", ep.URL)
			continue
		}
		candidate := model.Chapter{
			Name:   ep.Episode,
			Number: ep.Episode,
			URL:    ep.URL,
			Date:   now,
			Title:  title,
		}
		if model.ContainsChapter(existing, candidate) {
			continue
		}
		if !in.store.InsertChapter(ctx, candidate) {
			in.log.Warn("could not store chapter", "title", title, "chapter", candidate.Name)
			continue
		}
		in.log.Info("new chapter", "title", title, "chapter", candidate.Name)
		existing = append(existing, candidate)
		inserted++
	}
	return inserted
}
