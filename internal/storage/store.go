package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
)

const dateLayout = "2006-01-02 15:04:05.000000000"

// Store is the typed tier over a SQLite primitive tier.
type Store struct {
	db  *SQLite
	log *slog.Logger
}

// New wraps an already initialized primitive tier.
func New(db *SQLite, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

// Open creates the database at dsn, ensures its schema and returns the
// typed store. An error here leaves no usable store.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	db := NewSQLite(dsn)
	if err := db.Init(ctx); err != nil {
		log.Error("initialize store", "dsn", dsn, "error", err)
		return nil, fmt.Errorf("initialize store: %w", err)
	}
	return New(db, log), nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReadChats returns every registered chat.
func (s *Store) ReadChats(ctx context.Context) ([]model.Chat, error) {
	rows, err := s.db.readChats(ctx, sqlReadChats)
	if err != nil {
		return nil, err
	}
	chats := make([]model.Chat, 0, len(rows))
	for _, r := range rows {
		chats = append(chats, model.Chat{ID: r.ID, Name: r.Name})
	}
	return chats, nil
}

// ReadChat returns the chat with the given ID, or nil if it is unknown.
func (s *Store) ReadChat(ctx context.Context, id int64) (*model.Chat, error) {
	rows, err := s.db.readChats(ctx, sqlReadChatWhere, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		s.log.Warn("more than one chat with the same id", "chat_id", id)
	}
	return &model.Chat{ID: rows[0].ID, Name: rows[0].Name}, nil
}

// InsertChat registers a new chat.
func (s *Store) InsertChat(ctx context.Context, id int64, name string) bool {
	return s.done("insert chat", s.db.Exec(ctx, sqlInsertChat, id, name), "chat_id", id)
}

// UpdateChatName renames a registered chat.
func (s *Store) UpdateChatName(ctx context.Context, id int64, name string) bool {
	return s.done("update chat name", s.db.Exec(ctx, sqlUpdateChatName, name, id), "chat_id", id)
}

// DeleteChat removes a chat together with its subscriptions.
func (s *Store) DeleteChat(ctx context.Context, id int64) bool {
	err := s.db.deleteCascade(ctx, []string{sqlDeleteSubscriptionsOfChat}, sqlDeleteChat, id)
	return s.done("delete chat", err, "chat_id", id)
}

// ReadTitles returns every title with its last chapter recomputed from
// the stored chapters.
func (s *Store) ReadTitles(ctx context.Context) ([]model.Title, error) {
	rows, err := s.db.readTitles(ctx, sqlReadTitles)
	if err != nil {
		return nil, err
	}
	return s.titles(ctx, rows)
}

// ReadTitle returns the named title, or nil if it is unknown.
func (s *Store) ReadTitle(ctx context.Context, name string) (*model.Title, error) {
	rows, err := s.db.readTitles(ctx, sqlReadTitleWhere, name)
	if err != nil {
		return nil, err
	}
	titles, err := s.titles(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return nil, nil
	}
	return &titles[0], nil
}

func (s *Store) titles(ctx context.Context, rows []titleRow) ([]model.Title, error) {
	titles := make([]model.Title, 0, len(rows))
	for _, r := range rows {
		chapters, err := s.ReadChapters(ctx, r.Name)
		if err != nil {
			return nil, err
		}
		// The stored last_chapter column is never consulted.
		titles = append(titles, model.Title{
			Name:        r.Name,
			Link:        r.Link,
			LastChapter: model.LatestChapter(chapters),
		})
	}
	return titles, nil
}

// InsertTitle starts tracking a new title with no last chapter.
func (s *Store) InsertTitle(ctx context.Context, name, link string) bool {
	return s.done("insert title", s.db.Exec(ctx, sqlInsertTitle, name, link, nullable("")), "title", name)
}

// UpdateTitleLast writes the stored last_chapter column. Reads ignore it.
func (s *Store) UpdateTitleLast(ctx context.Context, name, chapter string) bool {
	return s.done("update title last chapter", s.db.Exec(ctx, sqlUpdateTitleLast, nullable(chapter), name), "title", name)
}

// DeleteTitle removes a title with its chapters and subscriptions.
func (s *Store) DeleteTitle(ctx context.Context, name string) bool {
	err := s.db.deleteCascade(ctx,
		[]string{sqlDeleteSubscriptionsOfTitle, sqlDeleteChaptersWhereTitle},
		sqlDeleteTitle, name)
	return s.done("delete title", err, "title", name)
}

// ReadChapters returns the chapters stored for a title in insertion order.
func (s *Store) ReadChapters(ctx context.Context, title string) ([]model.Chapter, error) {
	rows, err := s.db.readChapters(ctx, title)
	if err != nil {
		return nil, err
	}
	chapters := make([]model.Chapter, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("chapter %q of %q: parse date: %w", r.Name, r.Title, err)
		}
		chapters = append(chapters, model.Chapter{
			Name:   r.Name,
			Number: r.Number,
			URL:    r.URL,
			Date:   date,
			Title:  r.Title,
		})
	}
	return chapters, nil
}

// InsertChapter stores a new chapter. Chapters are never updated.
func (s *Store) InsertChapter(ctx context.Context, ch model.Chapter) bool {
	err := s.db.Exec(ctx, sqlInsertChapter,
		ch.Name, ch.Number, ch.URL, ch.Date.UTC().Format(dateLayout), ch.Title)
	return s.done("insert chapter", err, "title", ch.Title, "chapter", ch.Name)
}

// DeleteChapter removes one chapter of a title.
func (s *Store) DeleteChapter(ctx context.Context, title, name string) bool {
	return s.done("delete chapter", s.db.Exec(ctx, sqlDeleteChapter, title, name), "title", title, "chapter", name)
}

// ReadSubscriptions returns every subscription joined with its chat and title.
func (s *Store) ReadSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := s.db.readSubscriptions(ctx, sqlReadSubscriptions)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, rows)
}

// ReadSubscriptionsByChat returns the subscriptions of one chat.
func (s *Store) ReadSubscriptionsByChat(ctx context.Context, chatID int64) ([]model.Subscription, error) {
	rows, err := s.db.readSubscriptions(ctx, sqlReadSubscriptionsWhereChat, chatID)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, rows)
}

// ReadSubscriptionsByTitle returns the subscriptions to one title.
func (s *Store) ReadSubscriptionsByTitle(ctx context.Context, title string) ([]model.Subscription, error) {
	rows, err := s.db.readSubscriptions(ctx, sqlReadSubscriptionsWhereTitle, title)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, rows)
}

// ReadResolvableSubscriptions returns every subscription whose chat and
// title exist. Dangling rows are logged and left out.
func (s *Store) ReadResolvableSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := s.db.readSubscriptions(ctx, sqlReadSubscriptions)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, rows, false)
}

// join resolves subscription rows against freshly loaded chats and
// titles. A row whose chat or title is absent fails the whole read.
func (s *Store) join(ctx context.Context, rows []subscriptionRow) ([]model.Subscription, error) {
	return s.resolve(ctx, rows, true)
}

func (s *Store) resolve(ctx context.Context, rows []subscriptionRow, strict bool) ([]model.Subscription, error) {
	chats, err := s.ReadChats(ctx)
	if err != nil {
		return nil, err
	}
	titles, err := s.ReadTitles(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]model.Chat, len(chats))
	for _, c := range chats {
		byID[c.ID] = c
	}

	subs := make([]model.Subscription, 0, len(rows))
	for _, r := range rows {
		var missing string
		chat, ok := byID[r.Chat]
		title := model.FindTitle(titles, r.Title)
		switch {
		case !ok:
			missing = "chat"
		case title == nil:
			missing = "title"
		}
		if missing != "" {
			dangling := fmt.Errorf("subscription (%d, %q): %s: %w", r.Chat, r.Title, missing, ErrDanglingReference)
			if strict {
				return nil, dangling
			}
			s.log.Error("skip subscription", "chat_id", r.Chat, "title", r.Title, "error", dangling)
			continue
		}
		subs = append(subs, model.Subscription{Chat: chat, Title: *title, LastAcknowledged: r.Last})
	}
	return subs, nil
}

// InsertSubscription stores a subscription of a registered chat to a
// known title with the given acknowledged chapter.
func (s *Store) InsertSubscription(ctx context.Context, chatID int64, title, last string) bool {
	if !s.exists(ctx, "insert subscription", chatID, title) {
		return false
	}
	return s.insertSubscription(ctx, chatID, title, last)
}

func (s *Store) insertSubscription(ctx context.Context, chatID int64, title, last string) bool {
	err := s.db.Exec(ctx, sqlInsertSubscription, chatID, title, last)
	return s.done("insert subscription", err, "chat_id", chatID, "title", title)
}

// exists reports whether both ends of a subscription are stored.
func (s *Store) exists(ctx context.Context, op string, chatID int64, title string) bool {
	chat, err := s.ReadChat(ctx, chatID)
	if err != nil || chat == nil {
		s.log.Error(op+": unknown chat", "chat_id", chatID, "error", err)
		return false
	}
	known, err := s.db.readTitles(ctx, sqlReadTitleWhere, title)
	if err != nil || len(known) == 0 {
		s.log.Error(op+": unknown title", "chat_id", chatID, "title", title, "error", err)
		return false
	}
	return true
}

// Subscribe opts a registered chat into a known title.
func (s *Store) Subscribe(ctx context.Context, chatID int64, title string) model.SubscribeResult {
	if !s.exists(ctx, "subscribe", chatID, title) {
		return model.SubscribeFailed
	}

	rows, err := s.db.readSubscriptions(ctx, sqlReadSubscriptionsWhereChat, chatID)
	if err != nil {
		s.log.Error("subscribe: read subscriptions", "chat_id", chatID, "error", err)
		return model.SubscribeFailed
	}
	for _, r := range rows {
		if r.Title == title {
			return model.SubscribeAlreadyExists
		}
	}

	if !s.insertSubscription(ctx, chatID, title, "") {
		return model.SubscribeFailed
	}
	return model.SubscribeCreated
}

// UpdateSubscriptionLast records the last chapter a chat was notified about.
func (s *Store) UpdateSubscriptionLast(ctx context.Context, chatID int64, title, last string) bool {
	err := s.db.Exec(ctx, sqlUpdateSubscriptionLast, last, chatID, title)
	return s.done("update subscription last", err, "chat_id", chatID, "title", title)
}

// DeleteSubscription removes the subscription of a chat to a title.
func (s *Store) DeleteSubscription(ctx context.Context, chatID int64, title string) bool {
	err := s.db.Exec(ctx, sqlDeleteSubscription, chatID, title)
	return s.done("delete subscription", err, "chat_id", chatID, "title", title)
}

func (s *Store) done(op string, err error, attrs ...any) bool {
	if err == nil {
		return true
	}
	lvl := slog.LevelError
	if errors.Is(err, ErrNoRowsAffected) {
		lvl = slog.LevelWarn
	}
	s.log.Log(context.Background(), lvl, op, append(attrs, "error", err)...)
	return false
}
