package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/delivery"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/storage"
)

var errTimeout = errors.New("request timeout")

type sentMessage struct {
	ChatID int64
	Text   string
}

// mockDeliverer records messages and fails chats listed in failures.
type mockDeliverer struct {
	mu       sync.Mutex
	failures map[int64]error
	messages []sentMessage
}

func (m *mockDeliverer) Deliver(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[chatID]; err != nil {
		return err
	}
	m.messages = append(m.messages, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *mockDeliverer) fail(chatID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = map[int64]error{}
	}
	m.failures[chatID] = err
}

func (m *mockDeliverer) getMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentMessage, len(m.messages))
	copy(cp, m.messages)
	sort.Slice(cp, func(i, j int) bool { return cp[i].ChatID < cp[j].ChatID })
	return cp
}

func blocked() error {
	return fmt.Errorf("forbidden: bot was blocked by the user: %w", delivery.ErrUnreachable)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, _ := newTestStoreWithDB(t)
	return s
}

// newTestStoreWithDB also returns the primitive tier, for rows the typed
// store refuses to write.
func newTestStoreWithDB(t *testing.T) (*storage.Store, *storage.SQLite) {
	t.Helper()
	db := storage.NewSQLite(":memory:")
	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	s := storage.New(db, discardLogger())
	t.Cleanup(func() { _ = s.Close() })
	return s, db
}

func day(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedChat(t *testing.T, s *storage.Store, id int64) {
	t.Helper()
	if !s.InsertChat(context.Background(), id, fmt.Sprintf("chat-%d", id)) {
		t.Fatalf("insert chat %d", id)
	}
}

func seedTitle(t *testing.T, s *storage.Store, name string, chapters ...model.Chapter) {
	t.Helper()
	ctx := context.Background()
	if !s.InsertTitle(ctx, name, "") {
		t.Fatalf("insert title %q", name)
	}
	for _, ch := range chapters {
		ch.Title = name
		if ch.Number == "" {
			ch.Number = ch.Name
		}
		if !s.InsertChapter(ctx, ch) {
			t.Fatalf("insert chapter %q of %q", ch.Name, name)
		}
	}
}

func seedSubscription(t *testing.T, s *storage.Store, chatID int64, title, last string) {
	t.Helper()
	if !s.InsertSubscription(context.Background(), chatID, title, last) {
		t.Fatalf("insert subscription (%d, %q)", chatID, title)
	}
}

// seedOrphan stores a subscription whose chat or title may not exist.
func seedOrphan(t *testing.T, db *storage.SQLite, chatID int64, title string) {
	t.Helper()
	err := db.Exec(context.Background(), `INSERT INTO subscriptions (chat, title, last) VALUES (?, ?, '')`, chatID, title)
	if err != nil {
		t.Fatalf("insert orphan subscription (%d, %q): %v", chatID, title, err)
	}
}

// acknowledged returns chat id -> last acknowledged chapter for title.
func acknowledged(t *testing.T, s *storage.Store, title string) map[int64]string {
	t.Helper()
	subs, err := s.ReadSubscriptionsByTitle(context.Background(), title)
	if err != nil {
		t.Fatalf("read subscriptions: %v", err)
	}
	out := make(map[int64]string, len(subs))
	for _, sub := range subs {
		out[sub.Chat.ID] = sub.LastAcknowledged
	}
	return out
}
