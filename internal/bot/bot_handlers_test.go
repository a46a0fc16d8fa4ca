package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/config"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/delivery"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/storage"
)

// --- mocks ---

type sentMsg struct {
	ChatID  int64
	Text    string
	Buttons []string
}

type mockAPI struct {
	mu       sync.Mutex
	sent     []sentMsg
	requests []tgbotapi.Chattable
	sendErr  error
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return tgbotapi.Message{}, m.sendErr
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s := sentMsg{ChatID: msg.ChatID, Text: msg.Text}
		if kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			for _, row := range kb.InlineKeyboard {
				for _, btn := range row {
					s.Buttons = append(s.Buttons, *btn.CallbackData)
				}
			}
		}
		m.sent = append(m.sent, s)
	}
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(tgbotapi.UpdatesChannel)
}

func (m *mockAPI) StopReceivingUpdates() {}

func (m *mockAPI) last() sentMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMsg{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockAPI) lastText() string {
	return m.last().Text
}

func (m *mockAPI) allTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.Text
	}
	return out
}

func (m *mockAPI) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

// --- helpers ---

func newTestBot(t *testing.T) (*Bot, *mockAPI, *storage.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.Open(context.Background(), ":memory:", log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	api := &mockAPI{}
	b := &Bot{
		api:     api,
		store:   store,
		cfg:     &config.Config{},
		limiter: newLimiter(1000),
		log:     log,
	}
	return b, api, store
}

func seedChat(t *testing.T, store *storage.Store, id int64) {
	t.Helper()
	if !store.InsertChat(context.Background(), id, "reader") {
		t.Fatalf("seed chat %d", id)
	}
}

func seedTitle(t *testing.T, store *storage.Store, name string, chapters ...string) {
	t.Helper()
	ctx := context.Background()
	if !store.InsertTitle(ctx, name, "") {
		t.Fatalf("seed title %q", name)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, ch := range chapters {
		c := model.Chapter{Name: ch, Number: ch, URL: "https://example.com/" + ch, Date: base.AddDate(0, 0, i), Title: name}
		if !store.InsertChapter(ctx, c) {
			t.Fatalf("seed chapter %q of %q", ch, name)
		}
	}
}

func subscribedTitles(t *testing.T, store *storage.Store, chatID int64) []string {
	t.Helper()
	subs, err := store.ReadSubscriptionsByChat(context.Background(), chatID)
	if err != nil {
		t.Fatalf("read subscriptions: %v", err)
	}
	var out []string
	for _, s := range subs {
		out = append(out, s.Title.Name)
	}
	return out
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("reply missing %q, got:\n%s", want, got)
	}
}

// --- handler tests ---

func TestHandleStart(t *testing.T) {
	ctx := context.Background()

	t.Run("registers new chat", func(t *testing.T) {
		b, api, store := newTestBot(t)
		b.handleStart(ctx, 100, "reader")
		requireContains(t, api.lastText(), "Welcome")

		chat, err := store.ReadChat(ctx, 100)
		if err != nil {
			t.Fatalf("read chat: %v", err)
		}
		if diff := cmp.Diff(&model.Chat{ID: 100, Name: "reader"}, chat); diff != "" {
			t.Errorf("chat mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("already started refreshes name", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		b.handleStart(ctx, 100, "renamed group")
		requireContains(t, api.lastText(), "already started")

		chat, _ := store.ReadChat(ctx, 100)
		if diff := cmp.Diff("renamed group", chat.Name); diff != "" {
			t.Errorf("chat name mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestHandleHelp(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleHelp(100)
	for _, cmd := range []string{"/start", "/titles", "/add", "/del", "/list"} {
		requireContains(t, api.lastText(), cmd)
	}
}

func TestHandleTitles(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleTitles(ctx, 100)
		requireContains(t, api.lastText(), "No titles are tracked yet")
	})

	t.Run("numbered", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedTitle(t, store, "Title A", "11", "12")
		seedTitle(t, store, "Title B")
		b.handleTitles(ctx, 100)
		requireContains(t, api.lastText(), "1. Title A (last #12)")
		requireContains(t, api.lastText(), "2. Title B")
	})
}

func TestHandleAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("no titles", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		b.handleAdd(ctx, 100, "Title A")
		requireContains(t, api.lastText(), "No titles are tracked yet")
	})

	t.Run("by name", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		seedTitle(t, store, "Title A")
		b.handleAdd(ctx, 100, "Title A")
		requireContains(t, api.lastText(), `Subscribed to "Title A"`)
		if diff := cmp.Diff([]string{"Title A"}, subscribedTitles(t, store, 100)); diff != "" {
			t.Errorf("subscriptions mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("by number", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		seedTitle(t, store, "Title A")
		seedTitle(t, store, "Title B")
		b.handleAdd(ctx, 100, "2")
		requireContains(t, api.lastText(), `Subscribed to "Title B"`)
	})

	t.Run("already subscribed", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		seedTitle(t, store, "Title A")
		b.handleAdd(ctx, 100, "Title A")
		b.handleAdd(ctx, 100, "Title A")
		requireContains(t, api.lastText(), "already subscribed")
		if diff := cmp.Diff([]string{"Title A"}, subscribedTitles(t, store, 100)); diff != "" {
			t.Errorf("subscriptions mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown title", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		seedTitle(t, store, "Title A")
		b.handleAdd(ctx, 100, "Title Z")
		requireContains(t, api.lastText(), "unknown title")
	})

	t.Run("menu without args", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		seedTitle(t, store, "Title A")
		seedTitle(t, store, "Title B")
		b.handleAdd(ctx, 100, "")
		if diff := cmp.Diff([]string{"add:1", "add:2", "cancel:0"}, api.last().Buttons); diff != "" {
			t.Errorf("menu buttons mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestHandleDel(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing to delete", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		b.handleDel(ctx, 100, "Title A")
		requireContains(t, api.lastText(), "no subscriptions yet")
	})

	t.Run("by number of the list", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		seedTitle(t, store, "Title A")
		seedTitle(t, store, "Title B")
		store.Subscribe(ctx, 100, "Title B")
		store.Subscribe(ctx, 100, "Title A")

		b.handleDel(ctx, 100, "1")
		requireContains(t, api.lastText(), `Unsubscribed from "Title B"`)
		if diff := cmp.Diff([]string{"Title A"}, subscribedTitles(t, store, 100)); diff != "" {
			t.Errorf("subscriptions mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("not subscribed", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		seedTitle(t, store, "Title A")
		seedTitle(t, store, "Title B")
		store.Subscribe(ctx, 100, "Title A")
		b.handleDel(ctx, 100, "Title B")
		requireContains(t, api.lastText(), "unknown title")
	})
}

func TestHandleList(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		b.handleList(ctx, 100)
		requireContains(t, api.lastText(), "no subscriptions yet")
	})

	t.Run("with latest chapter", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		seedTitle(t, store, "Title A", "11", "12")
		store.Subscribe(ctx, 100, "Title A")
		b.handleList(ctx, 100)
		requireContains(t, api.lastText(), "1. Title A")
		requireContains(t, api.lastText(), "last #12, 2024-01-02 00:00 UTC")
		requireContains(t, api.lastText(), "https://example.com/12")
	})
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()

	makeMsg := func(cmd, args string) *tgbotapi.Message {
		text := "/" + cmd
		if args != "" {
			text += " " + args
		}
		return &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: 100, UserName: "reader"},
			Text: text,
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: len("/" + cmd)},
			},
		}
	}

	t.Run("requires start", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		for _, cmd := range []string{"titles", "add", "del", "list", "unknown_cmd"} {
			api.reset()
			b.handleCommand(ctx, makeMsg(cmd, ""))
			requireContains(t, api.lastText(), "Use /start first")
		}
	})

	t.Run("dispatches known commands", func(t *testing.T) {
		b, api, _ := newTestBot(t)

		cmds := []struct {
			cmd      string
			args     string
			contains string
		}{
			{"help", "", "/add"},
			{"start", "", "Welcome"},
			{"titles", "", "No titles"},
			{"list", "", "no subscriptions"},
			{"del", "1", "no subscriptions"},
			{"unknown_cmd", "", "Unknown command"},
		}

		for _, tc := range cmds {
			api.reset()
			b.handleCommand(ctx, makeMsg(tc.cmd, tc.args))
			requireContains(t, api.lastText(), tc.contains)
		}
	})
}

func TestHandleUpdateAllowList(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.cfg = &config.Config{AllowedUsers: []int64{1}}

	msg := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 2},
		Chat:     &tgbotapi.Chat{ID: 100},
		Text:     "/start",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len("/start")}},
	}
	b.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})
	requireContains(t, api.lastText(), "Access denied")
}

func TestHandleCallback(t *testing.T) {
	ctx := context.Background()

	cbMsg := &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: 100}}

	t.Run("invalid data format", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleCallback(ctx, &tgbotapi.CallbackQuery{ID: "cb1", Data: "nocolon", Message: cbMsg})
		if diff := cmp.Diff(0, len(api.allTexts())); diff != "" {
			t.Errorf("expected no text messages (-want +got):\n%s", diff)
		}
	})

	t.Run("invalid position", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleCallback(ctx, &tgbotapi.CallbackQuery{ID: "cb2", Data: "add:abc", Message: cbMsg})
		if diff := cmp.Diff(0, len(api.allTexts())); diff != "" {
			t.Errorf("expected no text messages (-want +got):\n%s", diff)
		}
	})

	t.Run("add callback", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		seedTitle(t, store, "Title A")
		b.handleCallback(ctx, &tgbotapi.CallbackQuery{ID: "cb3", Data: "add:1", Message: cbMsg})
		requireContains(t, api.lastText(), `Subscribed to "Title A"`)
	})

	t.Run("del callback", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedChat(t, store, 100)
		seedTitle(t, store, "Title A")
		store.Subscribe(ctx, 100, "Title A")
		b.handleCallback(ctx, &tgbotapi.CallbackQuery{ID: "cb4", Data: "del:1", Message: cbMsg})
		requireContains(t, api.lastText(), `Unsubscribed from "Title A"`)
	})

	t.Run("callback acknowledged", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleCallback(ctx, &tgbotapi.CallbackQuery{ID: "cb5", Data: "cancel:0", Message: cbMsg})
		api.mu.Lock()
		defer api.mu.Unlock()
		if diff := cmp.Diff(1, len(api.requests)); diff != "" {
			t.Errorf("request count mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSetCommands(t *testing.T) {
	b, api, _ := newTestBot(t)
	if err := b.SetCommands(); err != nil {
		t.Fatalf("set commands: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if diff := cmp.Diff(1, len(api.requests)); diff != "" {
		t.Fatalf("request count mismatch (-want +got):\n%s", diff)
	}
	cfg, ok := api.requests[0].(tgbotapi.SetMyCommandsConfig)
	if !ok {
		t.Fatalf("unexpected request %T", api.requests[0])
	}
	var got []string
	for _, c := range cfg.Commands {
		got = append(got, c.Command)
	}
	if diff := cmp.Diff([]string{"start", "titles", "add", "del", "list", "help"}, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDeliver(t *testing.T) {
	tests := []struct {
		name            string
		sendErr         error
		wantErr         bool
		wantUnreachable bool
	}{
		{name: "success"},
		{
			name:            "blocked by user",
			sendErr:         &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"},
			wantErr:         true,
			wantUnreachable: true,
		},
		{
			name:            "chat not found",
			sendErr:         &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"},
			wantErr:         true,
			wantUnreachable: true,
		},
		{
			name:    "other bad request",
			sendErr: &tgbotapi.Error{Code: 400, Message: "Bad Request: message is too long"},
			wantErr: true,
		},
		{
			name:    "too many requests",
			sendErr: &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 3"},
			wantErr: true,
		},
		{
			name:    "network error",
			sendErr: errors.New("connection reset by peer"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api, _ := newTestBot(t)
			api.sendErr = tt.sendErr

			err := b.Deliver(context.Background(), 100, "hello")
			if diff := cmp.Diff(tt.wantErr, err != nil); diff != "" {
				t.Fatalf("error presence mismatch (-want +got):\n%s (err: %v)", diff, err)
			}
			if diff := cmp.Diff(tt.wantUnreachable, delivery.IsUnreachable(err)); diff != "" {
				t.Errorf("unreachable mismatch (-want +got):\n%s", diff)
			}
			if !tt.wantErr {
				if diff := cmp.Diff(sentMsg{ChatID: 100, Text: "hello"}, api.last()); diff != "" {
					t.Errorf("sent message mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestDeliverCancelled(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.limiter = newLimiter(0.001)
	// Spend the only token so the next call has to wait.
	_ = b.Deliver(context.Background(), 100, "first")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Deliver(ctx, 100, "second"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if diff := cmp.Diff([]string{"first"}, api.allTexts()); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}
