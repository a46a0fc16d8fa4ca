package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/bot"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/config"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/pipeline"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/scheduler"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/source"
	"github.com/alvmarrod/tgbot-chapter-notifier/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	format, err := source.ParseFormat(cfg.SourceFormat)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DatabasePath, log)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	b, err := bot.New(cfg.TelegramBotToken, store, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}
	if err := b.SetCommands(); err != nil {
		log.Warn("register command menu", "error", err)
	}

	fetcher := source.NewFetcher(http.DefaultClient, cfg.UserAgent, log)
	src := source.New(cfg.SourceURL, format, fetcher, log)

	rec := pipeline.NewReconciler(store, b, log)
	rec.SetWorkers(cfg.DeliveryWorkers)

	sched := scheduler.New(src,
		pipeline.NewIngester(store, log),
		rec,
		pipeline.NewPruner(store, log),
		log)
	sched.SetTickInterval(cfg.PollInterval)

	log.Info("starting bot", "source", src.URL(), "format", string(format), "interval", cfg.PollInterval.String())

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	b.Run(ctx)
	// Let a pass in progress finish before the store closes.
	<-done

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
