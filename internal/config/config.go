// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when a variable is unset.
const (
	DefaultDatabasePath    = "./data/chapters.db"
	DefaultSourceURL       = "https://mangapanda.onl"
	DefaultSourceFormat    = "html"
	DefaultUserAgent       = "Mozilla/5.0"
	DefaultPollInterval    = 15 * time.Minute
	DefaultDeliveryWorkers = 4
	DefaultDeliveryRate    = 20.0
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	SourceURL    string
	SourceFormat string
	UserAgent    string
	PollInterval time.Duration

	DeliveryWorkers int
	DeliveryRate    float64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	format := strings.ToLower(getenv("SOURCE_FORMAT", DefaultSourceFormat))
	if format != "html" && format != "rss" {
		return nil, fmt.Errorf("invalid SOURCE_FORMAT %q, use: html, rss", format)
	}

	interval := DefaultPollInterval
	if raw := os.Getenv("POLL_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q: %w", raw, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("POLL_INTERVAL must be positive, got %s", d)
		}
		interval = d
	}

	workers := DefaultDeliveryWorkers
	if raw := os.Getenv("DELIVERY_WORKERS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("DELIVERY_WORKERS must be a positive integer, got %q", raw)
		}
		workers = n
	}

	deliveryRate := DefaultDeliveryRate
	if raw := os.Getenv("DELIVERY_RATE"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 {
			return nil, fmt.Errorf("DELIVERY_RATE must be a positive number, got %q", raw)
		}
		deliveryRate = r
	}

	return &Config{
		TelegramBotToken: token,
		DatabasePath:     getenv("DATABASE_PATH", DefaultDatabasePath),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		AllowedUsers:     allowedUsers,
		SourceURL:        getenv("SOURCE_URL", DefaultSourceURL),
		SourceFormat:     format,
		UserAgent:        getenv("USER_AGENT", DefaultUserAgent),
		PollInterval:     interval,
		DeliveryWorkers:  workers,
		DeliveryRate:     deliveryRate,
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
