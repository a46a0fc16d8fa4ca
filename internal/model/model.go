// Package model defines the domain types used across the application.
package model

import "time"

// Chat is a notification destination.
type Chat struct {
	ID   int64
	Name string
}

// Chapter is one published installment of a Title. Its identity is the
// pair (Title, Name). Number is an opaque label, sources use values such
// as "Extra" or "12.5".
type Chapter struct {
	Name   string
	Number string
	URL    string
	Date   time.Time
	Title  string
}

// Title is a tracked series. LastChapter is derived from the stored
// chapters on every read and is nil while the title has none.
type Title struct {
	Name        string
	Link        string
	LastChapter *Chapter
}

// Subscription is the standing interest of a Chat in a Title.
// LastAcknowledged holds the name of the last chapter the chat was
// successfully notified about; empty means never notified.
type Subscription struct {
	Chat             Chat
	Title            Title
	LastAcknowledged string
}

// Episode is a newly seen chapter record as reported by the source.
type Episode struct {
	Episode string
	URL     string
}

// Extraction maps a title name to the episodes seen for it in one scan.
type Extraction map[string][]Episode

// SubscribeResult is the outcome of subscribing a chat to a title.
type SubscribeResult int

// Possible subscribe outcomes.
const (
	SubscribeFailed SubscribeResult = iota
	SubscribeCreated
	SubscribeAlreadyExists
)

func (r SubscribeResult) String() string {
	switch r {
	case SubscribeCreated:
		return "created"
	case SubscribeAlreadyExists:
		return "already_exists"
	default:
		return "failed"
	}
}

// FindTitle returns the title with the given name, or nil.
func FindTitle(titles []Title, name string) *Title {
	for i := range titles {
		if titles[i].Name == name {
			return &titles[i]
		}
	}
	return nil
}

// ContainsChapter reports whether chapters holds an entry matching the
// candidate on both name and number.
func ContainsChapter(chapters []Chapter, candidate Chapter) bool {
	for _, ch := range chapters {
		if ch.Name == candidate.Name && ch.Number == candidate.Number {
			return true
		}
	}
	return false
}

// LatestChapter returns the chapter with the greatest date. On equal
// dates the one appearing first wins. Returns nil for an empty slice.
func LatestChapter(chapters []Chapter) *Chapter {
	var latest *Chapter
	for i := range chapters {
		if latest == nil || latest.Date.Before(chapters[i].Date) {
			latest = &chapters[i]
		}
	}
	if latest == nil {
		return nil
	}
	cp := *latest
	return &cp
}
