// Package delivery holds what the pipeline and the messaging adapter
// share about sending notifications: the failure taxonomy and the
// new-chapter message.
package delivery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
)

// ErrUnreachable marks a destination that will never accept messages
// again, for example a user who blocked the bot.
var ErrUnreachable = errors.New("destination unreachable")

// IsUnreachable reports whether err is a permanent delivery failure.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// FormatChapter renders the notification sent for a new chapter.
func FormatChapter(ch model.Chapter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕✅ New chapter %s\n\n", ch.Name)
	fmt.Fprintf(&b, "%s #%s", ch.Title, ch.Name)
	if ch.URL != "" {
		b.WriteString("\n\n")
		b.WriteString(ch.URL)
	}
	return b.String()
}
