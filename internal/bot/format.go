package bot

import (
	"fmt"
	"strings"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
)

const msgNoSubscriptions = "You have no subscriptions yet. Use /add to subscribe to a title."

// FormatTitleList formats the tracked titles, numbered for /add.
func FormatTitleList(titles []model.Title) string {
	if len(titles) == 0 {
		return "No titles are tracked yet. They show up as soon as the site publishes new chapters."
	}
	var b strings.Builder
	b.WriteString("Tracked titles:\n")
	for i, t := range titles {
		fmt.Fprintf(&b, "\n%d. %s", i+1, t.Name)
		if t.LastChapter != nil {
			fmt.Fprintf(&b, " (last #%s)", t.LastChapter.Name)
		}
	}
	return b.String()
}

// FormatSubscriptionList formats the subscriptions of a chat with the
// latest chapter of each title, numbered for /del.
func FormatSubscriptionList(subs []model.Subscription) string {
	if len(subs) == 0 {
		return msgNoSubscriptions
	}
	var b strings.Builder
	b.WriteString("Your subscriptions:\n")
	for i, s := range subs {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, s.Title.Name)
		last := s.Title.LastChapter
		if last == nil {
			b.WriteString("   no chapter known yet\n")
			continue
		}
		fmt.Fprintf(&b, "   last #%s, %s\n", last.Name, last.Date.UTC().Format("2006-01-02 15:04 UTC"))
		if last.URL != "" {
			fmt.Fprintf(&b, "   %s\n", last.URL)
		}
	}
	return b.String()
}
