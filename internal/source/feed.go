package source

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
)

// Item titles such as "One Piece Chapter 1100", "Title A Ch. 12.5" or "Title A #12".
var feedItemRe = regexp.MustCompile(`(?i)^\s*(.+?)\s+(?:chapter|ch\.?|#)\s*([^\s#]+)\s*$`)

// ExtractFeed reads the RSS or Atom feed of the tracked site. Items whose
// title does not name an episode are skipped.
func ExtractFeed(page string, log *slog.Logger) model.Extraction {
	out := model.Extraction{}
	if page == "" {
		return out
	}

	feed, err := gofeed.NewParser().ParseString(page)
	if err != nil {
		log.Error("parse feed", "error", err)
		return out
	}

	for _, item := range feed.Items {
		m := feedItemRe.FindStringSubmatch(item.Title)
		if m == nil {
			log.Debug("skip feed item", "item", item.Title)
			continue
		}
		title := strings.TrimSpace(m[1])
		out[title] = append(out[title], model.Episode{Episode: m[2], URL: item.Link})
	}
	return out
}
