package source

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alvmarrod/tgbot-chapter-notifier/internal/model"
)

// ExtractHTML reads the "latest updates" listing of the tracked site.
//
// Each entry is a div.media holding a div.media-left and a div.media-body.
// The body carries the title as the first link of its h4 and the newest
// episode as a direct child link whose span reads "#<episode>". The first
// entry without such a link starts the popular list, where scanning stops.
func ExtractHTML(page string, log *slog.Logger) model.Extraction {
	out := model.Extraction{}
	if page == "" {
		return out
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		log.Error("parse html", "error", err)
		return out
	}

	doc.Find("div.media").EachWithBreak(func(_ int, media *goquery.Selection) bool {
		left := media.Find("div.media-left")
		body := media.Find("div.media-body").First()
		if left.Length() == 0 || body.Length() == 0 {
			return true
		}

		link := body.Find("h4").First().Find("a").First()
		if link.Length() == 0 {
			log.Error("parse html: entry without title link")
			return false
		}
		title := strings.TrimSpace(link.Text())

		latest := body.ChildrenFiltered("a").First()
		span := latest.Find("span").First()
		href, ok := latest.Attr("href")
		if latest.Length() == 0 || span.Length() == 0 || !ok {
			log.Debug("reached the list of popular titles, stopping")
			return false
		}

		episode := strings.TrimSpace(strings.Trim(strings.TrimSpace(span.Text()), "#"))
		if episode == "" {
			log.Debug("skip entry without episode", "title", title)
			return true
		}
		out[title] = append(out[title], model.Episode{Episode: episode, URL: href})
		return true
	})

	return out
}
