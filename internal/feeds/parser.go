package feeds

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/xmlquery"
	"github.com/twax-curation-api/internal/models"
	"github.com/twax-curation-api/internal/validation"
)

// MaxFeedContent caps the content taken from a single feed entry
const MaxFeedContent = 5000

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC3339Nano,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
}

// Parse reads an RSS 2.0, RSS 1.0 or Atom document and returns at most max
// candidates labelled with source. Entries without a title or link are
// skipped.
func Parse(r io.Reader, source string, max int) ([]models.Candidate, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	nodes := xmlquery.Find(doc, "//item")
	if len(nodes) == 0 {
		nodes = xmlquery.Find(doc, "//entry")
	}
	if len(nodes) == 0 && xmlquery.FindOne(doc, "//channel|//feed") == nil {
		return nil, fmt.Errorf("parse feed: no rss channel or atom feed element")
	}

	candidates := make([]models.Candidate, 0, max)
	for _, node := range nodes {
		if max > 0 && len(candidates) >= max {
			break
		}
		if c, ok := parseEntry(node, source); ok {
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}

func parseEntry(node *xmlquery.Node, source string) (models.Candidate, bool) {
	var title, link, encoded, summary, date string

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		switch child.Data {
		case "title":
			title = child.InnerText()
		case "link":
			if href := child.SelectAttr("href"); href != "" {
				rel := child.SelectAttr("rel")
				if link == "" || rel == "alternate" {
					link = href
				}
			} else if link == "" {
				link = child.InnerText()
			}
		case "guid", "id":
			if link == "" && strings.HasPrefix(strings.TrimSpace(child.InnerText()), "http") && child.SelectAttr("isPermaLink") != "false" {
				link = child.InnerText()
			}
		case "encoded":
			encoded = child.InnerText()
		case "content":
			if encoded == "" {
				encoded = child.InnerText()
			}
		case "description", "summary":
			summary = child.InnerText()
		case "pubDate", "published", "date":
			date = child.InnerText()
		case "updated":
			if date == "" {
				date = child.InnerText()
			}
		}
	}

	title = strings.Join(strings.Fields(HTMLToText(title)), " ")
	link = strings.TrimSpace(link)
	if title == "" || link == "" {
		return models.Candidate{}, false
	}

	content := HTMLToText(encoded)
	if content == "" {
		content = HTMLToText(summary)
	}
	if content == "" {
		content = title
	}

	return models.Candidate{
		Title:       title,
		URL:         link,
		Content:     validation.TruncateRunes(content, MaxFeedContent),
		Source:      source,
		PublishedAt: parseDate(date),
	}, true
}

// HTMLToText strips markup and collapses whitespace
func HTMLToText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
