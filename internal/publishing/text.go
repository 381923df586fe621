package publishing

import (
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
	"github.com/twax-curation-api/internal/models"
	"golang.org/x/text/unicode/norm"
)

// Ellipsis marks truncated text
const Ellipsis = "..."

// linkSeparator sits between the post body and the appended article URL
const linkSeparator = "\n\n"

// Length returns the length of s in codepoints after NFC normalization,
// which is how limits are enforced.
func Length(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// Truncate fits text into limit codepoints. Text that already fits is
// returned NFC-normalized and otherwise unchanged; longer text is cut at a
// grapheme cluster boundary and ends with Ellipsis. Truncate(Truncate(s, n), n)
// equals Truncate(s, n).
func Truncate(text string, limit int) string {
	text = norm.NFC.String(text)
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	marker := Ellipsis
	if limit < len(marker) {
		return marker[:limit]
	}
	budget := limit - len(marker)

	var b strings.Builder
	used := 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		cluster := g.Str()
		n := utf8.RuneCountInString(cluster)
		if used+n > budget {
			break
		}
		b.WriteString(cluster)
		used += n
	}

	return strings.TrimRightFunc(b.String(), isSpace) + marker
}

// Compose builds the text sent to a platform: the body, then the article URL
// when the platform allows links, fitted to the platform's limit. The URL is
// kept whole; only the body is shortened. If the URL alone cannot fit with a
// meaningful body it is dropped.
func Compose(body, link string, platform models.Platform) (text string, linked bool) {
	limit := platform.CharLimit()
	body = strings.TrimSpace(body)
	link = strings.TrimSpace(link)

	if link == "" || !platform.AllowsLink() {
		return Truncate(body, limit), false
	}

	reserve := utf8.RuneCountInString(linkSeparator) + Length(link)
	if limit-reserve < len(Ellipsis)+1 {
		return Truncate(body, limit), false
	}

	return Truncate(body, limit-reserve) + linkSeparator + norm.NFC.String(link), true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
