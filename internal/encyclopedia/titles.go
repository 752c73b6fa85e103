package encyclopedia

import (
	"net/url"
	"strings"

	"github.com/ppiankov/almanac/internal/extract"
)

// TitleFromURL extracts the article title from an encyclopedia link such
// as https://en.wikipedia.org/wiki/Artificial_pacemaker
func TitleFromURL(link string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil || !strings.HasSuffix(parsed.Hostname(), "wikipedia.org") {
		return "", false
	}
	title, ok := strings.CutPrefix(parsed.Path, "/wiki/")
	if !ok || title == "" {
		return "", false
	}
	return normalizeTitle(title), true
}

// IsPortal reports whether a title names a day index or anniversary page
// rather than an article about the event itself
func IsPortal(title string) bool {
	t := normalizeTitle(title)
	lower := strings.ToLower(t)
	return strings.HasPrefix(lower, "portal:") ||
		strings.Contains(lower, "selected anniversaries") ||
		extract.IsMonthDayTitle(t)
}

func normalizeTitle(title string) string {
	if i := strings.IndexByte(title, '#'); i >= 0 {
		title = title[:i]
	}
	return strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
}
