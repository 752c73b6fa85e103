package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DatePatterns lists the literal forms a month/day takes in running text:
// "October 8", "October 08", "8 October", "08 October".
func DatePatterns(month time.Month, day int) []string {
	m := month.String()
	return []string{
		fmt.Sprintf("%s %d", m, day),
		fmt.Sprintf("%s %02d", m, day),
		fmt.Sprintf("%d %s", day, m),
		fmt.Sprintf("%02d %s", day, m),
	}
}

// ContainsDate reports whether text mentions the month/day in any of the
// DatePatterns forms. Matching is case-insensitive and a day is only matched
// when no further digit follows it, so "October 1" does not match "October 15".
func ContainsDate(text string, month time.Month, day int) bool {
	folded := strings.ToLower(text)
	for _, p := range DatePatterns(month, day) {
		if containsBounded(folded, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// MentionsDateYear reports whether text carries the month next to the year,
// as in "October 1958" or "October 8, 1958".
func MentionsDateYear(text string, month time.Month, year int) bool {
	folded := strings.ToLower(text)
	m := strings.ToLower(month.String())
	y := strconv.Itoa(year)
	if containsBounded(folded, m+" "+y) {
		return true
	}
	for i := 1; i <= 31; i++ {
		if containsBounded(folded, fmt.Sprintf("%s %d, %s", m, i, y)) {
			return true
		}
	}
	return false
}

// containsBounded finds pattern in text where neither end touches another
// digit or letter continuing the token
func containsBounded(text, pattern string) bool {
	from := 0
	for {
		idx := strings.Index(text[from:], pattern)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(pattern)
		if !continuesToken(text, start-1, pattern[0]) && !continuesToken(text, end, pattern[len(pattern)-1]) {
			return true
		}
		from = start + 1
	}
}

// continuesToken reports whether the byte at i extends the boundary token
// of the pattern: a digit next to a digit, or a letter next to a letter.
func continuesToken(text string, i int, edge byte) bool {
	if i < 0 || i >= len(text) {
		return false
	}
	c := text[i]
	switch {
	case isDigit(edge):
		return isDigit(c)
	case isLetter(edge):
		return isLetter(c)
	}
	return false
}

func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isLetter(b byte) bool { return b >= 'a' && b <= 'z' }

// IsMonthDayTitle reports whether an article title is itself a calendar day,
// such as "October 8" or "8 October".
func IsMonthDayTitle(title string) bool {
	t := strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
	for _, layout := range []string{"January 2", "2 January"} {
		if _, err := time.Parse(layout, t); err == nil {
			return true
		}
	}
	return false
}
