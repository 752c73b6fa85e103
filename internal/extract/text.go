// Package extract holds the text heuristics shared by the validation tiers:
// keyword and name extraction, literal date patterns, excerpts and visible
// text of fetched pages.
package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// stopwords are dropped from title keywords
var stopwords = map[string]bool{
	"the": true, "of": true, "and": true, "in": true, "on": true, "a": true, "an": true,
	"for": true, "with": true, "by": true, "at": true, "to": true, "from": true,
	"is": true, "was": true, "are": true, "were": true, "its": true, "his": true,
	"her": true, "their": true, "as": true, "into": true, "after": true, "during": true,
}

// personPhrases are stripped from person-event titles to recover the name
var personPhrases = []string{
	"birth of", "death of", "birthday of", "assassination of", "execution of",
	"is born", "was born", "born", "dies", "died", "is killed", "killed", "passes away",
}

// Fold normalizes text for substring matching
func Fold(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// ContainsFold reports whether sub occurs in text, ignoring case and
// Unicode compatibility differences
func ContainsFold(text, sub string) bool {
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return false
	}
	return strings.Contains(Fold(text), Fold(sub))
}

// Keywords extracts the significant words of a title, in order, deduplicated
func Keywords(title string) []string {
	words := strings.FieldsFunc(Fold(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})

	seen := make(map[string]bool)
	var out []string
	for _, w := range words {
		w = strings.Trim(w, "-'")
		if len([]rune(w)) < 3 || stopwords[w] || isNumber(w) {
			continue
		}
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// Terms merges explicit search terms with title keywords, deduplicated
func Terms(title string, explicit []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		key := Fold(t)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, t)
	}
	for _, t := range explicit {
		add(t)
	}
	for _, t := range Keywords(title) {
		add(t)
	}
	return out
}

// CountMatches returns how many of the terms occur in text
func CountMatches(text string, terms []string) int {
	folded := Fold(text)
	n := 0
	for _, t := range terms {
		t = Fold(strings.TrimSpace(t))
		if t != "" && strings.Contains(folded, t) {
			n++
		}
	}
	return n
}

// PersonName recovers the full name and surname from a person-event title
// such as "Birth of Marie Curie" or "Alan Turing dies".
func PersonName(title string) (full, surname string) {
	name := " " + Fold(title) + " "
	for _, p := range personPhrases {
		name = strings.ReplaceAll(name, " "+p+" ", " ")
	}
	// Drop trailing qualifiers: "Marie Curie, physicist" / "Marie Curie (1867)"
	if i := strings.IndexAny(name, ",(:;"); i >= 0 {
		name = name[:i]
	}
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", ""
	}
	full = strings.Join(fields, " ")
	surname = fields[len(fields)-1]
	// "Jr." and roman numerals are not surnames
	if len(fields) > 1 && (surname == "jr." || surname == "jr" || surname == "sr." || isRoman(surname)) {
		surname = fields[len(fields)-2]
	}
	return full, strings.Trim(surname, ".")
}

// Excerpt returns up to max characters of text, centred on the first anchor
// found, or the beginning of the text when no anchor occurs.
func Excerpt(text string, anchors []string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	folded := strings.ToLower(text)
	start := 0
	for _, a := range anchors {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if idx := strings.Index(folded, a); idx >= 0 {
			start = idx - max/3
			break
		}
	}
	if start < 0 {
		start = 0
	}
	if start+max > len(text) {
		start = len(text) - max
	}
	return safeSlice(text, start, start+max)
}

// safeSlice slices on rune boundaries
func safeSlice(s string, start, end int) string {
	for start > 0 && start < len(s) && !isRuneStart(s[start]) {
		start--
	}
	for end < len(s) && !isRuneStart(s[end]) {
		end++
	}
	return s[start:end]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func isRoman(s string) bool {
	switch s {
	case "ii", "iii", "iv", "vi", "vii", "viii":
		return true
	}
	return false
}
