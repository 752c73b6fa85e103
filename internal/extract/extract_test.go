package extract

import (
	"strings"
	"testing"
	"time"
)

func TestKeywords(t *testing.T) {
	got := Keywords("The Launch of Sputnik 1 by the Soviet Union")
	want := []string{"launch", "sputnik", "soviet", "union"}

	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keyword %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestKeywords_Dedupes(t *testing.T) {
	got := Keywords("Apollo apollo APOLLO landing")
	if len(got) != 2 {
		t.Errorf("Expected 2 keywords, got %v", got)
	}
}

func TestTerms_ExplicitFirst(t *testing.T) {
	got := Terms("First transistor demonstrated", []string{"Bell Labs", "transistor"})
	if got[0] != "Bell Labs" {
		t.Errorf("Expected explicit term first, got %v", got)
	}
	count := 0
	for _, term := range got {
		if strings.EqualFold(term, "transistor") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected transistor once, got %d in %v", count, got)
	}
}

func TestCountMatches(t *testing.T) {
	text := "Sputnik 1 was launched by the Soviet Union in 1957."
	if n := CountMatches(text, []string{"sputnik", "SOVIET", "apollo"}); n != 2 {
		t.Errorf("Expected 2 matches, got %d", n)
	}
}

func TestPersonName(t *testing.T) {
	tests := []struct {
		title   string
		full    string
		surname string
	}{
		{"Birth of Marie Curie", "marie curie", "curie"},
		{"Alan Turing dies", "alan turing", "turing"},
		{"Death of Martin Luther King Jr.", "martin luther king jr.", "king"},
		{"Rune Elmqvist, inventor of the pacemaker", "rune elmqvist", "elmqvist"},
		{"Ada Lovelace (1815) born", "ada lovelace", "lovelace"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			full, surname := PersonName(tt.title)
			if full != tt.full {
				t.Errorf("Expected full name %q, got %q", tt.full, full)
			}
			if surname != tt.surname {
				t.Errorf("Expected surname %q, got %q", tt.surname, surname)
			}
		})
	}
}

func TestContainsFold_Normalizes(t *testing.T) {
	// Full-width letters fold to ASCII under NFKC
	if !ContainsFold("ＭＡＲＩＥ Curie was born", "marie curie") {
		t.Error("Expected NFKC folded match")
	}
	if ContainsFold("anything", "   ") {
		t.Error("Blank needle should never match")
	}
}

func TestContainsDate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		month time.Month
		day   int
		want  bool
	}{
		{"month day", "Born on October 8, 1958 in Sweden.", time.October, 8, true},
		{"day month", "He died on 8 October 1958.", time.October, 8, true},
		{"zero padded", "Dated 08 October.", time.October, 8, true},
		{"padded month first", "On October 08 the device", time.October, 8, true},
		{"lowercase", "on october 8 the first", time.October, 8, true},
		{"day followed by digit", "It happened October 15, 1958.", time.October, 1, false},
		{"day preceded by digit", "on 18 October", time.October, 8, false},
		{"other month", "November 8, 1958", time.October, 8, false},
		{"no date", "No calendar mention here.", time.October, 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsDate(tt.text, tt.month, tt.day); got != tt.want {
				t.Errorf("ContainsDate(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestMentionsDateYear(t *testing.T) {
	if !MentionsDateYear("In October 1958 the first implant", time.October, 1958) {
		t.Error("Expected month-year match")
	}
	if !MentionsDateYear("Surgery on October 8, 1958", time.October, 1958) {
		t.Error("Expected full date match")
	}
	if MentionsDateYear("October 19580", time.October, 1958) {
		t.Error("Year followed by digit should not match")
	}
}

func TestIsMonthDayTitle(t *testing.T) {
	for _, title := range []string{"October 8", "October_8", "8 October", "February 29"} {
		if !IsMonthDayTitle(title) {
			t.Errorf("Expected %q to be a month-day title", title)
		}
	}
	for _, title := range []string{"Pacemaker", "October", "1958"} {
		if IsMonthDayTitle(title) {
			t.Errorf("Expected %q not to be a month-day title", title)
		}
	}
}

func TestExcerpt(t *testing.T) {
	text := strings.Repeat("filler ", 200) + "the pacemaker was implanted " + strings.Repeat("tail ", 200)

	got := Excerpt(text, []string{"Pacemaker"}, 200)
	if len(got) > 204 {
		t.Errorf("Expected excerpt of about 200 chars, got %d", len(got))
	}
	if !strings.Contains(got, "pacemaker") {
		t.Error("Expected excerpt to be centred on the anchor")
	}

	short := "short text"
	if Excerpt(short, nil, 100) != short {
		t.Error("Short text should be returned unchanged")
	}

	if got := Excerpt(text, []string{"absent"}, 50); !strings.HasPrefix(got, "filler") {
		t.Errorf("Expected leading excerpt without anchor, got %q", got)
	}
}

func TestVisibleText_SkipsScripts(t *testing.T) {
	page := `
	<html>
	<head>
		<script>var x = "hidden";</script>
		<style>.a { color: red; }</style>
	</head>
	<body>
		<nav>Home | About</nav>
		<p>The first   implantable pacemaker.</p>
	</body>
	</html>
	`

	text, err := VisibleText(page)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if strings.Contains(text, "hidden") || strings.Contains(text, "color") {
		t.Errorf("Script or style leaked into text: %q", text)
	}
	if strings.Contains(text, "About") {
		t.Errorf("Navigation leaked into text: %q", text)
	}
	if !strings.Contains(text, "The first implantable pacemaker.") {
		t.Errorf("Expected collapsed body text, got %q", text)
	}
}

func TestVisibleText_PrefersArticle(t *testing.T) {
	page := `<html><body><div>Sidebar links</div><article><p>Main story.</p></article></body></html>`

	text, err := VisibleText(page)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if text != "Main story." {
		t.Errorf("Expected only article text, got %q", text)
	}
}
