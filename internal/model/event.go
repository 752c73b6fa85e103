package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/almanac/internal/extract"
)

// EventKind classifies what a candidate event describes
type EventKind string

const (
	KindEvent EventKind = "event" // Ordinary historical/scientific occurrence
	KindBirth EventKind = "birth" // A person's birth
	KindDeath EventKind = "death" // A person's death
)

// IsPerson reports whether the kind is about a person
func (k EventKind) IsPerson() bool {
	return k == KindBirth || k == KindDeath
}

// leapYear is used for calendar arithmetic on month/day pairs so that
// February 29 stays representable.
const leapYear = 2000

// MonthDay is a calendar day independent of year
type MonthDay struct {
	Month time.Month `json:"month" yaml:"month"`
	Day   int        `json:"day" yaml:"day"`
}

// Valid reports whether the month/day exists in some year
func (md MonthDay) Valid() bool {
	if md.Month < time.January || md.Month > time.December || md.Day < 1 {
		return false
	}
	t := time.Date(leapYear, md.Month, md.Day, 0, 0, 0, 0, time.UTC)
	return t.Month() == md.Month && t.Day() == md.Day
}

// Shift returns the month/day moved by the given number of days
func (md MonthDay) Shift(days int) MonthDay {
	t := time.Date(leapYear, md.Month, md.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
	return MonthDay{Month: t.Month(), Day: t.Day()}
}

// String renders "October 8"
func (md MonthDay) String() string {
	return fmt.Sprintf("%s %d", md.Month, md.Day)
}

// WithYear renders "October 8, 1958"
func (md MonthDay) WithYear(year int) string {
	return fmt.Sprintf("%s %d, %d", md.Month, md.Day, year)
}

// CandidateEvent is the mutable record under validation. ClaimedDate is fixed
// for the whole run; Year, Date and Narrative may be rewritten by a correction.
type CandidateEvent struct {
	Title       string    `json:"title" yaml:"title"`
	Date        string    `json:"date,omitempty" yaml:"date,omitempty"`
	ClaimedDate MonthDay  `json:"claimed_date" yaml:"claimed_date"`
	Year        int       `json:"year" yaml:"year"`
	ExternalID  string    `json:"external_id,omitempty" yaml:"external_id,omitempty"` // e.g. Wikidata QID
	Kind        EventKind `json:"kind" yaml:"kind"`
	Narrative   string    `json:"narrative,omitempty" yaml:"narrative,omitempty"`
	SourceLinks []string  `json:"source_links,omitempty" yaml:"source_links,omitempty"`
	SearchTerms []string  `json:"search_terms,omitempty" yaml:"search_terms,omitempty"`
}

// SetYear rewrites the year and the derived date string together
func (e *CandidateEvent) SetYear(year int) {
	e.Year = year
	e.Date = e.ClaimedDate.WithYear(year)
}

// Terms returns the explicit search terms followed by the title keywords,
// without duplicates
func (e CandidateEvent) Terms() []string {
	return extract.Terms(e.Title, e.SearchTerms)
}

// Prepare validates the fields the pipeline depends on and fills defaults
func (e *CandidateEvent) Prepare() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("event title is empty")
	}
	if !e.ClaimedDate.Valid() {
		return fmt.Errorf("event %q: invalid claimed date %d/%d", e.Title, e.ClaimedDate.Month, e.ClaimedDate.Day)
	}
	if e.Year == 0 {
		return fmt.Errorf("event %q: year is missing", e.Title)
	}
	switch e.Kind {
	case KindEvent, KindBirth, KindDeath:
	case "":
		e.Kind = KindEvent
	default:
		return fmt.Errorf("event %q: unknown kind %q", e.Title, e.Kind)
	}
	if e.Date == "" {
		e.Date = e.ClaimedDate.WithYear(e.Year)
	}
	return nil
}
