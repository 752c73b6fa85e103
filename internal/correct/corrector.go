// Package correct repairs a candidate event whose only error is its year.
package correct

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/almanac/internal/model"
)

// Narrator rewrites an event's narrative after its year changed
type Narrator interface {
	Regenerate(ctx context.Context, ev model.CandidateEvent) (string, error)
}

// Result describes one correction attempt
type Result struct {
	Corrected bool
	OldYear   int
	NewYear   int
	Reason    string
}

// Correction returns the verdict form of a successful result
func (r Result) Correction() *model.Correction {
	if !r.Corrected {
		return nil
	}
	return &model.Correction{OldYear: r.OldYear, NewYear: r.NewYear}
}

// Corrector applies year-only corrections proposed by the research oracle
type Corrector struct {
	narrator Narrator
	logger   *slog.Logger
}

// NewCorrector creates a corrector. narrator may be nil, in which case the
// narrative is left untouched.
func NewCorrector(narrator Narrator, logger *slog.Logger) *Corrector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Corrector{narrator: narrator, logger: logger}
}

// Correct rewrites ev's year when proposed names the same month and day in a
// different year. The claimed month/day is never changed.
func (c *Corrector) Correct(ctx context.Context, ev *model.CandidateEvent, proposed string) Result {
	res := Result{OldYear: ev.Year, NewYear: ev.Year}

	date, ok := ParseDate(proposed)
	if !ok {
		res.Reason = model.ReasonDateUnparsed
		return res
	}
	if date.Month() != ev.ClaimedDate.Month || date.Day() != ev.ClaimedDate.Day {
		res.Reason = model.ReasonDateMismatch
		c.logger.Debug("correction rejected", "title", ev.Title,
			"claimed", ev.ClaimedDate.String(), "proposed", date.Format("January 2, 2006"))
		return res
	}
	if date.Year() == ev.Year {
		res.Reason = model.ReasonSameYear
		return res
	}

	ev.SetYear(date.Year())
	res.Corrected = true
	res.NewYear = date.Year()
	res.Reason = model.ReasonYearCorrected
	c.logger.Info("year corrected", "title", ev.Title, "old_year", res.OldYear, "new_year", res.NewYear)

	if c.narrator != nil {
		narrative, err := c.narrator.Regenerate(ctx, *ev)
		switch {
		case err != nil:
			c.logger.Warn("narrative regeneration failed, keeping original", "title", ev.Title, "error", err)
		case strings.TrimSpace(narrative) != "":
			ev.Narrative = strings.TrimSpace(narrative)
		}
	}
	return res
}

const monthNames = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?`

var (
	monthFirst = regexp.MustCompile(`(?i)\b` + monthNames + `\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{3,4})\b`)
	dayFirst   = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+` + monthNames + `,?\s+(\d{3,4})\b`)
	isoDate    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

// ParseDate finds the first valid full date in text. It understands
// "October 8, 1958", "8 October 1958" and "1958-10-08", optionally
// surrounded by other words. Candidates that are not calendar dates, such
// as February 30, are skipped in favour of later ones.
func ParseDate(text string) (time.Time, bool) {
	type candidate struct {
		at    int
		month time.Month
		day   string
		year  string
	}
	var found []candidate

	for _, m := range monthFirst.FindAllStringSubmatchIndex(text, -1) {
		found = append(found, candidate{m[0], monthByName(text[m[2]:m[3]]), text[m[4]:m[5]], text[m[6]:m[7]]})
	}
	for _, m := range dayFirst.FindAllStringSubmatchIndex(text, -1) {
		found = append(found, candidate{m[0], monthByName(text[m[4]:m[5]]), text[m[2]:m[3]], text[m[6]:m[7]]})
	}
	for _, m := range isoDate.FindAllStringSubmatchIndex(text, -1) {
		month, _ := strconv.Atoi(text[m[4]:m[5]])
		found = append(found, candidate{m[0], time.Month(month), text[m[6]:m[7]], text[m[2]:m[3]]})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].at < found[j].at })

	for _, c := range found {
		day, err := strconv.Atoi(c.day)
		if err != nil {
			continue
		}
		year, err := strconv.Atoi(c.year)
		if err != nil {
			continue
		}
		t, err := time.Parse("2006-1-2", fmt.Sprintf("%04d-%d-%d", year, int(c.month), day))
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

func monthByName(name string) time.Month {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(strings.ToLower(m.String()), name[:min(3, len(name))]) {
			return m
		}
	}
	return 0
}
