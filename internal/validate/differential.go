package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/almanac/internal/extract"
	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/search"
)

// Differential compares how many results survive when a query is anchored
// to the claimed date versus a deliberately wrong date. Real events keep
// most of their baseline under the right date and lose it under the wrong
// one.
type Differential struct {
	searcher Searcher
	cfg      model.PipelineConfig
	logger   *slog.Logger
}

// NewDifferential creates the differential strategy
func NewDifferential(searcher Searcher, cfg model.PipelineConfig, logger *slog.Logger) *Differential {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShiftDays == 0 {
		cfg.ShiftDays = 7
	}
	if cfg.StrongRetention == 0 {
		cfg.StrongRetention = 0.60
	}
	if cfg.WeakRetention == 0 {
		cfg.WeakRetention = 0.40
	}
	return &Differential{searcher: searcher, cfg: cfg, logger: logger}
}

// Name returns the strategy name
func (d *Differential) Name() string {
	return model.StrategyDifferential
}

// Counts are the raw observations of one differential run
type Counts struct {
	Baseline      int
	Correct       int
	Wrong         int
	CorrectTitles int
	WrongTitles   int
}

// Retention returns the share of the baseline kept by a constrained query
func (c Counts) Retention(n int) float64 {
	if c.Baseline == 0 {
		return 0
	}
	return float64(n) / float64(c.Baseline)
}

func (c Counts) String() string {
	return fmt.Sprintf("baseline=%d correct=%d (%.0f%%, %d titles) wrong=%d (%.0f%%, %d titles)",
		c.Baseline,
		c.Correct, c.Retention(c.Correct)*100, c.CorrectTitles,
		c.Wrong, c.Retention(c.Wrong)*100, c.WrongTitles)
}

// Check runs the three queries and applies the decision rules
func (d *Differential) Check(ctx context.Context, ev model.CandidateEvent) model.TierResult {
	claimed := ev.ClaimedDate
	wrong := claimed.Shift(d.cfg.ShiftDays)

	baseline, err := d.searcher.Search(ctx, search.Query{
		Text: strings.Join(ev.Terms(), " "),
		Type: search.TypeKeyword,
	})
	if err != nil {
		return result(model.OutcomeInconclusive, model.ReasonSearchError, err.Error(), nil)
	}
	correct, err := d.searcher.Search(ctx, search.Query{Text: anchoredQuery(ev, claimed)})
	if err != nil {
		return result(model.OutcomeInconclusive, model.ReasonSearchError, err.Error(), nil)
	}
	shifted, err := d.searcher.Search(ctx, search.Query{Text: anchoredQuery(ev, wrong)})
	if err != nil {
		return result(model.OutcomeInconclusive, model.ReasonSearchError, err.Error(), nil)
	}

	counts := Counts{
		Baseline:      len(baseline),
		Correct:       len(correct),
		Wrong:         len(shifted),
		CorrectTitles: titleMatches(correct, claimed, ev.Year),
		WrongTitles:   titleMatches(shifted, wrong, ev.Year),
	}
	outcome, reason := d.Decide(counts)

	d.logger.Debug("differential scan", "title", ev.Title, "counts", counts.String(), "reason", reason)
	return result(outcome, reason, counts.String(), correct)
}

// Decide applies the decision rules in order; the first that fires wins
func (d *Differential) Decide(c Counts) (model.Outcome, string) {
	if c.Baseline == 0 {
		return model.OutcomeFail, model.ReasonDiffNoBaseline
	}

	correctRet := c.Retention(c.Correct)
	wrongRet := c.Retention(c.Wrong)

	if wrongRet > correctRet {
		return model.OutcomeFail, model.ReasonDiffFalsified
	}
	if titleDominance(c.CorrectTitles, c.WrongTitles) {
		return model.OutcomePass, model.ReasonDiffDominance
	}
	if correctRet >= d.cfg.StrongRetention && c.CorrectTitles >= 1 {
		return model.OutcomePass, model.ReasonDiffStrong
	}
	if correctRet >= d.cfg.WeakRetention {
		if c.CorrectTitles >= 2 {
			return model.OutcomePass, model.ReasonDiffModerateOK
		}
		return model.OutcomeInconclusive, model.ReasonDiffModerate
	}
	return model.OutcomeFail, model.ReasonDiffLow
}

// titleDominance: the claimed date shows up in result titles far more often
// than the shifted one
func titleDominance(correct, wrong int) bool {
	if correct >= 5 && wrong == 0 {
		return true
	}
	return correct >= 3 && wrong < 2 && correct > 2*wrong
}

// anchoredQuery phrases a natural-language query pinned to a calendar day
func anchoredQuery(ev model.CandidateEvent, md model.MonthDay) string {
	return fmt.Sprintf("%s on %s, %d", ev.Title, md, ev.Year)
}

// titleMatches counts result titles that carry the day or the month next
// to the year
func titleMatches(results []model.SearchResult, md model.MonthDay, year int) int {
	n := 0
	for _, r := range results {
		if extract.ContainsDate(r.Title, md.Month, md.Day) || extract.MentionsDateYear(r.Title, md.Month, year) {
			n++
		}
	}
	return n
}
