package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/almanac/internal/extract"
	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/retry"
	"github.com/ppiankov/almanac/internal/search"
)

var (
	errNoResults  = errors.New("no results")
	errUnverified = errors.New("results not verified")
)

// TrustScored runs date-constrained queries and accepts when enough results
// come from trusted domains, or when the cheap model confirms an excerpt.
// Each attempt rephrases the query.
type TrustScored struct {
	searcher   Searcher
	checker    ExcerptChecker
	classifier *DomainClassifier
	policy     retry.Policy
	cfg        model.PipelineConfig
	logger     *slog.Logger
}

// NewTrustScored creates the trust-scored strategy. checker may be nil, in
// which case only the domain score can accept.
func NewTrustScored(searcher Searcher, checker ExcerptChecker, classifier *DomainClassifier, policy retry.Policy, cfg model.PipelineConfig, logger *slog.Logger) *TrustScored {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinResults == 0 {
		cfg.MinResults = 3
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = 4.0
	}
	if cfg.ExcerptChars == 0 {
		cfg.ExcerptChars = 3000
	}
	return &TrustScored{
		searcher:   searcher,
		checker:    checker,
		classifier: classifier,
		policy:     policy,
		cfg:        cfg,
		logger:     logger,
	}
}

// Name returns the strategy name
func (s *TrustScored) Name() string {
	return model.StrategyTrustScored
}

// excerptsChecked is how many top results the cheap model reads per attempt
const excerptsChecked = 3

// Check runs up to the policy's attempts
func (s *TrustScored) Check(ctx context.Context, ev model.CandidateEvent) model.TierResult {
	var (
		best      []model.SearchResult
		bestScore = -1.0
		searchErr error
		verdict   *model.TierResult
	)

	_, err := retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) error {
		results, err := s.searcher.Search(ctx, trustQuery(ev, attempt))
		if err != nil {
			searchErr = err
			return err
		}
		if len(results) == 0 {
			return errNoResults
		}

		quality := s.classifier.Score(results)
		if quality.Score > bestScore {
			best, bestScore = results, quality.Score
		}
		detail := fmt.Sprintf("attempt=%d results=%d score=%.1f high_trust=%d historical=%d",
			attempt, len(results), quality.Score, quality.HighTrust, quality.Historical)
		s.logger.Debug("trust-scored scan", "title", ev.Title, "detail", detail)

		if len(results) >= s.cfg.MinResults && quality.Score >= s.cfg.MinScore {
			r := result(model.OutcomePass, model.ReasonTrustScore, detail, results)
			verdict = &r
			return nil
		}
		if s.confirmedByExcerpt(ctx, ev, results) {
			r := result(model.OutcomePass, model.ReasonTrustExcerpt, detail, results)
			verdict = &r
			return nil
		}
		return errUnverified
	})

	switch {
	case err == nil && verdict != nil:
		return *verdict
	case best != nil:
		return result(model.OutcomeInconclusive, model.ReasonTrustUnverified,
			fmt.Sprintf("best score=%.1f over %d results", bestScore, len(best)), best)
	case searchErr != nil && !errors.Is(err, errNoResults):
		return result(model.OutcomeInconclusive, model.ReasonSearchError, searchErr.Error(), nil)
	case ctx.Err() != nil:
		return result(model.OutcomeInconclusive, model.ReasonSearchError, ctx.Err().Error(), nil)
	}
	return result(model.OutcomeFail, model.ReasonSearchNoResults, "", nil)
}

// confirmedByExcerpt asks the cheap model about the top results
func (s *TrustScored) confirmedByExcerpt(ctx context.Context, ev model.CandidateEvent, results []model.SearchResult) bool {
	if s.checker == nil {
		return false
	}
	anchors := append([]string{ev.ClaimedDate.String()}, extract.Keywords(ev.Title)...)
	for i, r := range results {
		if i >= excerptsChecked {
			break
		}
		text := r.Text
		if text == "" {
			text = r.Title
		}
		answer, err := s.checker.CheckExcerpt(ctx, ev, extract.Excerpt(text, anchors, s.cfg.ExcerptChars))
		if err != nil {
			s.logger.Debug("excerpt check failed", "url", r.URL, "error", err)
			continue
		}
		if answer == answerYes {
			return true
		}
	}
	return false
}

// trustQuery phrases the date-constrained query differently per attempt
func trustQuery(ev model.CandidateEvent, attempt int) search.Query {
	date := ev.ClaimedDate.WithYear(ev.Year)
	switch attempt {
	case 1:
		return search.Query{Text: fmt.Sprintf("%s %s", ev.Title, date), IncludeText: ev.ClaimedDate.String()}
	case 2:
		return search.Query{Text: fmt.Sprintf("What happened on %s? %s", date, ev.Title)}
	default:
		return search.Query{Text: fmt.Sprintf("%s %d %s", ev.ClaimedDate, ev.Year, ev.Title), Type: search.TypeKeyword}
	}
}
