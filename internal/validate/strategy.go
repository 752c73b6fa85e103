package validate

import (
	"context"

	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/search"
)

// Strategy is one tier-3 search scan. It never returns an error: backend
// failures become an inconclusive result.
type Strategy interface {
	Name() string
	Check(ctx context.Context, ev model.CandidateEvent) model.TierResult
}

// Searcher is the search backend used by the strategies
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]model.SearchResult, error)
}

// answerYes is the cheap model's confirming answer
const answerYes = "YES"

// ExcerptChecker asks the cheap model whether an excerpt supports the event
// on its claimed date, answering YES, NO or UNCLEAR
type ExcerptChecker interface {
	CheckExcerpt(ctx context.Context, ev model.CandidateEvent, excerpt string) (string, error)
}

func result(outcome model.Outcome, reason, detail string, evidence []model.SearchResult) model.TierResult {
	return model.TierResult{
		Tier:     model.TierSearch,
		Outcome:  outcome,
		Reason:   reason,
		Detail:   detail,
		Evidence: evidence,
	}
}
