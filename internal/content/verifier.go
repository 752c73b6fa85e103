// Package content runs the last-resort check: read the full text of the
// strongest search results and let the cheap model confirm the date.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ppiankov/almanac/internal/cache"
	"github.com/ppiankov/almanac/internal/extract"
	"github.com/ppiankov/almanac/internal/llm"
	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/oracle"
	"github.com/ppiankov/almanac/internal/retry"
)

// ErrDisabled is returned when no cheap model is configured
var ErrDisabled = errors.New("cheap model not configured")

const checkSystem = "You check short texts for one specific fact. " +
	"Answer with a single word: YES, NO or UNCLEAR."

// ContentSource returns full text for search results by id
type ContentSource interface {
	Contents(ctx context.Context, ids []string) ([]model.SearchResult, error)
}

// PageSource returns the visible text of a web page
type PageSource interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Verifier asks the cheap model strict yes/no questions about excerpts
type Verifier struct {
	provider     llm.Provider
	contents     ContentSource
	pages        PageSource
	store        *cache.Store
	policy       retry.Policy
	sources      int
	excerptChars int
	logger       *slog.Logger
}

// NewVerifier creates a verifier. contents and pages may be nil; a result
// with no retrievable text is skipped.
func NewVerifier(provider llm.Provider, contents ContentSource, pages PageSource, store *cache.Store, policy retry.Policy, cfg model.PipelineConfig, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	sources := cfg.ContentSources
	if sources <= 0 {
		sources = 2
	}
	excerptChars := cfg.ExcerptChars
	if excerptChars <= 0 {
		excerptChars = 3000
	}
	return &Verifier{
		provider:     provider,
		contents:     contents,
		pages:        pages,
		store:        store,
		policy:       policy,
		sources:      sources,
		excerptChars: excerptChars,
		logger:       logger,
	}
}

// Ask sends one question to the cheap model and returns YES, NO or UNCLEAR.
// Answers are cached by prompt.
func (v *Verifier) Ask(ctx context.Context, prompt string) (string, error) {
	if v.provider == nil {
		return "", ErrDisabled
	}

	raw, _, err := v.store.Memo(cache.Key("check", prompt), func() ([]byte, error) {
		var answer string
		_, err := retry.Do(ctx, v.policy, func(ctx context.Context, attempt int) error {
			resp, err := v.provider.Complete(ctx, llm.CompletionRequest{
				System:    checkSystem,
				Prompt:    prompt,
				MaxTokens: 10,
			})
			if err != nil {
				return err
			}
			answer = oracle.ParseAnswer(resp.Text)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return []byte(answer), nil
	})
	if err != nil {
		return "", fmt.Errorf("cheap model: %w", err)
	}
	return string(raw), nil
}

// CheckExcerpt asks whether the excerpt states that the event happened on
// its claimed day and year
func (v *Verifier) CheckExcerpt(ctx context.Context, ev model.CandidateEvent, excerpt string) (string, error) {
	return v.Ask(ctx, excerptPrompt(ev, excerpt))
}

// Confirm reads the full text of the top results and accepts when at least
// one excerpt is confirmed
func (v *Verifier) Confirm(ctx context.Context, ev model.CandidateEvent, evidence []model.SearchResult) model.TierResult {
	if len(evidence) == 0 {
		return tierResult(model.OutcomeFail, model.ReasonContentNoSources, "no evidence carried from search", nil)
	}

	top := evidence
	if len(top) > v.sources {
		top = top[:v.sources]
	}
	texts := v.fullTexts(ctx, top)

	anchors := append([]string{ev.ClaimedDate.String(), strconv.Itoa(ev.Year)}, extract.Keywords(ev.Title)...)
	var answers, failures []string
	for _, r := range top {
		text := texts[r.URL]
		if strings.TrimSpace(text) == "" {
			failures = append(failures, r.URL+": no text")
			continue
		}
		answer, err := v.CheckExcerpt(ctx, ev, extract.Excerpt(text, anchors, v.excerptChars))
		if err != nil {
			failures = append(failures, r.URL+": "+err.Error())
			continue
		}
		answers = append(answers, answer)
		v.logger.Debug("content check", "title", ev.Title, "url", r.URL, "answer", answer)
		if answer == oracle.VerdictYes {
			return tierResult(model.OutcomePass, model.ReasonContentConfirmed, r.URL, []model.SearchResult{r})
		}
	}

	if len(answers) == 0 {
		return tierResult(model.OutcomeInconclusive, model.ReasonContentError, strings.Join(failures, "; "), top)
	}
	return tierResult(model.OutcomeFail, model.ReasonContentUnconfirmed,
		fmt.Sprintf("answers=%s", strings.Join(answers, ",")), top)
}

// fullTexts gathers text per URL: backend contents first, then a direct
// page fetch for anything still empty
func (v *Verifier) fullTexts(ctx context.Context, results []model.SearchResult) map[string]string {
	texts := make(map[string]string, len(results))

	if v.contents != nil {
		var ids []string
		for _, r := range results {
			if r.ID != "" {
				ids = append(ids, r.ID)
			}
		}
		if len(ids) > 0 {
			full, err := v.contents.Contents(ctx, ids)
			if err != nil {
				v.logger.Debug("contents endpoint failed", "error", err)
			}
			for _, r := range full {
				if r.Text != "" {
					texts[r.URL] = r.Text
				}
			}
		}
	}

	for _, r := range results {
		if texts[r.URL] != "" {
			continue
		}
		if v.pages != nil {
			text, err := v.pages.Fetch(ctx, r.URL)
			if err == nil && text != "" {
				texts[r.URL] = text
				continue
			}
			v.logger.Debug("page fetch failed", "url", r.URL, "error", err)
		}
		if r.Text != "" {
			texts[r.URL] = r.Text
		}
	}
	return texts
}

func excerptPrompt(ev model.CandidateEvent, excerpt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", ev.Title)
	fmt.Fprintf(&b, "Claimed date: %s\n\n", ev.ClaimedDate.WithYear(ev.Year))
	fmt.Fprintf(&b, "Text:\n%s\n\n", excerpt)
	b.WriteString("Does the text explicitly state that this event happened on the claimed date " +
		"(same month, day and year)? Answer YES only if it does. Answer NO if it gives a different date. " +
		"Otherwise answer UNCLEAR.")
	return b.String()
}

func tierResult(outcome model.Outcome, reason, detail string, evidence []model.SearchResult) model.TierResult {
	return model.TierResult{
		Tier:     model.TierContent,
		Outcome:  outcome,
		Reason:   reason,
		Detail:   detail,
		Evidence: evidence,
	}
}
