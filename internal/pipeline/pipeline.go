// Package pipeline drives a candidate event through the validation tiers,
// cheapest first, until one of them reaches a decision.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ppiankov/almanac/internal/correct"
	"github.com/ppiankov/almanac/internal/encyclopedia"
	"github.com/ppiankov/almanac/internal/extract"
	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/oracle"
	"github.com/ppiankov/almanac/internal/validate"
)

// Encyclopedia serves the day digest and canonical articles
type Encyclopedia interface {
	Digest(ctx context.Context, md model.MonthDay) (string, error)
	ResolveArticle(ctx context.Context, ev model.CandidateEvent) (encyclopedia.Article, error)
}

// Oracle returns the research model's verdict on an event
type Oracle interface {
	Verify(ctx context.Context, ev model.CandidateEvent) (oracle.Verdict, error)
}

// Corrector applies year-only corrections
type Corrector interface {
	Correct(ctx context.Context, ev *model.CandidateEvent, proposed string) correct.Result
}

// ContentChecker runs cheap-model checks on excerpts and full texts
type ContentChecker interface {
	CheckExcerpt(ctx context.Context, ev model.CandidateEvent, excerpt string) (string, error)
	Confirm(ctx context.Context, ev model.CandidateEvent, evidence []model.SearchResult) model.TierResult
}

// Collaborators are the backends a Pipeline consults. Any of them may be nil;
// a missing collaborator makes its tier inconclusive.
type Collaborators struct {
	Encyclopedia Encyclopedia
	Oracle       Oracle
	Corrector    Corrector
	Search       validate.Strategy
	Content      ContentChecker
}

// Pipeline is the tier orchestrator
type Pipeline struct {
	cfg    model.PipelineConfig
	c      Collaborators
	logger *slog.Logger
}

// New creates a pipeline from explicit collaborators
func New(cfg model.PipelineConfig, c Collaborators, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ExcerptChars <= 0 {
		cfg.ExcerptChars = 3000
	}
	return &Pipeline{cfg: cfg, c: c, logger: logger}
}

// Validate decides whether ev happened on the claimed day. It never fails:
// backend errors become inconclusive tier results and escalation continues.
// ev may be modified by a year correction.
func (p *Pipeline) Validate(ctx context.Context, ev *model.CandidateEvent, claimed model.MonthDay) model.Verdict {
	if claimed.Valid() && claimed != ev.ClaimedDate {
		ev.ClaimedDate = claimed
		ev.Date = claimed.WithYear(ev.Year)
	}
	if err := ev.Prepare(); err != nil {
		res := model.TierResult{Tier: model.TierInput, Outcome: model.OutcomeFail, Reason: model.ReasonInvalidEvent, Detail: err.Error()}
		return p.finish(ev, model.Verdict{Method: model.TierInput, Reason: res.Reason, Trail: []model.TierResult{res}})
	}

	var trail []model.TierResult
	record := func(res model.TierResult) model.TierResult {
		trail = append(trail, res)
		p.logger.Debug("tier result", "title", ev.Title, "tier", res.Tier,
			"outcome", res.Outcome, "reason", res.Reason, "detail", res.Detail)
		return res
	}
	decide := func(accepted bool, method string, res model.TierResult) model.Verdict {
		return p.finish(ev, model.Verdict{Accepted: accepted, Method: method, Reason: res.Reason, Trail: trail})
	}

	// Tier 0
	if p.cfg.DigestScope != model.DigestScopePersons || ev.Kind.IsPerson() {
		if res := record(p.digestTier(ctx, *ev)); res.Outcome == model.OutcomePass {
			return decide(true, model.TierDigest, res)
		}
	}

	// Tier 1
	switch res := record(p.articleTier(ctx, *ev)); res.Outcome {
	case model.OutcomePass:
		return decide(true, model.TierArticle, res)
	case model.OutcomeFail:
		return decide(false, model.TierArticle, res)
	}

	// Tier 2
	res, correction := p.oracleTier(ctx, ev)
	record(res)
	switch res.Outcome {
	case model.OutcomePass:
		if correction != nil {
			v := decide(true, model.TierCorrected, res)
			v.Correction = correction
			return v
		}
		return decide(true, model.TierOracle, res)
	case model.OutcomeFail:
		return decide(false, model.TierOracle, res)
	}

	// Tier 3
	res = record(p.searchTier(ctx, *ev))
	switch res.Outcome {
	case model.OutcomePass:
		return decide(true, model.TierSearch, res)
	case model.OutcomeFail:
		return decide(false, model.TierSearch, res)
	}

	// Tier 4 decides whatever is left
	res = record(p.contentTier(ctx, *ev, res.Evidence))
	return decide(res.Outcome == model.OutcomePass, model.TierContent, res)
}

func (p *Pipeline) finish(ev *model.CandidateEvent, v model.Verdict) model.Verdict {
	level := slog.LevelInfo
	if !v.Accepted {
		level = slog.LevelDebug
	}
	p.logger.Log(context.Background(), level, "event validated", "title", ev.Title, "date", ev.Date,
		"accepted", v.Accepted, "method", v.Method, "reason", v.Reason)
	return v
}

func (p *Pipeline) digestTier(ctx context.Context, ev model.CandidateEvent) model.TierResult {
	if p.c.Encyclopedia == nil {
		return tierResult(model.TierDigest, model.OutcomeInconclusive, model.ReasonDigestError, "no encyclopedia configured")
	}
	text, err := p.c.Encyclopedia.Digest(ctx, ev.ClaimedDate)
	if err != nil {
		return tierResult(model.TierDigest, model.OutcomeInconclusive, model.ReasonDigestError, err.Error())
	}

	if ev.Kind.IsPerson() {
		full, surname := extract.PersonName(ev.Title)
		if full != "" && extract.ContainsFold(text, full) {
			return tierResult(model.TierDigest, model.OutcomePass, model.ReasonDigestMatch, "name: "+full)
		}
		if surname != "" && extract.ContainsFold(text, surname) {
			return tierResult(model.TierDigest, model.OutcomePass, model.ReasonDigestMatch, "surname: "+surname)
		}
		return tierResult(model.TierDigest, model.OutcomeFail, model.ReasonDigestMiss, "")
	}

	year := strconv.Itoa(ev.Year)
	terms := ev.Terms()
	scopes := []string{text}
	if p.cfg.DigestLineScoped {
		scopes = strings.Split(text, "\n")
	}
	for _, scope := range scopes {
		if !strings.Contains(scope, year) {
			continue
		}
		where := ""
		if p.cfg.DigestLineScoped {
			where = ": " + strings.TrimSpace(scope)
		}
		if extract.ContainsFold(scope, ev.Title) {
			return tierResult(model.TierDigest, model.OutcomePass, model.ReasonDigestMatch, "title"+where)
		}
		if n := extract.CountMatches(scope, terms); n >= 2 {
			return tierResult(model.TierDigest, model.OutcomePass, model.ReasonDigestMatch,
				fmt.Sprintf("keywords=%d%s", n, where))
		}
	}
	return tierResult(model.TierDigest, model.OutcomeFail, model.ReasonDigestMiss, "")
}

func (p *Pipeline) articleTier(ctx context.Context, ev model.CandidateEvent) model.TierResult {
	if p.c.Encyclopedia == nil || !encyclopedia.HasArticle(ev) {
		return tierResult(model.TierArticle, model.OutcomeInconclusive, model.ReasonArticleSkipped, "")
	}
	art, err := p.c.Encyclopedia.ResolveArticle(ctx, ev)
	if err != nil {
		return tierResult(model.TierArticle, model.OutcomeInconclusive, model.ReasonWikiError, err.Error())
	}
	if strings.TrimSpace(art.Text) == "" {
		return tierResult(model.TierArticle, model.OutcomeInconclusive, model.ReasonWikiInconclusive, "empty article: "+art.Title)
	}

	if art.Portal {
		if name, ok := mentionsSubject(art.Text, ev); ok {
			return tierResult(model.TierArticle, model.OutcomePass, model.ReasonWikiNameMatch, art.Title+": "+name)
		}
		return tierResult(model.TierArticle, model.OutcomeInconclusive, model.ReasonWikiInconclusive, "portal without subject: "+art.Title)
	}

	if extract.ContainsDate(art.Text, ev.ClaimedDate.Month, ev.ClaimedDate.Day) {
		return tierResult(model.TierArticle, model.OutcomePass, model.ReasonWikiDateMatch, art.Title)
	}

	if !ev.Kind.IsPerson() {
		return tierResult(model.TierArticle, model.OutcomeFail, model.ReasonWikiDateMismatch,
			fmt.Sprintf("%s does not mention %s", art.Title, ev.ClaimedDate))
	}

	if p.c.Content == nil {
		return tierResult(model.TierArticle, model.OutcomeInconclusive, model.ReasonWikiInconclusive, art.Title)
	}
	full, surname := extract.PersonName(ev.Title)
	anchors := []string{strconv.Itoa(ev.Year), full, surname}
	answer, err := p.c.Content.CheckExcerpt(ctx, ev, extract.Excerpt(art.Text, anchors, p.cfg.ExcerptChars))
	if err != nil {
		return tierResult(model.TierArticle, model.OutcomeInconclusive, model.ReasonWikiError, err.Error())
	}
	if answer == oracle.VerdictYes {
		return tierResult(model.TierArticle, model.OutcomePass, model.ReasonWikiExcerpt, art.Title)
	}
	return tierResult(model.TierArticle, model.OutcomeInconclusive, model.ReasonWikiInconclusive,
		fmt.Sprintf("%s: excerpt answer %s", art.Title, answer))
}

// mentionsSubject looks for the person's name or the event title in text
func mentionsSubject(text string, ev model.CandidateEvent) (string, bool) {
	if ev.Kind.IsPerson() {
		full, surname := extract.PersonName(ev.Title)
		for _, name := range []string{full, surname} {
			if name != "" && extract.ContainsFold(text, name) {
				return name, true
			}
		}
		return "", false
	}
	if extract.ContainsFold(text, ev.Title) {
		return ev.Title, true
	}
	return "", false
}

func (p *Pipeline) oracleTier(ctx context.Context, ev *model.CandidateEvent) (model.TierResult, *model.Correction) {
	if p.c.Oracle == nil {
		return tierResult(model.TierOracle, model.OutcomeInconclusive, model.ReasonOracleError, "no oracle configured"), nil
	}
	v, err := p.c.Oracle.Verify(ctx, *ev)
	if err != nil {
		return tierResult(model.TierOracle, model.OutcomeInconclusive, model.ReasonOracleError, err.Error()), nil
	}

	detail := fmt.Sprintf("confidence=%s %s", v.Confidence, v.Reason)
	switch v.Verdict {
	case oracle.VerdictYes:
		return tierResult(model.TierOracle, model.OutcomePass, model.ReasonOracleYes, detail), nil
	case oracle.VerdictNo:
		if v.ActualDate == "" || p.c.Corrector == nil {
			return tierResult(model.TierOracle, model.OutcomeFail, model.ReasonOracleNo, detail), nil
		}
		res := p.c.Corrector.Correct(ctx, ev, v.ActualDate)
		if !res.Corrected {
			return tierResult(model.TierOracle, model.OutcomeFail, model.ReasonOracleNo,
				fmt.Sprintf("actual date %q not correctable: %s", v.ActualDate, res.Reason)), nil
		}
		return tierResult(model.TierOracle, model.OutcomePass, model.ReasonYearCorrected,
			fmt.Sprintf("%d -> %d", res.OldYear, res.NewYear)), res.Correction()
	default:
		return tierResult(model.TierOracle, model.OutcomeInconclusive, model.ReasonOracleUnclear, detail), nil
	}
}

func (p *Pipeline) searchTier(ctx context.Context, ev model.CandidateEvent) model.TierResult {
	if p.c.Search == nil {
		return tierResult(model.TierSearch, model.OutcomeInconclusive, model.ReasonSearchError, "no search strategy configured")
	}
	return p.c.Search.Check(ctx, ev)
}

func (p *Pipeline) contentTier(ctx context.Context, ev model.CandidateEvent, evidence []model.SearchResult) model.TierResult {
	if p.c.Content == nil {
		return tierResult(model.TierContent, model.OutcomeFail, model.ReasonContentError, "no content checker configured")
	}
	return p.c.Content.Confirm(ctx, ev, evidence)
}

func tierResult(tier string, outcome model.Outcome, reason, detail string) model.TierResult {
	return model.TierResult{Tier: tier, Outcome: outcome, Reason: reason, Detail: detail}
}
