package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/almanac/internal/correct"
	"github.com/ppiankov/almanac/internal/encyclopedia"
	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/oracle"
)

type fakeWiki struct {
	mu           sync.Mutex
	digest       string
	digestErr    error
	article      encyclopedia.Article
	articleErr   error
	digestCalls  int
	articleCalls int
}

func (f *fakeWiki) Digest(ctx context.Context, md model.MonthDay) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digestCalls++
	return f.digest, f.digestErr
}

func (f *fakeWiki) ResolveArticle(ctx context.Context, ev model.CandidateEvent) (encyclopedia.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.articleCalls++
	return f.article, f.articleErr
}

type fakeOracle struct {
	verdict oracle.Verdict
	err     error
	calls   int
}

func (f *fakeOracle) Verify(ctx context.Context, ev model.CandidateEvent) (oracle.Verdict, error) {
	f.calls++
	return f.verdict, f.err
}

type fakeStrategy struct {
	result model.TierResult
	calls  int
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) Check(ctx context.Context, ev model.CandidateEvent) model.TierResult {
	f.calls++
	return f.result
}

type fakeContent struct {
	answer       string
	confirm      model.TierResult
	excerptCalls int
	confirmCalls int
	evidence     []model.SearchResult
}

func (f *fakeContent) CheckExcerpt(ctx context.Context, ev model.CandidateEvent, excerpt string) (string, error) {
	f.excerptCalls++
	return f.answer, nil
}

func (f *fakeContent) Confirm(ctx context.Context, ev model.CandidateEvent, evidence []model.SearchResult) model.TierResult {
	f.confirmCalls++
	f.evidence = evidence
	return f.confirm
}

type fixture struct {
	wiki     *fakeWiki
	oracle   *fakeOracle
	strategy *fakeStrategy
	content  *fakeContent
}

func newFixture() *fixture {
	return &fixture{
		wiki:     &fakeWiki{digest: "1066 – Battle of Hastings.\n"},
		oracle:   &fakeOracle{verdict: oracle.Verdict{Verdict: oracle.VerdictUnclear, Confidence: oracle.ConfidenceLow}},
		strategy: &fakeStrategy{result: model.TierResult{Tier: model.TierSearch, Outcome: model.OutcomeInconclusive, Reason: model.ReasonDiffModerate}},
		content:  &fakeContent{answer: "UNCLEAR", confirm: model.TierResult{Tier: model.TierContent, Outcome: model.OutcomeFail, Reason: model.ReasonContentUnconfirmed}},
	}
}

func (f *fixture) pipeline(scope string) *Pipeline {
	return New(model.PipelineConfig{DigestScope: scope, ExcerptChars: 500}, Collaborators{
		Encyclopedia: f.wiki,
		Oracle:       f.oracle,
		Corrector:    correct.NewCorrector(nil, nil),
		Search:       f.strategy,
		Content:      f.content,
	}, nil)
}

func ordinary(title string, month time.Month, day, year int) *model.CandidateEvent {
	return &model.CandidateEvent{
		Title:       title,
		ClaimedDate: model.MonthDay{Month: month, Day: day},
		Year:        year,
		Kind:        model.KindEvent,
	}
}

func TestValidate_OracleYesAcceptsAtTier2(t *testing.T) {
	f := newFixture()
	f.oracle.verdict = oracle.Verdict{Verdict: oracle.VerdictYes, Confidence: oracle.ConfidenceHigh}
	ev := ordinary("Founding of CERN", time.September, 29, 1954)

	v := f.pipeline(model.DigestScopeAll).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.True(t, v.Accepted)
	assert.Equal(t, model.TierOracle, v.Method)
	assert.Equal(t, model.ReasonOracleYes, v.Reason)
	assert.Nil(t, v.Correction)
	require.Len(t, v.Trail, 3)
	assert.Equal(t, model.ReasonDigestMiss, v.Trail[0].Reason)
	assert.Equal(t, model.ReasonArticleSkipped, v.Trail[1].Reason)
	assert.Zero(t, f.strategy.calls)
}

func TestValidate_OracleYesAfterInconclusivePortal(t *testing.T) {
	f := newFixture()
	f.wiki.article = encyclopedia.Article{Title: "October 8", Text: "Events of the day, nothing relevant.", Portal: true}
	f.oracle.verdict = oracle.Verdict{Verdict: oracle.VerdictYes}
	ev := ordinary("Founding of the Hanseatic League", time.October, 8, 1358)
	ev.SourceLinks = []string{"https://en.wikipedia.org/wiki/October_8"}

	v := f.pipeline(model.DigestScopeAll).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.True(t, v.Accepted)
	assert.Equal(t, model.TierOracle, v.Method)
	assert.Equal(t, model.ReasonWikiInconclusive, v.Trail[1].Reason)
}

func TestValidate_OracleNoDifferentDayRejects(t *testing.T) {
	f := newFixture()
	f.oracle.verdict = oracle.Verdict{Verdict: oracle.VerdictNo, ActualDate: "November 8, 1975"}
	ev := ordinary("Opening of the Paris Air Show", time.October, 8, 1975)

	v := f.pipeline(model.DigestScopeAll).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.False(t, v.Accepted)
	assert.Equal(t, model.TierOracle, v.Method)
	assert.Equal(t, model.ReasonOracleNo, v.Reason)
	assert.Nil(t, v.Correction)
	assert.Equal(t, 1975, ev.Year)
	assert.Equal(t, model.MonthDay{Month: time.October, Day: 8}, ev.ClaimedDate)
	assert.Zero(t, f.strategy.calls)
}

func TestValidate_OracleNoSameDayCorrectsYear(t *testing.T) {
	f := newFixture()
	f.oracle.verdict = oracle.Verdict{Verdict: oracle.VerdictNo, ActualDate: "October 8, 1976"}
	ev := ordinary("Opening of the Paris Air Show", time.October, 8, 1975)

	v := f.pipeline(model.DigestScopeAll).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.True(t, v.Accepted)
	assert.Equal(t, model.TierCorrected, v.Method)
	assert.Equal(t, model.ReasonYearCorrected, v.Reason)
	require.NotNil(t, v.Correction)
	assert.Equal(t, model.Correction{OldYear: 1975, NewYear: 1976}, *v.Correction)
	assert.Equal(t, 1976, ev.Year)
	assert.Equal(t, "October 8, 1976", ev.Date)
}

func TestValidate_OracleNoWithoutDateRejects(t *testing.T) {
	f := newFixture()
	f.oracle.verdict = oracle.Verdict{Verdict: oracle.VerdictNo}
	ev := ordinary("Opening of the Paris Air Show", time.October, 8, 1975)

	v := f.pipeline(model.DigestScopeAll).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.False(t, v.Accepted)
	assert.Equal(t, model.ReasonOracleNo, v.Reason)
}

func TestValidate_ArticleDateMismatchShortCircuits(t *testing.T) {
	f := newFixture()
	f.wiki.article = encyclopedia.Article{Title: "Artificial cardiac pacemaker", Text: "The first device was implanted on 8 November 1958."}
	ev := ordinary("Pacemaker first implanted", time.October, 8, 1958)
	ev.SourceLinks = []string{"https://en.wikipedia.org/wiki/Artificial_cardiac_pacemaker"}

	v := f.pipeline(model.DigestScopePersons).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.False(t, v.Accepted)
	assert.Equal(t, model.TierArticle, v.Method)
	assert.Equal(t, model.ReasonWikiDateMismatch, v.Reason)
	assert.Zero(t, f.oracle.calls)
	assert.Zero(t, f.strategy.calls)
	assert.Zero(t, f.content.confirmCalls)
}

func TestValidate_ArticleDateMatchAccepts(t *testing.T) {
	f := newFixture()
	f.wiki.article = encyclopedia.Article{Title: "Artificial cardiac pacemaker", Text: "On 8 October 1958 the first device was implanted."}
	ev := ordinary("Pacemaker first implanted", time.October, 8, 1958)
	ev.ExternalID = "Q187934"

	v := f.pipeline(model.DigestScopePersons).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.True(t, v.Accepted)
	assert.Equal(t, model.TierArticle, v.Method)
	assert.Equal(t, model.ReasonWikiDateMatch, v.Reason)
	assert.Zero(t, f.oracle.calls)
}

func TestValidate_PersonExcerptConfirmed(t *testing.T) {
	f := newFixture()
	f.wiki.article = encyclopedia.Article{Title: "Niels Bohr", Text: "Niels Bohr was a Danish physicist born in Copenhagen in 1885."}
	f.content.answer = "YES"
	ev := ordinary("Birth of Niels Bohr", time.October, 7, 1885)
	ev.Kind = model.KindBirth
	ev.SourceLinks = []string{"https://en.wikipedia.org/wiki/Niels_Bohr"}

	v := f.pipeline(model.DigestScopePersons).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.True(t, v.Accepted)
	assert.Equal(t, model.TierArticle, v.Method)
	assert.Equal(t, model.ReasonWikiExcerpt, v.Reason)
	assert.Equal(t, 1, f.content.excerptCalls)
	assert.Equal(t, 1, f.wiki.digestCalls)
}

func TestValidate_PersonExcerptUnclearFallsThrough(t *testing.T) {
	f := newFixture()
	f.wiki.article = encyclopedia.Article{Title: "Niels Bohr", Text: "Niels Bohr was a Danish physicist."}
	f.oracle.verdict = oracle.Verdict{Verdict: oracle.VerdictYes}
	ev := ordinary("Birth of Niels Bohr", time.October, 7, 1885)
	ev.Kind = model.KindBirth
	ev.SourceLinks = []string{"https://en.wikipedia.org/wiki/Niels_Bohr"}

	v := f.pipeline(model.DigestScopePersons).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.True(t, v.Accepted)
	assert.Equal(t, model.TierOracle, v.Method)
	assert.Equal(t, model.ReasonWikiInconclusive, v.Trail[1].Reason)
}

func TestValidate_PacemakerAcceptsAtTier0(t *testing.T) {
	f := newFixture()
	f.wiki.digest = "1954 – Something else happens.\n" +
		"1958 – Arne Larsson becomes the first person to have a pacemaker implanted, in Stockholm.\n" +
		"1967 – Another event.\n"
	ev := &model.CandidateEvent{
		Title:       "Pacemaker first implanted",
		ClaimedDate: model.MonthDay{Month: time.October, Day: 8},
		Year:        1958,
		Kind:        model.KindEvent,
	}

	v := New(model.DefaultConfig().Pipeline, Collaborators{
		Encyclopedia: f.wiki,
		Oracle:       f.oracle,
		Corrector:    correct.NewCorrector(nil, nil),
		Search:       f.strategy,
		Content:      f.content,
	}, nil).Validate(context.Background(), ev, model.MonthDay{Month: time.October, Day: 8})

	assert.True(t, v.Accepted)
	assert.Equal(t, model.TierDigest, v.Method)
	assert.Equal(t, model.ReasonDigestMatch, v.Reason)
	assert.Zero(t, f.oracle.calls)
	assert.Zero(t, f.strategy.calls)
	assert.Zero(t, f.wiki.articleCalls)
}

func TestValidate_DigestMatchesAnywhereByDefault(t *testing.T) {
	f := newFixture()
	f.wiki.digest = "1958 – Unrelated event.\n" +
		"1960 – A pacemaker was implanted for the first time in Uruguay.\n"
	ev := ordinary("Pacemaker first implanted", time.October, 8, 1958)

	v := f.pipeline(model.DigestScopeAll).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.True(t, v.Accepted)
	assert.Equal(t, model.TierDigest, v.Method)
	assert.Zero(t, f.oracle.calls)
}

func TestValidate_LineScopedDigestNeedsYearOnSameLine(t *testing.T) {
	f := newFixture()
	f.wiki.digest = "1958 – Unrelated event.\n" +
		"1960 – A pacemaker was implanted for the first time in Uruguay.\n"
	f.oracle.verdict = oracle.Verdict{Verdict: oracle.VerdictYes}
	ev := ordinary("Pacemaker first implanted", time.October, 8, 1958)

	p := f.pipeline(model.DigestScopeAll)
	p.cfg.DigestLineScoped = true
	v := p.Validate(context.Background(), ev, ev.ClaimedDate)

	assert.Equal(t, model.TierOracle, v.Method)
	assert.Equal(t, model.ReasonDigestMiss, v.Trail[0].Reason)
}

func TestValidate_LineScopedDigestMatch(t *testing.T) {
	f := newFixture()
	f.wiki.digest = "1954 – Something else happens.\n" +
		"1958 – The first pacemaker is implanted in Stockholm.\n"
	ev := ordinary("Pacemaker first implanted", time.October, 8, 1958)

	p := f.pipeline(model.DigestScopeAll)
	p.cfg.DigestLineScoped = true
	v := p.Validate(context.Background(), ev, ev.ClaimedDate)

	assert.True(t, v.Accepted)
	assert.Equal(t, model.TierDigest, v.Method)
	assert.Contains(t, v.Trail[0].Detail, "Stockholm")
}

func TestValidate_PersonDigestSurname(t *testing.T) {
	f := newFixture()
	f.wiki.digest = "Births\n1885 – Niels Bohr, Danish physicist (d. 1962)\n"
	ev := ordinary("Birth of Niels Bohr", time.October, 7, 1885)
	ev.Kind = model.KindBirth

	v := f.pipeline(model.DigestScopePersons).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.True(t, v.Accepted)
	assert.Equal(t, model.TierDigest, v.Method)
}

func TestValidate_PersonsScopeSkipsDigestForEvents(t *testing.T) {
	f := newFixture()
	f.oracle.verdict = oracle.Verdict{Verdict: oracle.VerdictYes}
	ev := ordinary("Founding of CERN", time.September, 29, 1954)

	v := f.pipeline(model.DigestScopePersons).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.True(t, v.Accepted)
	assert.Zero(t, f.wiki.digestCalls)
	assert.Equal(t, model.ReasonArticleSkipped, v.Trail[0].Reason)
}

func TestValidate_BackendErrorsEscalate(t *testing.T) {
	f := newFixture()
	f.wiki.digestErr = errors.New("digest down")
	f.wiki.articleErr = errors.New("article down")
	f.oracle.err = errors.New("oracle down")
	f.strategy.result = model.TierResult{Tier: model.TierSearch, Outcome: model.OutcomePass, Reason: model.ReasonDiffStrong}
	ev := ordinary("Founding of CERN", time.September, 29, 1954)
	ev.ExternalID = "Q42944"

	v := f.pipeline(model.DigestScopeAll).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.True(t, v.Accepted)
	assert.Equal(t, model.TierSearch, v.Method)
	require.Len(t, v.Trail, 4)
	assert.Equal(t, model.ReasonDigestError, v.Trail[0].Reason)
	assert.Equal(t, model.ReasonWikiError, v.Trail[1].Reason)
	assert.Equal(t, model.ReasonOracleError, v.Trail[2].Reason)
	assert.Equal(t, model.OutcomeInconclusive, v.Trail[2].Outcome)
}

func TestValidate_SearchFailRejects(t *testing.T) {
	f := newFixture()
	f.strategy.result = model.TierResult{Tier: model.TierSearch, Outcome: model.OutcomeFail, Reason: model.ReasonDiffFalsified}
	ev := ordinary("Founding of CERN", time.September, 29, 1954)

	v := f.pipeline(model.DigestScopeAll).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.False(t, v.Accepted)
	assert.Equal(t, model.TierSearch, v.Method)
	assert.Equal(t, model.ReasonDiffFalsified, v.Reason)
	assert.Zero(t, f.content.confirmCalls)
}

func TestValidate_ContentTierGetsEvidence(t *testing.T) {
	f := newFixture()
	evidence := []model.SearchResult{{ID: "a", URL: "https://a.org"}, {ID: "b", URL: "https://b.org"}}
	f.strategy.result = model.TierResult{Tier: model.TierSearch, Outcome: model.OutcomeInconclusive, Reason: model.ReasonDiffModerate, Evidence: evidence}
	f.content.confirm = model.TierResult{Tier: model.TierContent, Outcome: model.OutcomePass, Reason: model.ReasonContentConfirmed}
	ev := ordinary("Founding of CERN", time.September, 29, 1954)

	v := f.pipeline(model.DigestScopeAll).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.True(t, v.Accepted)
	assert.Equal(t, model.TierContent, v.Method)
	assert.Equal(t, evidence, f.content.evidence)
}

func TestValidate_ContentErrorRejects(t *testing.T) {
	f := newFixture()
	f.content.confirm = model.TierResult{Tier: model.TierContent, Outcome: model.OutcomeInconclusive, Reason: model.ReasonContentError}
	ev := ordinary("Founding of CERN", time.September, 29, 1954)

	v := f.pipeline(model.DigestScopeAll).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.False(t, v.Accepted)
	assert.Equal(t, model.TierContent, v.Method)
	assert.Equal(t, model.ReasonContentError, v.Reason)
}

func TestValidate_InvalidEvent(t *testing.T) {
	f := newFixture()
	ev := &model.CandidateEvent{Title: " ", Year: 1900}

	v := f.pipeline(model.DigestScopeAll).Validate(context.Background(), ev, model.MonthDay{Month: time.May, Day: 1})

	assert.False(t, v.Accepted)
	assert.Equal(t, model.ReasonInvalidEvent, v.Reason)
	assert.Zero(t, f.wiki.digestCalls)
	assert.Zero(t, f.oracle.calls)
}

func TestValidate_ClaimedDayArgumentWins(t *testing.T) {
	f := newFixture()
	f.oracle.verdict = oracle.Verdict{Verdict: oracle.VerdictYes}
	ev := ordinary("Founding of CERN", time.September, 1, 1954)
	ev.Date = "September 1, 1954"

	v := f.pipeline(model.DigestScopeAll).Validate(context.Background(), ev, model.MonthDay{Month: time.September, Day: 29})

	assert.True(t, v.Accepted)
	assert.Equal(t, model.MonthDay{Month: time.September, Day: 29}, ev.ClaimedDate)
	assert.Equal(t, "September 29, 1954", ev.Date)
}

func TestValidate_NoCollaborators(t *testing.T) {
	ev := ordinary("Founding of CERN", time.September, 29, 1954)
	v := New(model.PipelineConfig{}, Collaborators{}, nil).Validate(context.Background(), ev, ev.ClaimedDate)

	assert.False(t, v.Accepted)
	assert.Equal(t, model.TierContent, v.Method)
	assert.Len(t, v.Trail, 5)
}
