package model

// Outcome is the result of one tier's attempt
type Outcome string

const (
	OutcomePass         Outcome = "pass"
	OutcomeFail         Outcome = "fail"
	OutcomeInconclusive Outcome = "inconclusive"
)

// Tier names, also used as verdict methods
const (
	TierDigest    = "tier0"
	TierArticle   = "tier1"
	TierOracle    = "tier2"
	TierCorrected = "tier2-corrected"
	TierSearch    = "tier3"
	TierContent   = "tier4"
	TierInput     = "input"
)

// Reason codes. The vocabulary is stable; downstream reporting groups on it.
const (
	ReasonInvalidEvent = "invalid-event"

	ReasonDigestMatch = "digest-match"
	ReasonDigestMiss  = "digest-miss"
	ReasonDigestError = "digest-error"

	ReasonArticleSkipped   = "tier1-skipped"
	ReasonWikiDateMatch    = "wiki-date-match"
	ReasonWikiDateMismatch = "wiki-date-mismatch"
	ReasonWikiNameMatch    = "wiki-name-match"
	ReasonWikiExcerpt      = "wiki-excerpt-confirmed"
	ReasonWikiInconclusive = "wiki-inconclusive"
	ReasonWikiError        = "wiki-error"

	ReasonOracleYes     = "oracle-yes"
	ReasonOracleNo      = "tier2-no"
	ReasonYearCorrected = "year-corrected"
	ReasonDateUnparsed  = "date-unparseable"
	ReasonDateMismatch  = "date-mismatch"
	ReasonSameYear      = "same-year"
	ReasonOracleUnclear = "oracle-unclear"
	ReasonOracleError   = "oracle-error"

	ReasonDiffNoBaseline   = "differential-no-baseline"
	ReasonDiffFalsified    = "differential-falsification-failed"
	ReasonDiffDominance    = "differential-title-dominance"
	ReasonDiffStrong       = "differential-strong"
	ReasonDiffModerateOK   = "differential-moderate-with-titles"
	ReasonDiffModerate     = "differential-moderate"
	ReasonDiffLow          = "differential-low"
	ReasonTrustScore       = "trust-score"
	ReasonTrustExcerpt     = "trust-excerpt-confirmed"
	ReasonTrustUnverified  = "trust-unverified"
	ReasonSearchNoResults  = "search-no-results"
	ReasonSearchError      = "search-error"

	ReasonContentConfirmed   = "content-confirmed"
	ReasonContentUnconfirmed = "content-unconfirmed"
	ReasonContentNoSources   = "content-no-sources"
	ReasonContentError       = "content-error"
)

// TierResult is the immutable outcome of one tier
type TierResult struct {
	Tier     string         `json:"tier"`
	Outcome  Outcome        `json:"outcome"`
	Reason   string         `json:"reason"`
	Detail   string         `json:"detail,omitempty"`
	Evidence []SearchResult `json:"-"` // Carried to the next tier without re-fetching
}

// Correction records a year rewrite
type Correction struct {
	OldYear int `json:"old_year"`
	NewYear int `json:"new_year"`
}

// Verdict is the final decision for one event
type Verdict struct {
	Accepted   bool         `json:"accepted"`
	Method     string       `json:"method"`
	Reason     string       `json:"reason"`
	Correction *Correction  `json:"correction,omitempty"`
	Trail      []TierResult `json:"trail"`
}
