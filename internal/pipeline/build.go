package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/ppiankov/almanac/internal/cache"
	"github.com/ppiankov/almanac/internal/content"
	"github.com/ppiankov/almanac/internal/correct"
	"github.com/ppiankov/almanac/internal/encyclopedia"
	"github.com/ppiankov/almanac/internal/llm"
	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/oracle"
	"github.com/ppiankov/almanac/internal/retry"
	"github.com/ppiankov/almanac/internal/search"
	"github.com/ppiankov/almanac/internal/validate"
	"github.com/ppiankov/almanac/internal/worker"
)

// NewFromConfig wires the production backends described by cfg around one
// shared result cache. The returned store reports cache statistics.
func NewFromConfig(cfg *model.Config, logger *slog.Logger) (*Pipeline, *cache.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	oraclePolicy := retry.FromConfig(cfg.Retry.Oracle)
	if err := oraclePolicy.Validate(); err != nil {
		return nil, nil, fmt.Errorf("oracle retry policy: %w", err)
	}
	searchPolicy := retry.FromConfig(cfg.Retry.Search)
	if err := searchPolicy.Validate(); err != nil {
		return nil, nil, fmt.Errorf("search retry policy: %w", err)
	}

	researchLLM := newProvider(cfg.Oracle, cfg.HTTP, "research", logger)
	cheapLLM := newProvider(cfg.Checker, cfg.HTTP, "checker", logger)

	store := cache.NewFromConfig(cfg.Cache)
	limiter := worker.NewLimiter(cfg.Search.Delay)

	wiki := encyclopedia.NewClient(cfg.Encyclopedia, cfg.HTTP, store, searchPolicy, logger.With("component", "encyclopedia"))
	research := oracle.NewClient(researchLLM, store, oraclePolicy, logger.With("component", "oracle"))
	searcher := search.NewClient(cfg.Search, cfg.HTTP, limiter, store, searchPolicy, logger.With("component", "search"))
	pages := content.NewPageFetcher(cfg.HTTP, limiter, store, searchPolicy, logger.With("component", "fetch"))
	verifier := content.NewVerifier(cheapLLM, searcher, pages, store, oraclePolicy, cfg.Pipeline, logger.With("component", "content"))

	var strategy validate.Strategy
	switch cfg.Pipeline.SearchStrategy {
	case model.StrategyDifferential, "":
		strategy = validate.NewDifferential(searcher, cfg.Pipeline, logger.With("component", "differential"))
	case model.StrategyTrustScored:
		classifier := validate.NewDomainClassifier(cfg.Domains)
		strategy = validate.NewTrustScored(searcher, verifier, classifier, searchPolicy, cfg.Pipeline, logger.With("component", "trust-scored"))
	default:
		return nil, nil, fmt.Errorf("unknown search strategy %q", cfg.Pipeline.SearchStrategy)
	}

	switch cfg.Pipeline.DigestScope {
	case model.DigestScopeAll, model.DigestScopePersons, "":
	default:
		return nil, nil, fmt.Errorf("unknown digest scope %q", cfg.Pipeline.DigestScope)
	}

	p := New(cfg.Pipeline, Collaborators{
		Encyclopedia: wiki,
		Oracle:       research,
		Corrector:    correct.NewCorrector(research, logger.With("component", "correct")),
		Search:       strategy,
		Content:      verifier,
	}, logger)
	return p, store, nil
}

// newProvider builds one model provider. A provider that cannot be built is
// reported and left out; the tiers using it become inconclusive.
func newProvider(cfg model.LLMConfig, httpCfg model.HTTPConfig, role string, logger *slog.Logger) llm.Provider {
	p, err := llm.NewProvider(llm.ConfigFromModel(cfg, httpCfg))
	if err != nil {
		logger.Warn("model provider disabled", "role", role, "provider", cfg.Provider, "error", err)
		return nil
	}
	if p == nil {
		logger.Warn("no model provider configured", "role", role)
	}
	return p
}
