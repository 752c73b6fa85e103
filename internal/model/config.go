package model

import "time"

// Config is the complete almanac configuration
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Oracle       LLMConfig          `yaml:"oracle" mapstructure:"oracle"`   // Research backend
	Checker      LLMConfig          `yaml:"checker" mapstructure:"checker"` // Cheap yes/no model
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	Encyclopedia EncyclopediaConfig `yaml:"encyclopedia" mapstructure:"encyclopedia"`
	Retry        RetryConfig        `yaml:"retry" mapstructure:"retry"`
	Pipeline     PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Domains      DomainConfig       `yaml:"domains" mapstructure:"domains"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// HTTPConfig holds settings shared by the HTTP backends
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CacheConfig controls the result cache
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	PersistDir string `yaml:"persist_dir,omitempty" mapstructure:"persist_dir"` // Empty: process-lifetime only
}

// LLMConfig configures one language-model provider
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig configures the neural/keyword search backend
type SearchConfig struct {
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey         string        `yaml:"-" mapstructure:"api_key"`
	NumResults     int           `yaml:"num_results" mapstructure:"num_results"`
	Delay          time.Duration `yaml:"delay" mapstructure:"delay"` // Pacing between backend calls
	ExcludeDomains []string      `yaml:"exclude_domains" mapstructure:"exclude_domains"`
}

// EncyclopediaConfig configures the MediaWiki/Wikidata backends
type EncyclopediaConfig struct {
	Lang        string `yaml:"lang" mapstructure:"lang"`
	BaseURL     string `yaml:"base_url,omitempty" mapstructure:"base_url"` // Defaults to https://<lang>.wikipedia.org
	WikidataURL string `yaml:"wikidata_url" mapstructure:"wikidata_url"`
}

// RetryConfig holds the two retry policies
type RetryConfig struct {
	Oracle RetryPolicyConfig `yaml:"oracle" mapstructure:"oracle"`
	Search RetryPolicyConfig `yaml:"search" mapstructure:"search"`
}

// RetryPolicyConfig is the serializable form of retry.Policy
type RetryPolicyConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" mapstructure:"multiplier"` // 1 = fixed delay
}

// Search strategies for tier 3
const (
	StrategyDifferential = "differential"
	StrategyTrustScored  = "trust-scored"
)

// Digest scopes for tier 0
const (
	DigestScopeAll     = "all"
	DigestScopePersons = "persons"
)

// PipelineConfig selects the tier variants and thresholds
type PipelineConfig struct {
	DigestScope      string  `yaml:"digest_scope" mapstructure:"digest_scope"`
	DigestLineScoped bool    `yaml:"digest_line_scoped" mapstructure:"digest_line_scoped"` // Year and title/keywords on one digest line
	SearchStrategy   string  `yaml:"search_strategy" mapstructure:"search_strategy"`
	ShiftDays        int     `yaml:"shift_days" mapstructure:"shift_days"`             // Wrong-date offset for differential queries
	StrongRetention  float64 `yaml:"strong_retention" mapstructure:"strong_retention"` // 0.60
	WeakRetention    float64 `yaml:"weak_retention" mapstructure:"weak_retention"`     // 0.40
	MinResults       int     `yaml:"min_results" mapstructure:"min_results"`           // trust-scored acceptance
	MinScore         float64 `yaml:"min_score" mapstructure:"min_score"`               // trust-scored acceptance
	ContentSources   int     `yaml:"content_sources" mapstructure:"content_sources"`   // tier 4 sources checked
	ExcerptChars     int     `yaml:"excerpt_chars" mapstructure:"excerpt_chars"`
}

// DomainConfig is the static domain classification table
type DomainConfig struct {
	HighTrust  []string `yaml:"high_trust" mapstructure:"high_trust"`
	Historical []string `yaml:"historical" mapstructure:"historical"`
	Allowed    []string `yaml:"allowed" mapstructure:"allowed"`
}

// ConcurrencyConfig controls batch validation
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls reporting
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "Almanac/0.1 (+https://github.com/ppiankov/almanac)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Oracle: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o",
			Timeout:   60,
			MaxTokens: 600,
		},
		Checker: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:   30,
			MaxTokens: 10,
		},
		Search: SearchConfig{
			BaseURL:    "https://api.exa.ai",
			NumResults: 10,
			Delay:      500 * time.Millisecond,
			ExcludeDomains: []string{
				"pinterest.com", "facebook.com", "instagram.com", "tiktok.com", "quora.com",
			},
		},
		Encyclopedia: EncyclopediaConfig{
			Lang:        "en",
			WikidataURL: "https://www.wikidata.org",
		},
		Retry: RetryConfig{
			Oracle: RetryPolicyConfig{
				MaxAttempts:  5,
				InitialDelay: 1 * time.Second,
				MaxDelay:     30 * time.Second,
				Multiplier:   2,
			},
			Search: RetryPolicyConfig{
				MaxAttempts:  3,
				InitialDelay: 2 * time.Second,
				MaxDelay:     2 * time.Second,
				Multiplier:   1,
			},
		},
		Pipeline: PipelineConfig{
			DigestScope:     DigestScopeAll,
			SearchStrategy:  StrategyDifferential,
			ShiftDays:       7,
			StrongRetention: 0.60,
			WeakRetention:   0.40,
			MinResults:      3,
			MinScore:        4.0,
			ContentSources:  2,
			ExcerptChars:    3000,
		},
		Domains: DefaultDomains(),
		Concurrency: ConcurrencyConfig{
			Workers: 1,
		},
	}
}

// DefaultDomains returns the shipped domain classification table
func DefaultDomains() DomainConfig {
	return DomainConfig{
		HighTrust: []string{
			".gov", ".edu", ".ac.uk",
			"britannica.com", "nature.com", "science.org", "nasa.gov", "nih.gov",
			"nobelprize.org", "loc.gov", "si.edu", "smithsonianmag.com",
			"bbc.co.uk", "bbc.com", "reuters.com", "apnews.com", "nytimes.com",
			"theguardian.com", "scientificamerican.com", "aps.org", "ieee.org",
		},
		Historical: []string{
			"history.com", "historytoday.com", "onthisday.com", "archives.gov",
			"nationalarchives.gov.uk", "historynet.com", "archive.org",
			"todayinsci.com", "computerhistory.org", "history.nasa.gov",
		},
		Allowed: []string{
			"wikipedia.org", "wikidata.org", "newspapers.com", "time.com",
			"npr.org", "pbs.org", "cnn.com", "newscientist.com", "phys.org",
			"sciencedaily.com", "livescience.com", "space.com",
		},
	}
}
