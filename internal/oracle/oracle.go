// Package oracle asks the research model whether an event happened on the
// claimed day and, after a year correction, rewrites its narrative.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ppiankov/almanac/internal/cache"
	"github.com/ppiankov/almanac/internal/llm"
	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/retry"
)

// ErrDisabled is returned when no research provider is configured
var ErrDisabled = errors.New("research oracle not configured")

const systemPrompt = "You are a meticulous historian and fact-checker. " +
	"You answer only with the requested labelled lines."

// Client is the research oracle
type Client struct {
	provider  llm.Provider
	store     *cache.Store
	policy    retry.Policy
	logger    *slog.Logger
	maxTokens int
}

// NewClient creates an oracle client. store may be nil to disable caching.
func NewClient(provider llm.Provider, store *cache.Store, policy retry.Policy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		provider:  provider,
		store:     store,
		policy:    policy,
		logger:    logger,
		maxTokens: 600,
	}
}

// Verify asks whether the event happened on its claimed date. Answers are
// cached per (title, month, day, year); errors are not.
func (c *Client) Verify(ctx context.Context, ev model.CandidateEvent) (Verdict, error) {
	if c.provider == nil {
		return Verdict{}, ErrDisabled
	}

	key := cache.Key("oracle", ev.Title,
		strconv.Itoa(int(ev.ClaimedDate.Month)), strconv.Itoa(ev.ClaimedDate.Day), strconv.Itoa(ev.Year))

	v, hit, err := cache.MemoJSON(c.store, key, func() (Verdict, error) {
		text, err := c.complete(ctx, verifyPrompt(ev))
		if err != nil {
			return Verdict{}, err
		}
		return ParseVerdict(text), nil
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("oracle verify %q: %w", ev.Title, err)
	}

	c.logger.Debug("oracle verdict",
		"title", ev.Title, "verdict", v.Verdict, "confidence", v.Confidence,
		"actual_date", v.ActualDate, "cached", hit)
	return v, nil
}

// Regenerate rewrites the narrative for the event's current year
func (c *Client) Regenerate(ctx context.Context, ev model.CandidateEvent) (string, error) {
	if c.provider == nil {
		return "", ErrDisabled
	}

	key := cache.Key("narrative", ev.Title, strconv.Itoa(ev.Year))
	raw, _, err := c.store.Memo(key, func() ([]byte, error) {
		text, err := c.complete(ctx, narrativePrompt(ev))
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("empty narrative: %w", llm.ErrNoChoices)
		}
		return []byte(text), nil
	})
	if err != nil {
		return "", fmt.Errorf("regenerate narrative %q: %w", ev.Title, err)
	}
	return string(raw), nil
}

// complete runs one prompt under the retry policy
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	var text string
	attempts, err := retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) error {
		resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
			System:    systemPrompt,
			Prompt:    prompt,
			MaxTokens: c.maxTokens,
		})
		if err != nil {
			c.logger.Warn("oracle call failed", "attempt", attempt, "error", err)
			return err
		}
		text = resp.Text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("after %d attempts: %w", attempts, err)
	}
	return text, nil
}

func verifyPrompt(ev model.CandidateEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %q happened on %s.\n", ev.Title, ev.ClaimedDate.WithYear(ev.Year))
	if ev.Kind.IsPerson() {
		fmt.Fprintf(&b, "This is a %s; check the person's %s date.\n", ev.Kind, ev.Kind)
	}
	if ev.Narrative != "" {
		fmt.Fprintf(&b, "Context: %s\n", ev.Narrative)
	}
	b.WriteString(`
Check the exact calendar date against reliable historical sources.
Answer with exactly these lines:
VERDICT: YES, NO or UNCLEAR
CONFIDENCE: HIGH, MEDIUM or LOW
ACTUAL_DATE: the correct date as "Month D, YYYY" if the claim is wrong, otherwise N/A
REASON: one sentence
`)
	return b.String()
}

func narrativePrompt(ev model.CandidateEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite this short description of %q so that it is accurate for %s.\n",
		ev.Title, ev.ClaimedDate.WithYear(ev.Year))
	if ev.Narrative != "" {
		fmt.Fprintf(&b, "Current text: %s\n", ev.Narrative)
	}
	b.WriteString("Keep the same length and tone. Reply with the new text only.")
	return b.String()
}
