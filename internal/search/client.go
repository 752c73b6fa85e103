// Package search is a client for an Exa-style neural/keyword search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/almanac/internal/cache"
	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/retry"
	"github.com/ppiankov/almanac/internal/util"
	"github.com/ppiankov/almanac/internal/worker"
)

// ErrNoAPIKey is returned when the search backend has no credentials
var ErrNoAPIKey = errors.New("search API key not configured")

// Query types
const (
	TypeNeural  = "neural"
	TypeKeyword = "keyword"
)

// Query is one search request
type Query struct {
	Text        string
	Type        string // neural (default) or keyword
	NumResults  int    // 0 uses the configured default
	IncludeText string // phrase every result must contain
}

// Client calls the search backend. Calls are paced by the limiter, retried
// under the policy and cached.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	numResults int
	exclude    []string
	maxBytes   int64
	limiter    *worker.Limiter
	store      *cache.Store
	policy     retry.Policy
	logger     *slog.Logger
}

// NewClient creates a search client
func NewClient(cfg model.SearchConfig, httpCfg model.HTTPConfig, limiter *worker.Limiter, store *cache.Store, policy retry.Policy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = worker.NewLimiter(cfg.Delay)
	}
	timeout := httpCfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	numResults := cfg.NumResults
	if numResults <= 0 {
		numResults = 10
	}
	maxBytes := httpCfg.MaxBodyBytes
	if maxBytes == 0 {
		maxBytes = 5 << 20
	}

	exclude := append([]string(nil), cfg.ExcludeDomains...)
	sort.Strings(exclude)

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
			},
		},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		numResults: numResults,
		exclude:    exclude,
		maxBytes:   maxBytes,
		limiter:    limiter,
		store:      store,
		policy:     policy,
		logger:     logger,
	}
}

type searchRequest struct {
	Query          string   `json:"query"`
	Type           string   `json:"type"`
	NumResults     int      `json:"numResults"`
	ExcludeDomains []string `json:"excludeDomains,omitempty"`
	IncludeText    []string `json:"includeText,omitempty"`
}

type contentsRequest struct {
	IDs  []string `json:"ids"`
	Text bool     `json:"text"`
}

type resultsResponse struct {
	Results []struct {
		ID            string `json:"id"`
		URL           string `json:"url"`
		Title         string `json:"title"`
		Text          string `json:"text"`
		PublishedDate string `json:"publishedDate"`
	} `json:"results"`
}

// Search runs one query
func (c *Client) Search(ctx context.Context, q Query) ([]model.SearchResult, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if q.Type == "" {
		q.Type = TypeNeural
	}
	if q.NumResults <= 0 {
		q.NumResults = c.numResults
	}

	key := cache.Key("search", q.Text, q.Type, strconv.Itoa(q.NumResults), strings.Join(c.exclude, ","), q.IncludeText)
	results, hit, err := cache.MemoJSON(c.store, key, func() ([]model.SearchResult, error) {
		req := searchRequest{
			Query:          q.Text,
			Type:           q.Type,
			NumResults:     q.NumResults,
			ExcludeDomains: c.exclude,
		}
		if q.IncludeText != "" {
			req.IncludeText = []string{q.IncludeText}
		}
		return c.post(ctx, "/search", req)
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Text, err)
	}

	c.logger.Debug("search", "query", q.Text, "type", q.Type, "results", len(results), "cached", hit)
	return results, nil
}

// Contents fetches the full text of previously returned results
func (c *Client) Contents(ctx context.Context, ids []string) ([]model.SearchResult, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if len(ids) == 0 {
		return nil, nil
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	key := cache.Key("contents", sorted...)

	results, _, err := cache.MemoJSON(c.store, key, func() ([]model.SearchResult, error) {
		return c.post(ctx, "/contents", contentsRequest{IDs: ids, Text: true})
	})
	if err != nil {
		return nil, fmt.Errorf("contents: %w", err)
	}
	return results, nil
}

// post sends one paced, retried JSON request
func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]model.SearchResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + path

	var out resultsResponse
	_, err = retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx, endpoint); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("x-api-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debug("search request failed", "attempt", attempt, "error", err)
			return fmt.Errorf("execute request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("search API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
			if retry.RetryableStatus(resp.StatusCode) {
				return err
			}
			return retry.Permanent(err)
		}

		out = resultsResponse{}
		if err := json.Unmarshal(respBody, &out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]model.SearchResult, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, model.SearchResult{
			ID:            r.ID,
			URL:           r.URL,
			Title:         r.Title,
			Text:          r.Text,
			PublishedDate: r.PublishedDate,
		})
	}
	return results, nil
}
