// Package encyclopedia reads day digests and articles from a MediaWiki
// site and resolves Wikidata ids to article titles.
package encyclopedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/almanac/internal/cache"
	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/retry"
	"github.com/ppiankov/almanac/internal/util"
)

// ErrNotFound is returned when a page or entity does not exist
var ErrNotFound = errors.New("not found")

// Article is a plain-text encyclopedia page
type Article struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Portal bool   `json:"portal"` // Day index or anniversary page rather than a topic article
}

// Client talks to the MediaWiki action API and Wikidata
type Client struct {
	httpClient  *http.Client
	baseURL     string
	wikidataURL string
	lang        string
	userAgent   string
	maxBytes    int64
	store       *cache.Store
	policy      retry.Policy
	logger      *slog.Logger
}

// NewClient creates an encyclopedia client
func NewClient(cfg model.EncyclopediaConfig, httpCfg model.HTTPConfig, store *cache.Store, policy retry.Policy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	lang := cfg.Lang
	if lang == "" {
		lang = "en"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.wikipedia.org", lang)
	}
	wikidataURL := cfg.WikidataURL
	if wikidataURL == "" {
		wikidataURL = "https://www.wikidata.org"
	}
	timeout := httpCfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxBytes := httpCfg.MaxBodyBytes
	if maxBytes == 0 {
		maxBytes = 5 << 20
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
			},
		},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		wikidataURL: strings.TrimSuffix(wikidataURL, "/"),
		lang:        lang,
		userAgent:   httpCfg.UserAgent,
		maxBytes:    maxBytes,
		store:       store,
		policy:      policy,
		logger:      logger,
	}
}

// lookup is the cached form of a page read. A missing page is a definitive
// answer and is cached as Found=false; transport failures are not cached.
type lookup[T any] struct {
	Value T    `json:"value"`
	Found bool `json:"found"`
}

func found[T any](v T, err error) (lookup[T], error) {
	if errors.Is(err, ErrNotFound) {
		return lookup[T]{}, nil
	}
	if err != nil {
		return lookup[T]{}, err
	}
	return lookup[T]{Value: v, Found: true}, nil
}

// Digest returns the plain text of the day's page, such as "October 8",
// which lists the events, births and deaths of that calendar day.
func (c *Client) Digest(ctx context.Context, md model.MonthDay) (string, error) {
	key := cache.Key("digest", c.lang, strconv.Itoa(int(md.Month)), strconv.Itoa(md.Day))
	res, hit, err := cache.MemoJSON(c.store, key, func() (lookup[string], error) {
		page, err := c.extract(ctx, md.String())
		return found(page.Extract, err)
	})
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", md, err)
	}
	if !res.Found {
		return "", fmt.Errorf("digest %s: %w", md, ErrNotFound)
	}
	c.logger.Debug("digest loaded", "day", md.String(), "chars", len(res.Value), "cached", hit)
	return res.Value, nil
}

// Article returns the plain text of the named article, following redirects
func (c *Client) Article(ctx context.Context, title string) (Article, error) {
	title = normalizeTitle(title)
	key := cache.Key("article", c.lang, title)
	res, hit, err := cache.MemoJSON(c.store, key, func() (lookup[Article], error) {
		page, err := c.extract(ctx, title)
		return found(Article{
			Title:  page.Title,
			Text:   page.Extract,
			Portal: IsPortal(page.Title),
		}, err)
	})
	if err != nil {
		return Article{}, fmt.Errorf("article %q: %w", title, err)
	}
	if !res.Found {
		return Article{}, fmt.Errorf("article %q: %w", title, ErrNotFound)
	}
	art := res.Value
	c.logger.Debug("article loaded", "title", art.Title, "portal", art.Portal, "cached", hit)
	return art, nil
}

// ResolveID maps a Wikidata id (Q-number) to the article title on the
// configured language edition
func (c *Client) ResolveID(ctx context.Context, id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !strings.HasPrefix(id, "Q") || len(id) < 2 {
		return "", fmt.Errorf("resolve %q: not a Wikidata id: %w", id, ErrNotFound)
	}

	site := c.lang + "wiki"
	key := cache.Key("qid", site, id)
	res, _, err := cache.MemoJSON(c.store, key, func() (lookup[string], error) {
		q := url.Values{}
		q.Set("action", "wbgetentities")
		q.Set("ids", id)
		q.Set("props", "sitelinks")
		q.Set("sitefilter", site)
		q.Set("format", "json")

		var resp wbResponse
		if err := c.getJSON(ctx, c.wikidataURL+"/w/api.php?"+q.Encode(), &resp); err != nil {
			return lookup[string]{}, err
		}
		entity, ok := resp.Entities[id]
		if !ok || entity.Missing != nil {
			return found("", ErrNotFound)
		}
		link, ok := entity.Sitelinks[site]
		if !ok || link.Title == "" {
			return found("", ErrNotFound)
		}
		return found(link.Title, nil)
	})
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", id, err)
	}
	if !res.Found {
		return "", fmt.Errorf("resolve %s: %w", id, ErrNotFound)
	}
	return res.Value, nil
}

// ResolveArticle finds the canonical article for an event: an encyclopedia
// link among its sources first, then its external id.
func (c *Client) ResolveArticle(ctx context.Context, ev model.CandidateEvent) (Article, error) {
	for _, link := range ev.SourceLinks {
		if title, ok := TitleFromURL(link); ok {
			return c.Article(ctx, title)
		}
	}
	if ev.ExternalID != "" {
		title, err := c.ResolveID(ctx, ev.ExternalID)
		if err != nil {
			return Article{}, err
		}
		return c.Article(ctx, title)
	}
	return Article{}, ErrNotFound
}

// HasArticle reports whether the event carries anything ResolveArticle can use
func HasArticle(ev model.CandidateEvent) bool {
	if ev.ExternalID != "" {
		return true
	}
	for _, link := range ev.SourceLinks {
		if _, ok := TitleFromURL(link); ok {
			return true
		}
	}
	return false
}

type mwResponse struct {
	Query struct {
		Pages []mwPage `json:"pages"`
	} `json:"query"`
}

type mwPage struct {
	PageID  int    `json:"pageid"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
	Missing bool   `json:"missing"`
	Invalid bool   `json:"invalid"`
}

type wbResponse struct {
	Entities map[string]wbEntity `json:"entities"`
}

type wbEntity struct {
	ID        string  `json:"id"`
	Missing   *string `json:"missing"`
	Sitelinks map[string]struct {
		Site  string `json:"site"`
		Title string `json:"title"`
	} `json:"sitelinks"`
}

// extract fetches one page as plain text
func (c *Client) extract(ctx context.Context, title string) (mwPage, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "extracts")
	q.Set("explaintext", "1")
	q.Set("redirects", "1")
	q.Set("format", "json")
	q.Set("formatversion", "2")
	q.Set("titles", title)

	var resp mwResponse
	if err := c.getJSON(ctx, c.baseURL+"/w/api.php?"+q.Encode(), &resp); err != nil {
		return mwPage{}, err
	}
	if len(resp.Query.Pages) == 0 {
		return mwPage{}, ErrNotFound
	}
	page := resp.Query.Pages[0]
	if page.Missing || page.Invalid || page.Extract == "" {
		return mwPage{}, ErrNotFound
	}
	return page, nil
}

// getJSON performs a GET under the retry policy and decodes the body
func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	_, err := retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debug("encyclopedia request failed", "attempt", attempt, "error", err)
			return fmt.Errorf("fetch: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status: %d", resp.StatusCode)
			if retry.RetryableStatus(resp.StatusCode) {
				return err
			}
			return retry.Permanent(err)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return retry.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
	return err
}
