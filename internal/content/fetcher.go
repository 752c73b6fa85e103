package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/almanac/internal/cache"
	"github.com/ppiankov/almanac/internal/extract"
	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/retry"
	"github.com/ppiankov/almanac/internal/util"
	"github.com/ppiankov/almanac/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids fetching a page
var ErrDisallowed = errors.New("disallowed by robots.txt")

// PageFetcher downloads a page and returns its visible text
type PageFetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
	store      *cache.Store
	policy     retry.Policy
	logger     *slog.Logger
}

// NewPageFetcher creates a fetcher. When cfg.RespectRobots is set every
// fetch is gated on the host's robots.txt and paced by its crawl delay.
// Page text is memoised in store; a nil store fetches every time.
func NewPageFetcher(cfg model.HTTPConfig, limiter *worker.Limiter, store *cache.Store, policy retry.Policy, logger *slog.Logger) *PageFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = worker.NewLimiter(0)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes == 0 {
		maxBytes = 2_000_000
	}

	f := &PageFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
		limiter:   limiter,
		store:     store,
		policy:    policy,
		logger:    logger,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(util.NormalizeUserAgent(cfg.UserAgent), timeout,
			util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy))
	}
	return f
}

// Fetch returns the visible text of the page at rawURL. Successful fetches
// are cached; refusals and failures are not.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("fetch %q: unsupported URL", rawURL)
	}

	raw, hit, err := f.store.Memo(cache.Key("page", rawURL), func() ([]byte, error) {
		text, err := f.fetch(ctx, parsed, rawURL)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	})
	if err != nil {
		return "", err
	}
	f.logger.Debug("page loaded", "url", rawURL, "chars", len(raw), "cached", hit)
	return string(raw), nil
}

func (f *PageFetcher) fetch(ctx context.Context, parsed *url.URL, rawURL string) (string, error) {
	if f.robots != nil {
		allowed, crawlDelay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return "", fmt.Errorf("robots check: %w", err)
		}
		if !allowed {
			return "", fmt.Errorf("fetch %s: %w", rawURL, ErrDisallowed)
		}
		f.limiter.SlowDown(parsed.Host, crawlDelay)
	}

	var page string
	_, err := retry.Do(ctx, f.policy, func(ctx context.Context, attempt int) error {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return err
		}
		html, err := f.get(ctx, rawURL)
		if err != nil {
			f.logger.Debug("page fetch failed", "url", rawURL, "attempt", attempt, "error", err)
			return err
		}
		page = html
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	return extract.VisibleText(page)
}

func (f *PageFetcher) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
		if retry.RetryableStatus(resp.StatusCode) {
			return "", err
		}
		return "", retry.Permanent(err)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return "", retry.Permanent(fmt.Errorf("unsupported content type %q", ct))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}
