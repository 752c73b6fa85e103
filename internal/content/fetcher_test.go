package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/almanac/internal/cache"
	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/retry"
)

func testHTTPConfig(robots bool) model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:       5 * time.Second,
		UserAgent:     "Almanac/test",
		MaxBodyBytes:  1 << 20,
		RespectRobots: robots,
	}
}

func TestFetch_VisibleText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, `<html><body><nav>Menu</nav><article><h1>Pacemaker</h1>
<p>On October 8, 1958 the first implantable pacemaker was fitted.</p>
<script>track()</script></article><footer>Copyright</footer></body></html>`)
	}))
	defer server.Close()

	f := NewPageFetcher(testHTTPConfig(false), nil, nil, retry.Policy{MaxAttempts: 1}, nil)
	text, err := f.Fetch(context.Background(), server.URL+"/pacemaker")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(text, "October 8, 1958") {
		t.Errorf("Expected article text, got %q", text)
	}
	for _, unwanted := range []string{"Menu", "track()", "Copyright"} {
		if strings.Contains(text, unwanted) {
			t.Errorf("Text should not contain %q: %q", unwanted, text)
		}
	}
}

func TestFetch_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	f := NewPageFetcher(testHTTPConfig(false), nil, nil, retry.Policy{MaxAttempts: 3}, nil)
	text, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if text != "OK" {
		t.Errorf("Unexpected text: %q", text)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetch_NotFoundIsPermanent(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewPageFetcher(testHTTPConfig(false), nil, nil, retry.Policy{MaxAttempts: 3}, nil)
	if _, err := f.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("Expected error for 404")
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt for 404, got %d", attempts.Load())
	}
}

func TestFetch_RejectsNonHTML(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	f := NewPageFetcher(testHTTPConfig(false), nil, nil, retry.Policy{MaxAttempts: 3}, nil)
	if _, err := f.Fetch(context.Background(), server.URL+"/paper.pdf"); err == nil {
		t.Fatal("Expected error for PDF content")
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts.Load())
	}
}

func TestFetch_RobotsDisallowed(t *testing.T) {
	var pageHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /archive\n")
			return
		}
		pageHits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>secret</body></html>")
	}))
	defer server.Close()

	f := NewPageFetcher(testHTTPConfig(true), nil, nil, retry.Policy{MaxAttempts: 1}, nil)
	_, err := f.Fetch(context.Background(), server.URL+"/archive/1958")
	if !errors.Is(err, ErrDisallowed) {
		t.Fatalf("Expected ErrDisallowed, got %v", err)
	}
	if pageHits.Load() != 0 {
		t.Errorf("Disallowed page was requested %d times", pageHits.Load())
	}

	if _, err := f.Fetch(context.Background(), server.URL+"/public"); err != nil {
		t.Errorf("Expected allowed page to fetch, got %v", err)
	}
}

func TestFetch_UnsupportedScheme(t *testing.T) {
	f := NewPageFetcher(testHTTPConfig(false), nil, nil, retry.Policy{MaxAttempts: 1}, nil)
	if _, err := f.Fetch(context.Background(), "ftp://example.com/file"); err == nil {
		t.Fatal("Expected error for ftp URL")
	}
}

func TestFetch_CachesPageText(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body><p>First pulsar observed on November 28, 1967.</p></body></html>")
	}))
	defer server.Close()

	store := cache.NewStore(cache.NewMemoryCache(0, 0))
	f := NewPageFetcher(testHTTPConfig(false), nil, store, retry.Policy{MaxAttempts: 1}, nil)

	for i := 0; i < 2; i++ {
		text, err := f.Fetch(context.Background(), server.URL+"/pulsar")
		if err != nil {
			t.Fatalf("Fetch %d: %v", i, err)
		}
		if !strings.Contains(text, "November 28, 1967") {
			t.Errorf("Fetch %d: unexpected text %q", i, text)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("Expected one request for a cached page, got %d", hits.Load())
	}

	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(context.Background(), server.URL+"/missing"); err == nil {
			t.Fatal("Expected error for missing page")
		}
	}
	if hits.Load() != 3 {
		t.Errorf("Failed fetches must not be cached, got %d requests", hits.Load())
	}
}
