package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/almanac/internal/model"
	"github.com/ppiankov/almanac/internal/search"
)

// fakeSearcher answers queries through a routing function and records them
type fakeSearcher struct {
	mu      sync.Mutex
	queries []search.Query
	route   func(q search.Query, call int) ([]model.SearchResult, error)
}

func (f *fakeSearcher) Search(ctx context.Context, q search.Query) ([]model.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	call := len(f.queries)
	f.mu.Unlock()
	return f.route(q, call)
}

// fakeChecker answers every excerpt with the same word
type fakeChecker struct {
	answer string
	err    error
	calls  int
}

func (f *fakeChecker) CheckExcerpt(ctx context.Context, ev model.CandidateEvent, excerpt string) (string, error) {
	f.calls++
	return f.answer, f.err
}

// results builds n results; the first titled of them mention the title text
func results(n, titled int, title, host string) []model.SearchResult {
	out := make([]model.SearchResult, n)
	for i := range out {
		out[i] = model.SearchResult{
			ID:  fmt.Sprintf("%s-%d", host, i),
			URL: fmt.Sprintf("https://%s/page/%d", host, i),
		}
		if i < titled {
			out[i].Title = title
		} else {
			out[i].Title = "Unrelated page"
		}
	}
	return out
}

func pacemaker() model.CandidateEvent {
	ev := model.CandidateEvent{
		Title:       "First implantable pacemaker",
		ClaimedDate: model.MonthDay{Month: time.October, Day: 8},
		Year:        1958,
	}
	_ = ev.Prepare()
	return ev
}

// isShifted reports whether an anchored query carries the wrong date
func isShifted(q search.Query) bool {
	return strings.Contains(q.Text, "October 15")
}

var errBackend = errors.New("backend unavailable")
