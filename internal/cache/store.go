package cache

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/almanac/internal/model"
)

// Store is the result cache shared by every backend client. Entries are
// never invalidated within a run, even if the event they were computed from
// is later mutated.
type Store struct {
	backend Cache
	flight  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewStore wraps a cache backend. A nil backend disables caching.
func NewStore(backend Cache) *Store {
	return &Store{backend: backend}
}

// NewFromConfig builds the store described by the configuration
func NewFromConfig(cfg model.CacheConfig) *Store {
	if !cfg.Enabled {
		return NewStore(nil)
	}
	if cfg.PersistDir != "" {
		return NewStore(NewLayeredCache(cfg.PersistDir))
	}
	return NewStore(NewMemoryCache(0, 0))
}

// Get returns a cached value
func (s *Store) Get(key string) ([]byte, bool) {
	if s == nil || s.backend == nil {
		return nil, false
	}
	return s.backend.Get(key)
}

// Set stores a value for the rest of the process lifetime
func (s *Store) Set(key string, value []byte) error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Set(key, value, 0)
}

// Memo returns the cached value for key, or computes it with fn and stores
// it. Read-then-write is atomic per key: concurrent callers for the same key
// share a single fn call. Errors are returned to every waiter and never
// cached. hit reports whether the value came from the cache.
func (s *Store) Memo(key string, fn func() ([]byte, error)) (value []byte, hit bool, err error) {
	return s.memo(key, fn)
}

// MemoJSON is Memo for JSON-encodable values
func MemoJSON[T any](s *Store, key string, fn func() (T, error)) (T, bool, error) {
	var zero T
	raw, hit, err := s.memo(key, func() ([]byte, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode cache value: %w", err)
		}
		return b, nil
	})
	if err != nil {
		return zero, false, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, false, fmt.Errorf("decode cache value %s: %w", key, err)
	}
	return out, hit, nil
}

func (s *Store) memo(key string, fn func() ([]byte, error)) ([]byte, bool, error) {
	if s == nil || s.backend == nil {
		v, err := fn()
		return v, false, err
	}

	if v, ok := s.backend.Get(key); ok {
		s.hits.Add(1)
		return v, true, nil
	}

	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		// Another flight may have filled the key between Get and Do
		if v, ok := s.backend.Get(key); ok {
			return v, nil
		}
		s.misses.Add(1)
		v, err := fn()
		if err != nil {
			return nil, err
		}
		// A failed write only costs a repeated call later
		_ = s.backend.Set(key, v, 0)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// Stats returns hit and miss counters
func (s *Store) Stats() (hits, misses int64) {
	if s == nil {
		return 0, 0
	}
	return s.hits.Load(), s.misses.Load()
}
