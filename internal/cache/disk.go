package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskCache keeps backend answers as one JSON record per key, grouped in a
// subdirectory per operation kind. A later run pointed at the same
// directory replays those answers instead of calling the backends.
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache stores records under dir. A zero ttl keeps records forever.
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl}
}

// record is the on-disk form. Key is kept so that a sanitised file name
// collision is detected instead of served.
type record struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec.Key != key {
		return nil, false
	}
	if !rec.ExpiresAt.IsZero() && time.Now().After(rec.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false
	}
	return rec.Value, true
}

// Set writes the record through a temporary file and a rename, so that a
// concurrent reader sees either the old record or the new one.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	rec := record{Key: key, Value: value, StoredAt: time.Now().UTC()}
	if ttl > 0 {
		rec.ExpiresAt = rec.StoredAt.Add(ttl)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".record-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publish record: %w", err)
	}
	return nil
}

// Delete removes one record; a missing record is not an error
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every record
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// path places "almanac:v1:<kind>:<hash>" at <dir>/<kind>/<hash>.json.
// Other keys land in the top directory.
func (c *DiskCache) path(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) == 4 && parts[0] == "almanac" {
		return filepath.Join(c.dir, safeName(parts[2]), safeName(parts[3])+".json")
	}
	return filepath.Join(c.dir, safeName(key)+".json")
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\', '.':
			return '_'
		}
		return r
	}, s)
}
