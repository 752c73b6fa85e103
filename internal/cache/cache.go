package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a deterministic cache key for an operation kind and its
// request parts. Parts are NFKC-normalized, lower-cased and whitespace
// collapsed so that trivially different spellings share a key.
func Key(kind string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(normalizePart(p)))
		h.Write([]byte{0})
	}
	return "almanac:v1:" + kind + ":" + hex.EncodeToString(h.Sum(nil))
}

func normalizePart(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
