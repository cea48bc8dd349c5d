// Package cache stores finished analysis results by content fingerprint.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/taxaformer/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

const keyPrefix = "taxaformer:v1:"

// Fingerprint returns the hex SHA-256 of everything read from r
func Fingerprint(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("fingerprint: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// CacheKey generates a cache key from a content fingerprint and the scope
// of the configuration that produced the result
func CacheKey(fingerprint, scope string) string {
	if scope == "" {
		return keyPrefix + fingerprint
	}
	return keyPrefix + scope + ":" + fingerprint
}

// Results is a typed view over a Cache holding analysis results
type Results struct {
	cache Cache
	ttl   time.Duration
	scope string
}

// NewResults wraps c. A nil c yields a cache that never hits.
func NewResults(c Cache, ttl time.Duration) *Results {
	if c == nil {
		c = Nop{}
	}
	return &Results{cache: c, ttl: ttl}
}

// Scoped returns a view over the same cache whose entries are only visible
// to views with an equal scope. Results produced under different analysis
// or classifier settings must use different scopes.
func (r *Results) Scoped(scope string) *Results {
	return &Results{cache: r.cache, ttl: r.ttl, scope: scope}
}

// Get looks up the result stored for fingerprint
func (r *Results) Get(fingerprint string) (*model.AnalysisResult, bool) {
	key := CacheKey(fingerprint, r.scope)
	data, ok := r.cache.Get(key)
	if !ok {
		return nil, false
	}
	result, err := model.Decode(bytes.NewReader(data))
	if err != nil {
		// Unreadable entries are treated as misses and evicted
		_ = r.cache.Delete(key)
		return nil, false
	}
	return result, true
}

// Put stores result under fingerprint
func (r *Results) Put(fingerprint string, result *model.AnalysisResult) error {
	var buf bytes.Buffer
	if err := model.Encode(&buf, result, false); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return r.cache.Set(CacheKey(fingerprint, r.scope), buf.Bytes(), r.ttl)
}

// Nop is a Cache that stores nothing
type Nop struct{}

func (Nop) Get(string) ([]byte, bool)               { return nil, false }
func (Nop) Set(string, []byte, time.Duration) error { return nil }
func (Nop) Delete(string) error                     { return nil }
func (Nop) Clear() error                            { return nil }
