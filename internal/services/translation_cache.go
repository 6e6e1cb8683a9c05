package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/Belphemur/SubTranslate/internal/cache"
	"github.com/Belphemur/SubTranslate/internal/config"
)

// CacheKey hashes the inputs that determine a translation. A key produced for
// one model or target language never matches another.
func CacheKey(text, model, languageCode string) string {
	data, _ := json.Marshal([]string{text, model, languageCode})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Claim is an in-flight translation of one key. done is closed once the owner
// released it; value and ok are only read after that.
type Claim struct {
	done  chan struct{}
	value string
	ok    bool
}

// Wait blocks until the owner releases the claim. ok is false when the owner
// could not produce a cacheable translation.
func (c *Claim) Wait(ctx context.Context) (string, bool, error) {
	select {
	case <-c.done:
		return c.value, c.ok, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// Lookup is the outcome of TranslationCache.Lookup for a set of keys.
type Lookup struct {
	// Hits holds translations already in the store.
	Hits map[string]string
	// Owned lists the keys the caller must translate and then Release.
	Owned []string
	// Pending holds keys another caller is translating right now.
	Pending map[string]*Claim
}

// TranslationCache stores finished translations and makes sure only one
// caller at a time translates a given key. Store errors are logged and count
// as misses.
type TranslationCache struct {
	store cache.Store

	mu     sync.Mutex
	claims map[string]*Claim
}

// NewTranslationCache wraps a store.
func NewTranslationCache(store cache.Store) *TranslationCache {
	return &TranslationCache{store: store, claims: make(map[string]*Claim)}
}

// Get returns the stored translation for key.
func (c *TranslationCache) Get(key string) (string, bool) {
	return c.store.Get(key)
}

// Put stores a translation. It returns once the store has persisted it.
func (c *TranslationCache) Put(key, value string) error {
	return c.store.Set(key, value)
}

// Len returns the number of stored translations.
func (c *TranslationCache) Len() int {
	return c.store.Len()
}

// Clear removes every stored translation. In-flight claims are unaffected.
func (c *TranslationCache) Clear() error {
	return c.store.Clear()
}

// Close releases the underlying store.
func (c *TranslationCache) Close() error {
	return c.store.Close()
}

// Lookup splits keys into stored hits, keys now owned by the caller and keys
// claimed by someone else. Duplicate keys are reported once. Every owned key
// must be passed to Release exactly once.
func (c *TranslationCache) Lookup(keys []string) Lookup {
	res := Lookup{Hits: make(map[string]string), Pending: make(map[string]*Claim)}

	seen := make(map[string]struct{}, len(keys))
	c.mu.Lock()
	defer c.mu.Unlock()

	unclaimed := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if cl, busy := c.claims[key]; busy {
			res.Pending[key] = cl
			continue
		}
		unclaimed = append(unclaimed, key)
	}

	stored := c.store.GetMany(unclaimed)
	for _, key := range unclaimed {
		if value, ok := stored[key]; ok {
			res.Hits[key] = value
			continue
		}
		c.claims[key] = &Claim{done: make(chan struct{})}
		res.Owned = append(res.Owned, key)
	}
	return res
}

// Release ends the claim on key. When ok is true the value is stored before
// waiters are woken, so a later Lookup sees either the claim or the stored value.
func (c *TranslationCache) Release(key, value string, ok bool) {
	if ok {
		if err := c.Put(key, value); err != nil {
			l := config.GetLogger()
			l.Error().Err(err).Str("key", key).Msg("Failed to store translation")
		}
	}

	c.mu.Lock()
	cl, found := c.claims[key]
	delete(c.claims, key)
	c.mu.Unlock()
	if !found {
		return
	}
	cl.value, cl.ok = value, ok
	close(cl.done)
}

// zerologCacheLogger adapts the global zerolog logger to cache.Logger.
type zerologCacheLogger struct{}

func (zerologCacheLogger) Error(msg string, err error) {
	l := config.GetLogger()
	l.Error().Err(err).Str("component", "cache").Msg(msg)
}

// CacheLogger returns a cache.Logger writing through the application logger.
func CacheLogger() cache.Logger {
	return zerologCacheLogger{}
}
