package cache

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Store kinds registered by this package.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindRedis  = "redis"
	KindMemory = "memory"
)

// RedisOptions locates the Redis or Valkey server of the redis store.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	// Prefix namespaces the keys of the store. Defaults to "subtrans:".
	Prefix string
}

// Options configures a store. Each kind reads only the fields it needs.
type Options struct {
	// Path is the backing file of the file and sqlite stores.
	Path string

	// MaxEntries bounds the memory store; the least recently used
	// translation is dropped first. Zero means unbounded.
	MaxEntries int

	// TTL expires translations after they were written. Zero keeps them
	// until cleared. The file store ignores it.
	TTL time.Duration

	// OnEvict observes entries the memory store drops, whether for
	// capacity or expiry.
	OnEvict EvictFunc

	// Logger receives errors that cannot be returned. Nil drops them.
	Logger Logger

	Redis RedisOptions

	// MetricsLabel, when set, wraps the store so lookups, writes, evictions
	// and its size are exported under that label.
	MetricsLabel string
}

func (o Options) logError(msg string, err error) {
	if o.Logger != nil {
		o.Logger.Error(msg, err)
	}
}

// Opener builds a store of one kind.
type Opener func(opts Options) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Opener)
)

// Register makes a store kind available to Open. Registering a kind twice
// or a nil opener panics.
func Register(kind string, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if open == nil {
		panic("cache: nil opener for " + kind)
	}
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("cache: store kind %q registered twice", kind))
	}
	registry[kind] = open
}

// Open creates a store of the given kind.
func Open(kind string, opts Options) (Store, error) {
	registryMu.RLock()
	open, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cache: unknown store kind %q, want one of %v", kind, Kinds())
	}
	if opts.MaxEntries < 0 || opts.TTL < 0 {
		return nil, fmt.Errorf("cache: negative max entries or ttl")
	}

	label := opts.MetricsLabel
	if label == "" {
		return open(opts)
	}

	observe := opts.OnEvict
	opts.OnEvict = func(key string) {
		EvictionsTotal.WithLabelValues(label).Inc()
		if observe != nil {
			observe(key)
		}
	}
	store, err := open(opts)
	if err != nil {
		return nil, err
	}
	return newInstrumentedStore(store, label), nil
}

// Kinds lists the registered store kinds in sorted order.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}
