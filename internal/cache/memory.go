package cache

import (
	"github.com/hashicorp/golang-lru/v2/expirable"
)

func init() {
	Register(KindMemory, openMemory)
}

// memoryStore lives only as long as the process. Tests use it, and so do
// deployments that would rather re-translate after a restart than keep a file.
type memoryStore struct {
	lru *expirable.LRU[string, string]
}

func openMemory(opts Options) (Store, error) {
	var onEvict expirable.EvictCallback[string, string]
	if opts.OnEvict != nil {
		onEvict = func(key, _ string) { opts.OnEvict(key) }
	}
	return &memoryStore{lru: expirable.NewLRU(opts.MaxEntries, onEvict, opts.TTL)}, nil
}

func (m *memoryStore) Get(key string) (string, bool) {
	return m.lru.Get(key)
}

func (m *memoryStore) GetMany(keys []string) map[string]string {
	found := make(map[string]string, len(keys))
	for _, key := range keys {
		if value, ok := m.lru.Get(key); ok {
			found[key] = value
		}
	}
	return found
}

func (m *memoryStore) Set(key, value string) error {
	m.lru.Add(key, value)
	return nil
}

func (m *memoryStore) Len() int { return m.lru.Len() }

func (m *memoryStore) Clear() error {
	m.lru.Purge()
	return nil
}

func (m *memoryStore) Close() error { return nil }
