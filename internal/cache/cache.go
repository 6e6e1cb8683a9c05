// Package cache holds the stores behind the translation cache.
//
// A store maps a translation key to the translated text. Stores register
// themselves by kind ("file", "sqlite", "memory", "redis") and are opened
// through Open. The file and sqlite stores persist every write before
// returning, so a crash never loses a finished translation.
package cache

// EvictFunc is called with the key of an entry the store dropped on its own.
type EvictFunc func(key string)

// Logger receives errors from operations whose signature cannot return them.
type Logger interface {
	Error(msg string, err error)
}

// Store is a key-value store for translated text.
type Store interface {
	// Get returns the translation stored under key.
	Get(key string) (string, bool)

	// GetMany returns the stored translations of keys. Missing keys are
	// absent from the result.
	GetMany(keys []string) map[string]string

	// Set stores value under key, replacing any previous value.
	// Persistent stores return an error when the write did not reach storage.
	Set(key, value string) error

	// Len returns the number of stored translations.
	Len() int

	// Clear removes every translation, including the persisted copy.
	Clear() error

	// Close releases the resources held by the store.
	Close() error
}
