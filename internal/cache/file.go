package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
)

func init() {
	Register(KindFile, openFile)
}

// fileStore keeps every entry in memory and mirrors the whole map to a JSON
// object on disk after each write. The file is replaced atomically through a
// temporary file and rename, under an advisory lock shared with other
// processes pointing at the same path.
type fileStore struct {
	mu      sync.RWMutex
	path    string
	lock    *flock.Flock
	entries map[string]string
}

func openFile(opts Options) (Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("cache: file store requires a path")
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &apperrors.CacheIOError{Op: "mkdir", Err: err}
		}
	}

	c := &fileStore{
		path:    opts.Path,
		lock:    flock.New(opts.Path + ".lock"),
		entries: make(map[string]string),
	}
	if err := c.load(); err != nil {
		opts.logError("failed to load cache file, starting empty", err)
		c.entries = make(map[string]string)
	}
	return c, nil
}

func (c *fileStore) load() error {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &apperrors.CacheIOError{Op: "read", Err: err}
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return &apperrors.CacheIOError{Op: "decode", Err: err}
	}
	return nil
}

// persist writes the current map to disk. The caller holds c.mu.
func (c *fileStore) persist() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return &apperrors.CacheIOError{Op: "encode", Err: err}
	}

	if err := c.lock.Lock(); err != nil {
		return &apperrors.CacheIOError{Op: "lock", Err: err}
	}
	defer func() { _ = c.lock.Unlock() }()

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &apperrors.CacheIOError{Op: "write", Err: err}
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return &apperrors.CacheIOError{Op: "rename", Err: err}
	}
	return nil
}

func (c *fileStore) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *fileStore) GetMany(keys []string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	found := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, ok := c.entries[key]; ok {
			found[key] = v
		}
	}
	return found
}

// Set keeps the previous map when the write fails, so memory and disk agree.
func (c *fileStore) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, existed := c.entries[key]
	c.entries[key] = value
	if err := c.persist(); err != nil {
		if existed {
			c.entries[key] = prev
		} else {
			delete(c.entries, key)
		}
		return err
	}
	return nil
}

func (c *fileStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *fileStore) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string)

	if err := c.lock.Lock(); err != nil {
		return &apperrors.CacheIOError{Op: "lock", Err: err}
	}
	defer func() { _ = c.lock.Unlock() }()
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &apperrors.CacheIOError{Op: "remove", Err: err}
	}
	return nil
}

func (c *fileStore) Close() error {
	return c.lock.Close()
}
