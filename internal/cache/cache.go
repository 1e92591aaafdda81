// Package cache provides a generic key/value store that lives fully in memory
// and mirrors itself to a single file on disk.
//
// The file holds a JSON array of [key, serializedValue] pairs, optionally
// gzip compressed. Writes go through a temp file and a rename, so a crash
// never leaves a torn file behind. A file that cannot be decoded is deleted
// and replaced with an empty one; the cache never refuses to start over
// corrupt data.
//
// Two commit policies exist. In immediate mode every mutation is written
// before it returns. In throttled mode (SetAutoSave with a positive interval)
// mutations only mark the cache dirty and a timer writes at most once per
// interval. Close must be called on shutdown to flush what is pending.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/klauspost/compress/gzip"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/felixgeelhaar/mnemo/internal/observe"
)

type options struct {
	compress bool
	autosave time.Duration
	log      *bolt.Logger
}

// Option configures Open.
type Option func(*options)

// WithCompression gzips the backing file.
func WithCompression(enabled bool) Option {
	return func(o *options) { o.compress = enabled }
}

// WithAutoSave starts the cache in throttled mode. See SetAutoSave.
func WithAutoSave(interval time.Duration) Option {
	return func(o *options) { o.autosave = interval }
}

// WithLogger sets the logger used for persistence failures and recovery.
func WithLogger(l *bolt.Logger) Option {
	return func(o *options) { o.log = l }
}

// Item is one key/value pair of a cache snapshot.
type Item[T any] struct {
	Key   string
	Value T
}

// Cache is a string keyed map of T backed by one file.
// It is safe for concurrent use. Two caches must never share a file.
type Cache[T any] struct {
	mu       sync.RWMutex
	path     string
	codec    Codec[T]
	compress bool
	log      *bolt.Logger

	data     *orderedmap.OrderedMap[string, T]
	dirty    bool
	interval time.Duration
	timer    *time.Timer
	closed   bool
}

// Open loads the cache stored at path, creating the file if it does not
// exist. A file that fails to decode is removed and initialisation is retried
// once against a fresh file; only a failure of that retry is returned.
func Open[T any](path string, codec Codec[T], opts ...Option) (*Cache[T], error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = observe.Nop().Log()
	}

	c := &Cache[T]{
		path:     path,
		codec:    codec,
		compress: o.compress,
		log:      o.log,
		data:     orderedmap.New[string, T](),
		interval: o.autosave,
	}

	if err := c.load(); err != nil {
		c.log.Warn().Str("path", path).Err(err).Msg("cache file corrupt, deleting and recreating")
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove corrupt cache %s: %w", path, rmErr)
		}
		c.data = orderedmap.New[string, T]()
		if err := c.load(); err != nil {
			return nil, fmt.Errorf("initialize cache %s: %w", path, err)
		}
	}

	return c, nil
}

func (c *Cache[T]) load() error {
	raw, err := os.ReadFile(c.path) // #nosec G304
	if errors.Is(err, os.ErrNotExist) {
		return c.save()
	}
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}

	if c.compress {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("open gzip stream: %w", err)
		}
		raw, err = io.ReadAll(zr)
		if err != nil {
			return fmt.Errorf("decompress cache: %w", err)
		}
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	var pairs [][2]string
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return fmt.Errorf("parse cache document: %w", err)
	}
	for _, p := range pairs {
		v, err := c.codec.Decode(p[1])
		if err != nil {
			return fmt.Errorf("decode key %q: %w", p[0], err)
		}
		c.data.Set(p[0], v)
	}
	return nil
}

func (c *Cache[T]) encode() ([]byte, error) {
	pairs := make([][2]string, 0, c.data.Len())
	for p := c.data.Oldest(); p != nil; p = p.Next() {
		s, err := c.codec.Encode(p.Value)
		if err != nil {
			return nil, fmt.Errorf("encode key %q: %w", p.Key, err)
		}
		pairs = append(pairs, [2]string{p.Key, s})
	}

	doc, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		return nil, err
	}
	if !c.compress {
		return doc, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(doc); err != nil {
		return nil, fmt.Errorf("compress cache: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress cache: %w", err)
	}
	return buf.Bytes(), nil
}

// save writes the whole mapping. Callers hold c.mu.
func (c *Cache[T]) save() error {
	data, err := c.encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0750); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	c.dirty = false
	return nil
}

// touched applies the commit policy after a mutation. Callers hold c.mu.
func (c *Cache[T]) touched() {
	c.dirty = true
	if c.interval <= 0 || c.closed {
		if err := c.save(); err != nil {
			c.log.Error().Str("path", c.path).Err(err).Msg("failed to save cache")
		}
		return
	}
	if c.timer == nil {
		c.timer = time.AfterFunc(c.interval, c.flush)
	}
}

func (c *Cache[T]) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer = nil
	_ = c.commitLocked()
}

func (c *Cache[T]) commitLocked() error {
	if !c.dirty {
		return nil
	}
	if err := c.save(); err != nil {
		c.log.Error().Str("path", c.path).Err(err).Msg("failed to commit cache")
		return err
	}
	return nil
}

// Get returns the value stored under key. It never touches disk.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Get(key)
}

// Has reports whether key is present.
func (c *Cache[T]) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data.Get(key)
	return ok
}

// Len reports the number of keys.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Len()
}

// Keys returns a snapshot of the keys in insertion order.
func (c *Cache[T]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, c.data.Len())
	for p := c.data.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Values returns a snapshot of the values in insertion order.
func (c *Cache[T]) Values() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	values := make([]T, 0, c.data.Len())
	for p := c.data.Oldest(); p != nil; p = p.Next() {
		values = append(values, p.Value)
	}
	return values
}

// Entries returns a snapshot of all pairs in insertion order.
func (c *Cache[T]) Entries() []Item[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := make([]Item[T], 0, c.data.Len())
	for p := c.data.Oldest(); p != nil; p = p.Next() {
		items = append(items, Item[T]{Key: p.Key, Value: p.Value})
	}
	return items
}

// Set inserts or overwrites key. Overwriting keeps the key's position.
// Persistence errors are logged, never returned.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Set(key, value)
	c.touched()
}

// Update replaces the value under an existing key with fn(old) under a
// single lock. It reports whether key existed; fn is not called otherwise.
func (c *Cache[T]) Update(key string, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	old, ok := c.data.Get(key)
	if !ok {
		return false
	}
	c.data.Set(key, fn(old))
	c.touched()
	return true
}

// Remove deletes key. Removing a missing key does nothing.
func (c *Cache[T]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data.Delete(key); ok {
		c.touched()
	}
}

// Clear removes every key.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = orderedmap.New[string, T]()
	c.touched()
}

// Commit writes pending changes now. It is a no-op when nothing changed
// since the last successful write.
func (c *Cache[T]) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitLocked()
}

// SetAutoSave switches the commit policy. A positive interval selects
// throttled mode; zero or negative selects immediate mode and flushes
// whatever is pending.
func (c *Cache[T]) SetAutoSave(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.interval = interval
	if interval > 0 {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	_ = c.commitLocked()
}

// Close stops the autosave timer and flushes pending changes. The cache
// stays usable afterwards, falling back to immediate commits.
func (c *Cache[T]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return c.commitLocked()
}

// Path returns the backing file path.
func (c *Cache[T]) Path() string {
	return c.path
}
