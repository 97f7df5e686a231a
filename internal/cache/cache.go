// Package cache provides the key-value cache that persists lookups
// (such as catalog URL to catalog reference) across ingestion runs.
package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache stores string values with an optional per-entry time to live.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string, opts ...SetOption)
}

type setOptions struct {
	ttl time.Duration
}

type SetOption func(*setOptions)

// WithTTL makes the entry expire after d.
func WithTTL(d time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = d
	}
}

type entry struct {
	value string
	// Zero if the entry never expires.
	expires time.Time
}

// LRU is a size-bounded Cache that evicts the least recently used entries.
// It is safe for concurrent use.
type LRU struct {
	mu      sync.Mutex
	entries *lru.Cache[string, entry]
	// Applied to entries that are set without WithTTL.
	defaultTTL time.Duration
	now        func() time.Time
}

// NewLRU returns a cache holding at most size entries.
// A zero defaultTTL means entries do not expire unless set WithTTL.
func NewLRU(size int, defaultTTL time.Duration) (*LRU, error) {
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create LRU cache: %w", err)
	}
	return &LRU{
		entries:    entries,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}, nil
}

func (c *LRU) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(key)
	if !ok {
		return "", false
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.entries.Remove(key)
		return "", false
	}
	return e.value, true
}

func (c *LRU) Set(key, value string, opts ...SetOption) {
	o := setOptions{ttl: c.defaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	e := entry{value: value}
	c.mu.Lock()
	defer c.mu.Unlock()
	if o.ttl > 0 {
		e.expires = c.now().Add(o.ttl)
	}
	c.entries.Add(key, e)
}

func (c *LRU) size() int {
	return c.entries.Len()
}
