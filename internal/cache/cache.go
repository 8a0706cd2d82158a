// Package cache holds previously generated responses keyed by a
// normalized fingerprint of the transcribed text plus the active mode.
// Eviction is least-recently-used with a fixed capacity.
package cache

import (
	"container/list"
	"strings"
	"sync"
)

// Key identifies a cached response. Two utterances that differ only in
// case or whitespace map to the same key.
type Key struct {
	Fingerprint string
	Mode        string
}

// NewKey builds a cache key from raw transcription text and the mode it
// was processed under.
func NewKey(text, mode string) Key {
	return Key{
		Fingerprint: strings.Join(strings.Fields(strings.ToLower(text)), " "),
		Mode:        mode,
	}
}

// Stats counts cache effectiveness over the process lifetime.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
}

// HitRate returns hits over total lookups, 0 when no lookups happened.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	key   Key
	value string
}

// Cache is a fixed-capacity LRU of mode-scoped responses. Safe for
// concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[Key]*list.Element
	hits     int64
	misses   int64
	evicted  int64
}

// New creates a cache. Capacity must be positive.
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[Key]*list.Element, capacity),
	}
}

// Get returns the cached response for key, marking it most recently
// used. The second return is false on a miss.
func (c *Cache) Get(key Key) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return "", false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

// Put stores a response, evicting the least recently used entry when
// the cache is full.
func (c *Cache) Put(key Key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
			c.evicted++
		}
	}

	c.items[key] = c.order.PushFront(&entry{key: key, value: value})
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evicted,
		Size:      c.order.Len(),
		Capacity:  c.capacity,
	}
}

// Clear drops all entries but keeps the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[Key]*list.Element, c.capacity)
}
