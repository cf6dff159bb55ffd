package cache

import (
	"container/list"
	"sync"
	"time"
)

// TTLCache is a bounded key-value cache with fixed-window expiry: an entry
// expires a constant TTL after insertion, no matter how often it is read.
// Expired entries are dropped lazily on lookup. When the cache is full, the
// entry with the nearest expiry (the least recently inserted one) is evicted.
type TTLCache[V any] struct {
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List // front = newest insertion
	mutex    sync.Mutex
	now      func() time.Time
}

type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
}

func NewTTLCache[V any](capacity int, ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the live value for key. Reads never refresh the expiry and
// never reorder entries; a hit on an expired entry removes it and misses.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[V])
	if c.now().Sub(e.insertedAt) >= c.ttl {
		c.remove(elem)
		return zero, false
	}
	return e.value, true
}

// Set inserts or replaces the value for key. Replacing restarts the entry's
// TTL from now.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.insertedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.remove(oldest)
		}
	}

	elem := c.order.PushFront(&entry[V]{key: key, value: value, insertedAt: c.now()})
	c.entries[key] = elem
}

// Delete removes key if present.
func (c *TTLCache[V]) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.remove(elem)
	}
}

// Len counts entries still resident, expired or not.
func (c *TTLCache[V]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.order.Len()
}

// Purge drops every entry.
func (c *TTLCache[V]) Purge() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

func (c *TTLCache[V]) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.entries, elem.Value.(*entry[V]).key)
}
