package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/go-geogit/geogit/plumbing"
	"github.com/go-geogit/geogit/plumbing/object"
)

// LRU is a typed, mutex guarded least recently used cache.
type LRU[K comparable, V any] struct {
	mut sync.Mutex
	c   *lru.Cache
}

// NewLRU returns a cache holding up to maxEntries values. Zero means no
// limit.
func NewLRU[K comparable, V any](maxEntries int) *LRU[K, V] {
	return &LRU[K, V]{c: lru.New(maxEntries)}
}

// Get returns the value cached for key.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mut.Lock()
	defer c.mut.Unlock()

	v, ok := c.c.Get(key)
	if !ok {
		var zero V
		return zero, false
	}

	return v.(V), true
}

// Add caches value for key, evicting the least recently used entry if
// the cache is full.
func (c *LRU[K, V]) Add(key K, value V) {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.c.Add(key, value)
}

// GetOrLoad returns the cached value for key, calling load and caching its
// result on a miss. Errors are not cached.
func (c *LRU[K, V]) GetOrLoad(key K, load func(K) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := load(key)
	if err != nil {
		return v, err
	}

	c.Add(key, v)
	return v, nil
}

// Len returns the number of cached values.
func (c *LRU[K, V]) Len() int {
	c.mut.Lock()
	defer c.mut.Unlock()

	return c.c.Len()
}

// Clear removes every value.
func (c *LRU[K, V]) Clear() {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.c.Clear()
}

// ObjectLRU implements an object cache with a least recently used eviction
// policy and a maximum number of entries.
type ObjectLRU struct {
	c *LRU[plumbing.ObjectID, object.RevObject]
}

// NewObjectLRU creates a new ObjectLRU with the given maximum number of
// entries.
func NewObjectLRU(maxEntries int) *ObjectLRU {
	return &ObjectLRU{c: NewLRU[plumbing.ObjectID, object.RevObject](maxEntries)}
}

// NewObjectLRUDefault creates a new ObjectLRU with the default cache size.
func NewObjectLRUDefault() *ObjectLRU {
	return NewObjectLRU(DefaultMaxEntries)
}

// Put puts an object into the cache.
func (c *ObjectLRU) Put(o object.RevObject) {
	c.c.Add(o.ID(), o)
}

// Get returns an object by its id. It marks the object as used. If the
// object is not in the cache, (nil, false) will be returned.
func (c *ObjectLRU) Get(id plumbing.ObjectID) (object.RevObject, bool) {
	return c.c.Get(id)
}

// Len returns the number of cached objects.
func (c *ObjectLRU) Len() int {
	return c.c.Len()
}

// Clear the content of this object cache.
func (c *ObjectLRU) Clear() {
	c.c.Clear()
}
