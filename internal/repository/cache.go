// Package repository resolves settings, the signed-in user and local photos from
// their caches, encrypted documents, the Photos.network API and the local database.
package repository

import "sync"

// Cache holds at most one value. Repositories own one each; it is injected so
// callers can share or reset it explicitly.
type Cache[T any] struct {
	mu    sync.RWMutex
	value *T
}

// NewCache returns an empty cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{}
}

// Get returns the cached pointer, or nil when empty.
func (c *Cache[T]) Get() *T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the cached value.
func (c *Cache[T]) Set(v *T) {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
}

// SetIfEmpty stores v only when the cache is empty and returns whatever the
// cache holds afterwards. Loads use it so a slow read never replaces a value
// written in the meantime.
func (c *Cache[T]) SetIfEmpty(v *T) *T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == nil {
		c.value = v
	}
	return c.value
}

// Clear empties the cache.
func (c *Cache[T]) Clear() {
	c.Set(nil)
}
