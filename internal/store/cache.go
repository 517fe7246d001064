package store

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
)

// DefaultCacheSize bounds how many collections are kept at once. The
// library surface is small (three categories plus playlists), so a modest
// bound is plenty.
const DefaultCacheSize = 64

// CollectionCache keeps recently fetched collections so browsing back and
// forth does not re-hit the remote API while a poll loop is already
// consuming the request budget.
type CollectionCache struct {
	lru *expirable.LRU[string, core.Collection]
}

func NewCollectionCache(size int, ttl time.Duration) *CollectionCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CollectionCache{
		lru: expirable.NewLRU[string, core.Collection](size, nil, ttl),
	}
}

func (c *CollectionCache) Get(tag string) (core.Collection, bool) {
	return c.lru.Get(tag)
}

func (c *CollectionCache) Put(col core.Collection) {
	c.lru.Add(col.Tag(), col)
}

func (c *CollectionCache) Invalidate(tag string) {
	c.lru.Remove(tag)
}

func (c *CollectionCache) Purge() {
	c.lru.Purge()
}
