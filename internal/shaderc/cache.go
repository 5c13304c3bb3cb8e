// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shaderc

import (
	"sync"
	"sync/atomic"
)

// DefaultCacheSize is the number of compiled modules a Cache keeps when
// NewCache is given a non-positive size.
const DefaultCacheSize = 64

// Cache memoizes Compile by WGSL source, evicting the least recently used
// module once it holds more than its size.
//
// Cache is safe for concurrent use. Compilation runs outside the lock, so
// two goroutines missing on the same source may both compile it.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*node
	order   lruList
	size    int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Len       int
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// NewCache returns an empty cache holding up to size modules.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{entries: make(map[string]*node), size: size}
}

// Compile returns the SPIR-V words for wgsl, compiling on a miss.
// Failed compilations are not cached.
func (c *Cache) Compile(wgsl string) ([]uint32, error) {
	if words, ok := c.get(wgsl); ok {
		c.hits.Add(1)
		return words, nil
	}
	c.misses.Add(1)

	words, err := Compile(wgsl)
	if err != nil {
		return nil, err
	}
	c.put(wgsl, words)
	return words, nil
}

func (c *Cache) get(wgsl string) ([]uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.entries[wgsl]
	if !ok {
		return nil, false
	}
	c.order.moveToFront(n)
	return n.words, true
}

func (c *Cache) put(wgsl string, words []uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.entries[wgsl]; ok {
		n.words = words
		c.order.moveToFront(n)
		return
	}
	n := &node{key: wgsl, words: words}
	c.entries[wgsl] = n
	c.order.pushFront(n)
	for len(c.entries) > c.size {
		old := c.order.back()
		c.order.remove(old)
		delete(c.entries, old.key)
		c.evictions.Add(1)
	}
}

// Len returns the number of cached modules.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every cached module. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*node)
	c.order = lruList{}
}

// Stats returns the current counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Len:       c.Len(),
		Size:      c.size,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// node is an entry in the recency list. head is the most recently used.
type node struct {
	key        string
	words      []uint32
	prev, next *node
}

type lruList struct {
	head, tail *node
}

func (l *lruList) pushFront(n *node) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *lruList) moveToFront(n *node) {
	if n == l.head {
		return
	}
	l.remove(n)
	l.pushFront(n)
}

func (l *lruList) back() *node { return l.tail }

func (l *lruList) remove(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
