// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package dircache implements the two-tier directory cache (spec.md
// §4.3): an identity map from digest to a weak reference to the decoded
// Directory, backed by a bounded ring of strong references so recently
// used directories survive a GC cycle even with no other live holder.
//
// Grounded on the teacher's own caching habits (gfbonny-cxdb keeps
// decoded conversation state behind a small in-process cache rather
// than re-parsing msgpack on every turn) but built on Go 1.24's
// `weak.Pointer[T]`, which did not exist when the teacher was written.
package dircache

import (
	"runtime"
	"sync"
	"weak"

	"github.com/nrdvana/casfs/dirent"
)

// DefaultRingSize is the default count of strong references held by a
// new Cache (spec.md §4.3: "default 32-64").
const DefaultRingSize = 48

// Cache is a digest-keyed cache of decoded Directory values. The zero
// value is not usable; construct with New.
type Cache struct {
	mu      sync.Mutex
	weak    map[string]weak.Pointer[dirent.Directory]
	ring    []*dirent.Directory
	ringPos int
}

// New creates a Cache with the given ring size (count of strong
// references). A size of 0 uses DefaultRingSize.
func New(ringSize int) *Cache {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}
	return &Cache{
		weak: make(map[string]weak.Pointer[dirent.Directory]),
		ring: make([]*dirent.Directory, ringSize),
	}
}

// Get returns the cached Directory for digestHex if it is still live,
// either because it is in the strong ring or because some other holder
// still has it reachable.
func (c *Cache) Get(digestHex string) (*dirent.Directory, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wp, ok := c.weak[digestHex]
	if !ok {
		return nil, false
	}
	dir := wp.Value()
	if dir == nil {
		delete(c.weak, digestHex)
		return nil, false
	}
	return dir, true
}

// Put inserts dir under digestHex, weak-inserting it into the identity
// map and strong-inserting it into the ring (evicting whatever
// currently occupies the ring's write position).
func (c *Cache) Put(digestHex string, dir *dirent.Directory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.weak[digestHex] = weak.Make(dir)
	runtime.AddCleanup(dir, c.evictStale, digestHex)

	c.ring[c.ringPos] = dir
	c.ringPos = (c.ringPos + 1) % len(c.ring)
}

// evictStale drops a weak-map entry once its Dir has been collected,
// so the map does not grow unboundedly with dead entries (spec.md
// §4.3: "auto-evicts... implementable via a sentinel held by the Dir").
// Cleanups run on their own goroutine, so this takes the same lock as
// every other Cache method.
func (c *Cache) evictStale(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wp, ok := c.weak[key]; ok && wp.Value() == nil {
		delete(c.weak, key)
	}
}

// Clear drops every strong reference and weak-map entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.ring {
		c.ring[i] = nil
	}
	c.weak = make(map[string]weak.Pointer[dirent.Directory])
}

// Size resizes the strong-reference ring to n, keeping the most recently
// inserted strong references that fit and discarding the older ones
// (their entries may still be served
// from the weak map if still reachable elsewhere).
func (c *Cache) Size(n int) {
	if n <= 0 {
		n = DefaultRingSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// Collect live strong refs oldest to newest and keep the newest n.
	var kept []*dirent.Directory
	for i := range c.ring {
		if d := c.ring[(c.ringPos+i)%len(c.ring)]; d != nil {
			kept = append(kept, d)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	c.ring = make([]*dirent.Directory, n)
	copy(c.ring, kept)
	c.ringPos = len(kept) % n
}
