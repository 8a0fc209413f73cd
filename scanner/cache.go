// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package scanner

import (
	"fmt"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/nrdvana/casfs/errs"
)

// cacheEntry is one remembered (size, mtime) -> digest mapping, keyed by
// absolute path, persisted across process runs so repeated scans of an
// unchanged tree skip re-hashing file content.
type cacheEntry struct {
	Size     uint64 `msgpack:"1"`
	ModifyTS int64  `msgpack:"2"`
	Digest   string `msgpack:"3"`
}

// Cache is an on-disk scan cache (spec.md §4.6, supplemented feature
// grounded on the teacher's own msgpack tree serialization).
type Cache struct {
	path string

	mu      sync.Mutex
	entries map[string]cacheEntry
	dirty   bool
}

// OpenCache loads a cache file if present, or starts an empty one.
func OpenCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]cacheEntry)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("%w: read scan cache: %v", errs.ErrIO, err)
	}
	var entries map[string]cacheEntry
	if err := msgpack.Unmarshal(raw, &entries); err != nil {
		// A corrupt cache degrades to a cold cache rather than failing
		// the whole scan.
		return c, nil
	}
	c.entries = entries
	return c, nil
}

// Lookup returns the remembered digest for path if its recorded size and
// modify_ts still match.
func (c *Cache) Lookup(path string, size uint64, modifyTS int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok || e.Size != size || e.ModifyTS != modifyTS {
		return "", false
	}
	return e.Digest, true
}

// Remember records a freshly computed digest for path.
func (c *Cache) Remember(path string, size uint64, modifyTS int64, digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = cacheEntry{Size: size, ModifyTS: modifyTS, Digest: digest}
	c.dirty = true
}

// Save persists the cache to disk if anything changed since it was
// opened (or since the last Save).
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	raw, err := msgpack.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("%w: marshal scan cache: %v", errs.ErrEncoding, err)
	}
	if err := os.WriteFile(c.path, raw, 0o644); err != nil {
		return fmt.Errorf("%w: write scan cache: %v", errs.ErrIO, err)
	}
	c.dirty = false
	return nil
}
