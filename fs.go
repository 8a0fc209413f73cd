// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package casfs implements the CAS-FS virtual filesystem overlay
// (spec.md §4.4): a read side that resolves paths through a content-
// addressable directory tree, and a write side that layers in-memory
// mutations over it until Commit materializes them back into the
// store.
package casfs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/nrdvana/casfs/codec"
	"github.com/nrdvana/casfs/digest"
	"github.com/nrdvana/casfs/dircache"
	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/errs"
	"github.com/nrdvana/casfs/store"
)

// maxSymlinkHops bounds symlink-chain following (spec.md §4.4.1: "MAY
// impose a 40-hop ceiling").
const maxSymlinkHops = 40

// FS is a CAS-FS overlay over a Store: a root DirEnt plus an optional
// in-memory tree of not-yet-committed mutations (spec.md §4.4).
type FS struct {
	store           *store.Store
	dirCache        *dircache.Cache
	defaultCodec    string
	caseInsensitive bool

	mu        sync.Mutex
	rootEntry dirent.DirEnt
	overrides *overrideNode

	emptyDirOnce sync.Once
	emptyDirRef  digest.Digest
	emptyDirErr  error
}

// Option configures a new FS.
type Option func(*FS)

// WithCaseInsensitive makes name lookups (both override and decoded
// directory) case-fold before comparing.
func WithCaseInsensitive() Option {
	return func(fs *FS) { fs.caseInsensitive = true }
}

// WithDirCache supplies a shared directory cache; without it, each FS
// gets its own private cache.
func WithDirCache(c *dircache.Cache) Option {
	return func(fs *FS) { fs.dirCache = c }
}

// WithDefaultCodec sets the codec used to encode newly created
// directories that have no backing blob to inherit a codec from
// (default "universal").
func WithDefaultCodec(name string) Option {
	return func(fs *FS) { fs.defaultCodec = name }
}

// Open builds an FS rooted at rootEntry, which must be a directory.
func Open(st *store.Store, rootEntry dirent.DirEnt, opts ...Option) (*FS, error) {
	if rootEntry.Type != dirent.TypeDir {
		return nil, fmt.Errorf("casfs: %w: root entry must be a directory", errs.ErrNotADirectory)
	}
	fs := &FS{
		store:        st,
		defaultCodec: "universal",
		rootEntry:    rootEntry,
	}
	for _, opt := range opts {
		opt(fs)
	}
	if fs.dirCache == nil {
		fs.dirCache = dircache.New(0)
	}
	return fs, nil
}

// RootEntry returns the FS's current root DirEnt (reflecting the last
// Commit, or the entry Open was given if no commit has occurred).
func (fs *FS) RootEntry() dirent.DirEnt {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.rootEntry
}

// Store returns the backing blob store.
func (fs *FS) Store() *store.Store { return fs.store }

// overrideNode is one node of the in-memory mutation tree (spec.md
// §4.4.2). A present-but-unlinked node is the "unlink sentinel":
// distinct from both "missing" (no entry in the map) and "present"
// (ordinary entry).
type overrideNode struct {
	entry    dirent.DirEnt
	subtree  map[string]*overrideNode
	unlinked bool
}

func newOverrideNode(entry dirent.DirEnt) *overrideNode {
	return &overrideNode{entry: entry}
}

func (n *overrideNode) childNamed(name string, caseInsensitive bool) (*overrideNode, bool) {
	if n == nil || n.subtree == nil {
		return nil, false
	}
	key := foldKey(name, caseInsensitive)
	child, ok := n.subtree[key]
	return child, ok
}

func (n *overrideNode) attach(name string, caseInsensitive bool, child *overrideNode) {
	if n.subtree == nil {
		n.subtree = make(map[string]*overrideNode)
	}
	n.subtree[foldKey(name, caseInsensitive)] = child
}

func foldKey(name string, caseInsensitive bool) string {
	if !caseInsensitive {
		return name
	}
	b := []byte(name)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

// pathNode is one element of a resolved path, root to leaf (spec.md
// §4.4.1, "Result: an array of nodes from root to leaf").
type pathNode struct {
	entry dirent.DirEnt
	ov    *overrideNode // non-nil only when resolving for mutation
}

// resolveOptions controls resolve's behavior (spec.md §4.4.1).
type resolveOptions struct {
	followSymlinks bool
	partial        bool
	mkdir          int  // 0 = off, 1 = fabricate missing, 2 = also coerce non-dir into dir
	write          bool // true for mutation callers: build/attach override nodes
}

// SplitPath splits a slash-separated path into components, the form
// resolve expects. A leading "/" produces a leading empty component
// (spec.md §4.4.1: "present in absolute paths").
func SplitPath(path string) []string {
	return strings.Split(path, "/")
}

// resolve implements spec.md §4.4.1's path-resolution algorithm.
func (fs *FS) resolve(components []string, opts resolveOptions) ([]pathNode, error) {
	root := fs.rootEntry
	var rootOv *overrideNode
	if opts.write {
		if fs.overrides == nil {
			fs.overrides = newOverrideNode(root)
		}
		rootOv = fs.overrides
		root = rootOv.entry
	} else {
		rootOv = fs.overrides
	}

	nodes := []pathNode{{entry: root, ov: rootOv}}
	remaining := append([]string(nil), components...)
	hops := 0

	for len(remaining) > 0 {
		tail := nodes[len(nodes)-1]

		forceFollow := opts.followSymlinks || (len(remaining) == 1 && remaining[0] == "")
		if tail.entry.Type == dirent.TypeSymlink && forceFollow {
			hops++
			if hops > maxSymlinkHops {
				return nil, fmt.Errorf("casfs: %w: too many symlink hops", errs.ErrInvalidSymlink)
			}
			target := tail.entry.Ref.String()
			if target == "" {
				return nil, fmt.Errorf("casfs: %w: empty symlink target", errs.ErrInvalidSymlink)
			}
			nodes = nodes[:len(nodes)-1]
			parts := strings.Split(target, "/")
			if parts[0] == "" {
				nodes = []pathNode{{entry: fs.rootEntry, ov: fs.overrides}}
				if opts.write {
					if fs.overrides == nil {
						fs.overrides = newOverrideNode(fs.rootEntry)
					}
					nodes[0] = pathNode{entry: fs.overrides.entry, ov: fs.overrides}
				}
			}
			remaining = append(parts, remaining...)
			continue
		}

		name := remaining[0]

		// "", ".", and ".." are structural no-ops that don't require the
		// tail to be a directory (a trailing slash on a file path must
		// still resolve, not fail NotADirectory).
		switch name {
		case "", ".":
			remaining = remaining[1:]
			continue
		case "..":
			remaining = remaining[1:]
			if len(nodes) > 1 {
				nodes = nodes[:len(nodes)-1]
			}
			continue
		}

		if tail.entry.Type != dirent.TypeDir {
			if opts.mkdir > 1 {
				coerced := tail.entry.Clone()
				coerced.Type = dirent.TypeDir
				coerced.HasRef = false
				nodes[len(nodes)-1].entry = coerced
				if tail.ov != nil {
					tail.ov.entry = coerced
				}
				continue
			}
			return nil, fmt.Errorf("casfs: %w: %q is not a directory", errs.ErrNotADirectory, tail.entry.Name.String())
		}

		remaining = remaining[1:]

		next, nextOv, found := fs.lookupChild(tail, name, opts.write)
		wasOverride := nextOv != nil
		if !found {
			if !opts.partial && opts.mkdir == 0 {
				return nil, fmt.Errorf("casfs: %w: %q", errs.ErrNoSuchEntry, name)
			}
			typ := dirent.TypeDir
			if len(remaining) == 0 {
				// Final fabricated placeholder: undefined type signals
				// partial resolution (spec.md §4.4.1, last paragraph).
				typ = dirent.TypeUnknown
			}
			next = dirent.New(dirent.NameFromString(name), typ)
		}

		// Attach a new override node the first time this name is
		// touched in a mutation context; a name already present in the
		// overrides subtree is already connected (idempotent per
		// spec.md §4.4.2).
		if opts.write && !wasOverride {
			nextOv = newOverrideNode(next)
			tail.ov.attach(name, fs.caseInsensitive, nextOv)
		}

		nodes = append(nodes, pathNode{entry: next, ov: nextOv})
	}

	return nodes, nil
}

// lookupChild looks up name under tail, first in tail's override
// subtree (if tracked), then in the decoded backing directory.
func (fs *FS) lookupChild(tail pathNode, name string, write bool) (dirent.DirEnt, *overrideNode, bool) {
	if tail.ov != nil {
		if child, ok := tail.ov.childNamed(name, fs.caseInsensitive); ok {
			if child.unlinked {
				return dirent.DirEnt{}, nil, false
			}
			return child.entry, child, true
		}
	}

	if !tail.entry.HasRef {
		return dirent.DirEnt{}, nil, false
	}
	dir, err := fs.getDir(tail.entry.RefDigest())
	if err != nil {
		return dirent.DirEnt{}, nil, false
	}
	key := dirent.NameFromString(name)
	if fs.caseInsensitive {
		for _, e := range dir.Entries {
			if foldKey(e.Name.String(), true) == foldKey(name, true) {
				return e, nil, true
			}
		}
		return dirent.DirEnt{}, nil, false
	}
	e, ok := dir.ByName(key)
	return e, nil, ok
}

// getDir implements the cache-first lookup spec.md §4.4.4 describes for
// get_dir: on miss, fetch the blob, identify the codec by its framing
// header, decode, cache, return.
func (fs *FS) getDir(d digest.Digest) (*dirent.Directory, error) {
	if dir, ok := fs.dirCache.Get(d.String()); ok {
		return dir, nil
	}
	h, err := fs.store.Get(d)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("casfs: %w: %s", errs.ErrMissingBlob, d)
	}
	defer h.Close()
	blob, err := h.ReadAll()
	if err != nil {
		return nil, err
	}
	_, decoded, err := codec.Load(blob)
	if err != nil {
		return nil, err
	}
	dir := &decoded
	fs.dirCache.Put(d.String(), dir)
	return dir, nil
}

// emptyDirDigest returns (computing and caching on first use) the
// digest of an encoded, empty directory under fs.defaultCodec
// (spec.md §4.4.4, "hash_of_empty_dir").
func (fs *FS) emptyDirDigest() (digest.Digest, error) {
	fs.emptyDirOnce.Do(func() {
		blob, err := codec.Encode(fs.defaultCodec, dirent.Directory{})
		if err != nil {
			fs.emptyDirErr = err
			return
		}
		fs.emptyDirRef, fs.emptyDirErr = fs.store.Put(blob, store.PutOptions{})
	})
	return fs.emptyDirRef, fs.emptyDirErr
}
