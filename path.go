// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package casfs

import (
	"fmt"

	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/errs"
	"github.com/nrdvana/casfs/store"
)

// Path is a lightweight wrapper pairing an FS with a component
// sequence; it resolves lazily on first use (spec.md §4.5).
type Path struct {
	fs         *FS
	components []string
	flags      resolveOptions

	resolved bool
	nodes    []pathNode
	err      error
}

// NewPath builds a Path for the given slash-separated path string.
// FollowSymlinks defaults to true, matching ordinary path traversal.
func NewPath(fs *FS, path string) *Path {
	return &Path{
		fs:         fs,
		components: SplitPath(path),
		flags:      resolveOptions{followSymlinks: true},
	}
}

// Subpath builds a new Path with components appended to this one's
// (spec.md §4.5).
func (p *Path) Subpath(components ...string) *Path {
	combined := make([]string, 0, len(p.components)+len(components))
	combined = append(combined, p.components...)
	combined = append(combined, components...)
	return &Path{fs: p.fs, components: combined, flags: p.flags}
}

// Resolve forces and caches resolution, returning any resolution
// error (spec.md §4.5).
func (p *Path) Resolve() error {
	if !p.resolved {
		p.nodes, p.err = p.fs.resolve(p.components, p.flags)
		p.resolved = true
	}
	return p.err
}

// Names returns the path's components.
func (p *Path) Names() []string { return p.components }

// Entries returns the resolved chain of DirEnts, root to leaf.
func (p *Path) Entries() ([]dirent.DirEnt, error) {
	if err := p.Resolve(); err != nil {
		return nil, err
	}
	out := make([]dirent.DirEnt, len(p.nodes))
	for i, n := range p.nodes {
		out[i] = n.entry
	}
	return out, nil
}

// FinalEntry returns the leaf DirEnt.
func (p *Path) FinalEntry() (dirent.DirEnt, error) {
	if err := p.Resolve(); err != nil {
		return dirent.DirEnt{}, err
	}
	return p.nodes[len(p.nodes)-1].entry, nil
}

// Type returns the leaf entry's type.
func (p *Path) Type() (dirent.Type, error) {
	e, err := p.FinalEntry()
	if err != nil {
		return dirent.TypeUnknown, err
	}
	return e.Type, nil
}

// File returns a handle to the blob at this path's leaf, which must be
// a file (spec.md §4.5).
func (p *Path) File() (*store.FileHandle, error) {
	e, err := p.FinalEntry()
	if err != nil {
		return nil, err
	}
	if e.Type != dirent.TypeFile {
		return nil, fmt.Errorf("casfs: %w: %q is not a file", errs.ErrNotADirectory, e.Name.String())
	}
	return p.fs.store.Get(e.RefDigest())
}

// Open returns a reader for the blob at this path's leaf (spec.md
// §4.5).
func (p *Path) Open() (*store.FileHandle, error) {
	return p.File()
}
