// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package casfs

import (
	"fmt"

	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/errs"
)

// MutateFlags controls SetPath/UpdatePath/Unlink resolution behavior
// (spec.md §4.4.2 resolves "with partial=true", plus the mkdir
// coercion knob shared with plain resolution).
type MutateFlags struct {
	// FollowSymlinks makes intermediate symlinks transparent.
	FollowSymlinks bool
	// Mkdir, when >1, coerces a non-directory intermediate entry into a
	// directory instead of failing NotADirectory.
	Mkdir int
}

// SetPath replaces the entry at path with newEnt (spec.md §4.4.2).
func (fs *FS) SetPath(path string, newEnt dirent.DirEnt, flags MutateFlags) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	nodes, err := fs.resolve(SplitPath(path), resolveOptions{
		followSymlinks: flags.FollowSymlinks,
		partial:        true,
		mkdir:          flags.Mkdir,
		write:          true,
	})
	if err != nil {
		return err
	}
	leaf := nodes[len(nodes)-1]
	leaf.ov.entry = newEnt
	leaf.ov.unlinked = false
	return nil
}

// UpdatePath merges changes into the entry at path by calling apply
// against a clone of the currently resolved entry (spec.md §4.4.2).
func (fs *FS) UpdatePath(path string, flags MutateFlags, apply func(dirent.DirEnt) dirent.DirEnt) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	nodes, err := fs.resolve(SplitPath(path), resolveOptions{
		followSymlinks: flags.FollowSymlinks,
		partial:        true,
		mkdir:          flags.Mkdir,
		write:          true,
	})
	if err != nil {
		return err
	}
	leaf := nodes[len(nodes)-1]
	leaf.ov.entry = apply(leaf.ov.entry.Clone())
	leaf.ov.unlinked = false
	return nil
}

// Unlink marks path as removed: commit will omit it from the rebuilt
// parent directory. The sentinel is distinct from both "missing" and
// "present" (spec.md §4.4.2).
func (fs *FS) Unlink(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	nodes, err := fs.resolve(SplitPath(path), resolveOptions{partial: true, write: true})
	if err != nil {
		return err
	}
	if len(nodes) < 2 {
		return fmt.Errorf("casfs: %w: cannot unlink root", errs.ErrNoSuchEntry)
	}
	leaf := nodes[len(nodes)-1]
	leaf.ov.unlinked = true
	return nil
}

// Rollback discards the entire overrides tree, reverting to the last
// committed state (spec.md §4.4.2).
func (fs *FS) Rollback() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.overrides = nil
}
