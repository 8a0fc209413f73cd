// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package casfs

import (
	"fmt"

	"github.com/nrdvana/casfs/codec"
	"github.com/nrdvana/casfs/digest"
	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/errs"
	"github.com/nrdvana/casfs/store"
)

// Commit materializes the overrides tree into the CAS and replaces
// root_entry (spec.md §4.4.3). It is a no-op if there are no pending
// mutations.
func (fs *FS) Commit() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.overrides == nil {
		return nil
	}

	newRef, err := fs.commitNode(fs.overrides)
	if err != nil {
		return err
	}

	newRoot := fs.rootEntry.Clone().WithDigestRef(newRef)
	fs.rootEntry = newRoot
	fs.overrides = nil
	return nil
}

// commitNode implements the bottom-up recursion of spec.md §4.4.3.
// Unchanged subtrees (no subtree map on their override node) are
// carried forward verbatim, so their digests are stable.
func (fs *FS) commitNode(node *overrideNode) (digest.Digest, error) {
	if node.entry.Type != dirent.TypeDir {
		return node.entry.RefDigest(), nil
	}

	var entries []dirent.DirEnt
	var metadata map[string]any
	codecName := fs.defaultCodec

	if node.entry.HasRef {
		backing, name, err := fs.loadDirWithCodec(node.entry.RefDigest())
		if err != nil {
			return "", err
		}
		codecName = name
		metadata = backing.Metadata
		for _, e := range backing.Entries {
			if _, overridden := node.subtree[foldKey(e.Name.String(), fs.caseInsensitive)]; !overridden {
				entries = append(entries, e)
			}
		}
	}

	for _, child := range node.subtree {
		if child.unlinked {
			continue
		}
		childEntry := child.entry
		if childEntry.Type == dirent.TypeDir && child.subtree != nil {
			newRef, err := fs.commitNode(child)
			if err != nil {
				return "", err
			}
			childEntry = childEntry.Clone().WithDigestRef(newRef)
		}
		entries = append(entries, childEntry)
	}

	if len(entries) == 0 {
		return fs.emptyDirDigest()
	}

	dir := dirent.Directory{Entries: entries, Metadata: metadata}
	if err := dir.Validate(fs.caseInsensitive); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrNameConflict, err)
	}

	blob, err := codec.Encode(codecName, dir)
	if err != nil {
		return "", err
	}
	return fs.store.Put(blob, store.PutOptions{})
}

// loadDirWithCodec fetches and decodes a directory blob, also
// returning the format name its framing header carries, needed so
// commit can re-encode an unmodified directory's carried-forward
// siblings under the same codec it was originally stored with.
func (fs *FS) loadDirWithCodec(d digest.Digest) (*dirent.Directory, string, error) {
	h, err := fs.store.Get(d)
	if err != nil {
		return nil, "", err
	}
	if h == nil {
		return nil, "", fmt.Errorf("casfs: %w: %s", errs.ErrMissingBlob, d)
	}
	defer h.Close()
	blob, err := h.ReadAll()
	if err != nil {
		return nil, "", err
	}
	name, dir, err := codec.Load(blob)
	if err != nil {
		return nil, "", err
	}
	return &dir, name, nil
}
