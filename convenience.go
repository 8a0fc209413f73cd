// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package casfs

import (
	"time"

	"github.com/nrdvana/casfs/digest"
	"github.com/nrdvana/casfs/dirent"
)

// Mkdir creates an empty directory at path (spec.md §4.4.4).
func (fs *FS) Mkdir(path string, flags MutateFlags) error {
	ref, err := fs.emptyDirDigest()
	if err != nil {
		return err
	}
	ent := dirent.New(dirent.NameFromString(lastComponent(path)), dirent.TypeDir).WithDigestRef(ref)
	return fs.SetPath(path, ent, flags)
}

// Touch sets modify_ts to now on the entry at path, creating a missing
// file first when flags.Mkdir is set (spec.md §4.4.4).
func (fs *FS) Touch(path string, flags MutateFlags) error {
	if flags.Mkdir == 0 {
		fs.mu.Lock()
		_, err := fs.resolve(SplitPath(path), resolveOptions{followSymlinks: flags.FollowSymlinks})
		fs.mu.Unlock()
		if err != nil {
			return err
		}
	}
	now := time.Now().Unix()
	return fs.UpdatePath(path, flags, func(e dirent.DirEnt) dirent.DirEnt {
		if e.Type == dirent.TypeUnknown {
			e.Type = dirent.TypeFile
		}
		e.ModifyTS = now
		e.HasTS = true
		return e
	})
}

// GetDir resolves a digest to its decoded Directory via the cache-first
// lookup of spec.md §4.4.4.
func (fs *FS) GetDir(d digest.Digest) (*dirent.Directory, error) {
	return fs.getDir(d)
}

func lastComponent(path string) string {
	parts := SplitPath(path)
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}
