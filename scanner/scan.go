// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package scanner walks a real filesystem tree into DirEnt-shaped
// records and stores them (spec.md §4.6), generalized from the
// teacher's own fstree.Capture/buildTree: where fstree produced a
// portable, uid/gid-free Merkle tree of TreeEntry/TreeObject values
// hashed with BLAKE3 and serialized with msgpack, Scan instead
// populates dirent.DirEnt's full unix-metadata fields (read via
// golang.org/x/sys/unix) and writes through the configured Store and
// directory codec, so the result is usable directly as a CAS-FS root.
package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nrdvana/casfs/codec"
	"github.com/nrdvana/casfs/digest"
	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/store"
)

var (
	ErrTooManyFiles = errors.New("scanner: too many files")
	ErrFileTooLarge = errors.New("scanner: file too large")
)

// Stats summarizes one Scan call.
type Stats struct {
	FileCount    int
	DirCount     int
	SymlinkCount int
	OtherCount   int
	ReusedCount  int // files whose digest was reused from a hint or Cache
	TotalBytes   uint64
	Duration     time.Duration
}

// Scan walks root and builds a CAS-FS directory tree under the given
// codec, returning the root DirEnt (already Put into st) plus
// statistics.
//
// hint, when non-nil, is the previously captured Directory at this
// same path: unchanged files (matching size and modify_ts) reuse their
// prior digest without rehashing, and matching subdirectories are
// resolved from the store to extend hinting recursively.
func Scan(st *store.Store, codecName string, root string, hint *dirent.Directory, opts ...Option) (dirent.DirEnt, Stats, error) {
	start := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return dirent.DirEnt{}, Stats{}, fmt.Errorf("scanner: resolve root: %w", err)
	}
	info, err := os.Lstat(absRoot)
	if err != nil {
		return dirent.DirEnt{}, Stats{}, fmt.Errorf("scanner: stat root: %w", err)
	}
	if !info.IsDir() {
		return dirent.DirEnt{}, Stats{}, fmt.Errorf("scanner: root is not a directory: %s", absRoot)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	b := &builder{st: st, codecName: codecName, o: o}
	entry, err := b.scanDir(absRoot, "", "", hint)
	if err != nil {
		return dirent.DirEnt{}, b.stats, err
	}
	b.stats.Duration = time.Since(start)
	return entry, b.stats, nil
}

type builder struct {
	st        *store.Store
	codecName string
	o         *options
	stats     Stats
}

// scanDir builds the DirEnt for a single directory, recursing into
// subdirectories depth-first (spec.md §4.6).
func (b *builder) scanDir(absPath, relPath, name string, hint *dirent.Directory) (dirent.DirEnt, error) {
	var stat unix.Stat_t
	statFn := unix.Lstat
	if b.o.followSymlinks {
		statFn = unix.Stat
	}
	if err := statFn(absPath, &stat); err != nil {
		return dirent.DirEnt{}, fmt.Errorf("scanner: lstat %s: %w", relPath, err)
	}
	base := entryFromStat(name, &stat)

	des, err := os.ReadDir(absPath)
	if err != nil {
		return dirent.DirEnt{}, fmt.Errorf("scanner: read dir %s: %w", relPath, err)
	}

	names := make([]string, len(des))
	for i, de := range des {
		names[i] = de.Name()
	}
	sort.Strings(names)

	var entries []dirent.DirEnt
	for _, childName := range names {
		childRel := filepath.Join(relPath, childName)
		childAbs := filepath.Join(absPath, childName)
		isDir, _ := isDirHint(childAbs)
		if b.o.shouldExclude(childRel, isDir) {
			continue
		}

		childHint := nestedHint(b.st, hint, childName)
		ent, err := b.scanEntry(childAbs, childRel, childName, childHint)
		if err != nil {
			if errors.Is(err, ErrTooManyFiles) {
				return dirent.DirEnt{}, err
			}
			b.stats.OtherCount++
			continue
		}
		entries = append(entries, ent)
	}

	dir := dirent.Directory{Entries: entries}
	if err := dir.Validate(false); err != nil {
		return dirent.DirEnt{}, err
	}
	blob, err := codec.Encode(b.codecName, dir)
	if err != nil {
		return dirent.DirEnt{}, err
	}
	ref, err := b.st.Put(blob, store.PutOptions{})
	if err != nil {
		return dirent.DirEnt{}, err
	}
	b.stats.DirCount++
	return base.WithDigestRef(ref), nil
}

func isDirHint(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// scanEntry builds the DirEnt for one non-root entry, dispatching on
// its filesystem type.
func (b *builder) scanEntry(absPath, relPath, name string, hint *dirent.Directory) (dirent.DirEnt, error) {
	var stat unix.Stat_t
	var err error
	if b.o.followSymlinks {
		err = unix.Stat(absPath, &stat)
	} else {
		err = unix.Lstat(absPath, &stat)
	}
	if err != nil {
		return dirent.DirEnt{}, fmt.Errorf("scanner: stat %s: %w", relPath, err)
	}
	ent := entryFromStat(name, &stat)

	switch ent.Type {
	case dirent.TypeDir:
		return b.scanDir(absPath, relPath, name, hint)

	case dirent.TypeSymlink:
		target, err := os.Readlink(absPath)
		if err != nil {
			return dirent.DirEnt{}, fmt.Errorf("scanner: readlink %s: %w", relPath, err)
		}
		b.stats.SymlinkCount++
		return ent.WithRef(dirent.NameFromString(target)), nil

	case dirent.TypeBlockDev, dirent.TypeCharDev:
		major := unix.Major(uint64(stat.Rdev))
		minor := unix.Minor(uint64(stat.Rdev))
		b.stats.OtherCount++
		return ent.WithRef(dirent.NameFromString(fmt.Sprintf("%d,%d", major, minor))), nil

	case dirent.TypePipe, dirent.TypeSocket:
		b.stats.OtherCount++
		return ent, nil

	default:
		if b.stats.FileCount >= b.o.maxFiles {
			return dirent.DirEnt{}, ErrTooManyFiles
		}
		size := uint64(stat.Size)
		if int64(size) > b.o.maxFileSize {
			return dirent.DirEnt{}, fmt.Errorf("scanner: %w: %s (%d bytes)", ErrFileTooLarge, relPath, size)
		}

		if reused, ok := reuseRef(hint, name, size, ent.ModifyTS); ok {
			b.stats.FileCount++
			b.stats.ReusedCount++
			b.stats.TotalBytes += size
			return ent.WithRef(reused), nil
		}
		if b.o.cache != nil {
			if hex, ok := b.o.cache.Lookup(absPath, size, ent.ModifyTS); ok {
				if has, _ := b.st.Has(digest.Digest(hex)); has {
					b.stats.FileCount++
					b.stats.ReusedCount++
					b.stats.TotalBytes += size
					return ent.WithDigestRef(digest.Digest(hex)), nil
				}
			}
		}

		d, err := b.st.PutFile(absPath, store.PutOptions{})
		if err != nil {
			return dirent.DirEnt{}, fmt.Errorf("scanner: hash %s: %w", relPath, err)
		}
		if b.o.cache != nil {
			b.o.cache.Remember(absPath, size, ent.ModifyTS, string(d))
		}
		b.stats.FileCount++
		b.stats.TotalBytes += size
		return ent.WithDigestRef(d), nil
	}
}

// reuseRef returns hint's digest for name if its recorded size and
// modify_ts still match the freshly stat'd values (spec.md §4.6 hint
// reuse).
func reuseRef(hint *dirent.Directory, name string, size uint64, modifyTS int64) (dirent.Ref, bool) {
	if hint == nil {
		return dirent.Ref{}, false
	}
	e, ok := hint.ByName(dirent.NameFromString(name))
	if !ok || e.Type != dirent.TypeFile || !e.HasRef {
		return dirent.Ref{}, false
	}
	if !e.HasSize || e.Size != size || !e.HasTS || e.ModifyTS != modifyTS {
		return dirent.Ref{}, false
	}
	return e.Ref, true
}

// nestedHint looks up name's entry in hint and, if it is a directory
// with a stored ref, decodes and returns that subdirectory so hinting
// can continue recursively.
func nestedHint(st *store.Store, hint *dirent.Directory, name string) *dirent.Directory {
	if hint == nil {
		return nil
	}
	e, ok := hint.ByName(dirent.NameFromString(name))
	if !ok || e.Type != dirent.TypeDir || !e.HasRef {
		return nil
	}
	h, err := st.Get(e.RefDigest())
	if err != nil || h == nil {
		return nil
	}
	defer h.Close()
	blob, err := h.ReadAll()
	if err != nil {
		return nil
	}
	_, dir, err := codec.Load(blob)
	if err != nil {
		return nil
	}
	return &dir
}

// typeFromMode maps a unix mode's type bits to a dirent.Type.
func typeFromMode(mode uint32) dirent.Type {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return dirent.TypeFile
	case unix.S_IFDIR:
		return dirent.TypeDir
	case unix.S_IFLNK:
		return dirent.TypeSymlink
	case unix.S_IFBLK:
		return dirent.TypeBlockDev
	case unix.S_IFCHR:
		return dirent.TypeCharDev
	case unix.S_IFIFO:
		return dirent.TypePipe
	case unix.S_IFSOCK:
		return dirent.TypeSocket
	default:
		return dirent.TypeUnknown
	}
}

// entryFromStat builds a DirEnt carrying the unix-metadata fields
// spec.md §3 lists, leaving Ref/HasRef for the caller to fill in once
// content (or a symlink target, or a hint) is resolved.
func entryFromStat(name string, stat *unix.Stat_t) dirent.DirEnt {
	e := dirent.New(dirent.NameFromString(name), typeFromMode(uint32(stat.Mode)))
	e.HasSize = true
	e.Size = uint64(stat.Size)
	e.ModifyTS = stat.Mtim.Sec
	e.AccessTS = stat.Atim.Sec
	e.MetadataTS = stat.Ctim.Sec
	e.HasTS = true
	e.UID = stat.Uid
	e.GID = stat.Gid
	e.Mode = uint32(stat.Mode) & 0o7777
	e.Dev = uint64(stat.Dev)
	e.Inode = stat.Ino
	e.NLink = uint32(stat.Nlink)
	e.BlockSize = uint32(stat.Blksize)
	e.BlockCount = uint64(stat.Blocks)
	e.HasUnixMeta = true
	return e
}
