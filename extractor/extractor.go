// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package extractor materializes a CAS-FS subtree back onto a real
// filesystem (spec.md §4.7): the inverse of scanner.Scan.
package extractor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/nrdvana/casfs"
	"github.com/nrdvana/casfs/dirent"
)

// options configures Extract; each Option sets one of its fields.
type options struct {
	restoreOwner bool
	restoreMode  bool
	restoreTimes bool
}

type Option func(*options)

func defaultOptions() *options {
	return &options{restoreOwner: true, restoreMode: true, restoreTimes: true}
}

// WithNoRestoreOwner skips chown (typically needed when not running as
// root).
func WithNoRestoreOwner() Option {
	return func(o *options) { o.restoreOwner = false }
}

// WithNoRestoreMode skips chmod.
func WithNoRestoreMode() Option {
	return func(o *options) { o.restoreMode = false }
}

// WithNoRestoreTimes skips restoring access/modify times.
func WithNoRestoreTimes() Option {
	return func(o *options) { o.restoreTimes = false }
}

// Extract resolves srcPath within fsys and materializes it at destPath
// on the real filesystem (spec.md §4.7).
func Extract(fsys *casfs.FS, srcPath, destPath string, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	p := casfs.NewPath(fsys, srcPath)
	entry, err := p.FinalEntry()
	if err != nil {
		return err
	}
	return extractEntry(fsys, entry, destPath, o)
}

func extractEntry(fsys *casfs.FS, entry dirent.DirEnt, destPath string, o *options) error {
	switch entry.Type {
	case dirent.TypeDir:
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return fmt.Errorf("extractor: mkdir %s: %w", destPath, err)
		}
		if entry.HasRef {
			dir, err := fsys.GetDir(entry.RefDigest())
			if err != nil {
				return err
			}
			for _, child := range dir.Sorted() {
				childDest := filepath.Join(destPath, child.Name.String())
				if err := extractEntry(fsys, child, childDest, o); err != nil {
					return err
				}
			}
		}
		restoreMetadata(destPath, entry, o)
		return nil

	case dirent.TypeFile:
		h, err := fsys.Store().Get(entry.RefDigest())
		if err != nil {
			return err
		}
		if h == nil {
			return fmt.Errorf("extractor: missing blob for %s", destPath)
		}
		defer h.Close()
		out, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("extractor: create %s: %w", destPath, err)
		}
		if _, err := io.Copy(out, h); err != nil {
			out.Close()
			return fmt.Errorf("extractor: write %s: %w", destPath, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("extractor: close %s: %w", destPath, err)
		}
		restoreMetadata(destPath, entry, o)
		return nil

	case dirent.TypeSymlink:
		target := entry.Ref.String()
		_ = os.Remove(destPath)
		if err := os.Symlink(target, destPath); err != nil {
			return fmt.Errorf("extractor: symlink %s -> %s: %w", destPath, target, err)
		}
		return nil

	case dirent.TypeBlockDev, dirent.TypeCharDev:
		major, minor, err := parseMajorMinor(entry.Ref.String())
		if err != nil {
			return fmt.Errorf("extractor: %s: %w", destPath, err)
		}
		mode := uint32(0o600)
		if entry.Type == dirent.TypeBlockDev {
			mode |= unix.S_IFBLK
		} else {
			mode |= unix.S_IFCHR
		}
		_ = os.Remove(destPath)
		dev := unix.Mkdev(uint32(major), uint32(minor))
		if err := unix.Mknod(destPath, mode, int(dev)); err != nil {
			return fmt.Errorf("extractor: mknod %s: %w", destPath, err)
		}
		restoreMetadata(destPath, entry, o)
		return nil

	case dirent.TypePipe:
		_ = os.Remove(destPath)
		if err := unix.Mkfifo(destPath, 0o600); err != nil {
			return fmt.Errorf("extractor: mkfifo %s: %w", destPath, err)
		}
		restoreMetadata(destPath, entry, o)
		return nil

	case dirent.TypeSocket:
		log.WithField("path", destPath).Warn("extractor: skipping socket entry, cannot materialize")
		return nil

	default:
		log.WithField("path", destPath).Warn("extractor: skipping entry of unknown type")
		return nil
	}
}

func parseMajorMinor(ref string) (int64, int64, error) {
	parts := strings.SplitN(ref, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed device ref %q", ref)
	}
	major, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed device major in %q: %w", ref, err)
	}
	minor, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed device minor in %q: %w", ref, err)
	}
	return major, minor, nil
}

// restoreMetadata applies best-effort chmod/chown/chtimes from the
// entry's unix metadata fields. Failures are logged, not fatal — the
// same restore-layer discipline the pack's umoci-derived CAS code uses
// (permission restoration routinely fails for non-root extraction).
func restoreMetadata(path string, entry dirent.DirEnt, o *options) {
	if !entry.HasUnixMeta {
		return
	}
	if o.restoreMode && entry.Mode != 0 {
		if err := os.Chmod(path, os.FileMode(entry.Mode&0o7777)); err != nil {
			log.WithFields(log.Fields{"path": path, "error": err}).Warn("extractor: chmod failed")
		}
	}
	if o.restoreOwner {
		if err := os.Chown(path, int(entry.UID), int(entry.GID)); err != nil {
			log.WithFields(log.Fields{"path": path, "error": err}).Warn("extractor: chown failed")
		}
	}
	if o.restoreTimes && entry.HasTS {
		atime := time.Unix(entry.AccessTS, 0)
		mtime := time.Unix(entry.ModifyTS, 0)
		if err := os.Chtimes(path, atime, mtime); err != nil {
			log.WithFields(log.Fields{"path": path, "error": err}).Warn("extractor: chtimes failed")
		}
	}
}
