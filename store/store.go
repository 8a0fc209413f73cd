// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package store implements the Blob Store (spec.md §4.1): a simple
// file-backed content-addressable mapping from digest to bytes, with
// deduplication, atomic insertion, optional hard-link reuse, and
// self-validation. Layout and algorithm are grounded on the pack's own
// file-backed CAS implementations (creachadair/ffs's filestore, umoci's
// oci/cas dirEngine), generalized to the pluggable digest and fanout
// scheme spec.md specifies.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/nrdvana/casfs/digest"
	"github.com/nrdvana/casfs/errs"
)

const (
	defaultCopyChunk = 256 * 1024 // 256 KiB, spec.md §4.1 step 3
	packageName      = "casfs-store"
	packageVersion   = "1"
)

// Store is a file-backed blob store rooted at a directory (spec.md
// §4.1, "Path layout (simple backend)").
type Store struct {
	root        string
	algorithm   string
	fanout      []int
	hashOfNull  digest.Digest
	allowNewer  bool // opt-out for ConfigMismatch on newer on-disk version
}

// CreateOptions configures a brand-new store.
type CreateOptions struct {
	Algorithm string // e.g. "sha256"; required
	Fanout    []int  // e.g. []int{1, 2}; defaults to []int{1, 2} if nil
}

// Create lays out a new store at root: conf/VERSION, conf/digest,
// conf/fanout (spec.md §4.1 "Path layout").
func Create(root string, opts CreateOptions) (*Store, error) {
	if opts.Algorithm == "" {
		return nil, fmt.Errorf("store: create: algorithm is required")
	}
	if !digest.Registered(opts.Algorithm) {
		return nil, fmt.Errorf("%w: unknown algorithm %q", errs.ErrConfigMismatch, opts.Algorithm)
	}
	fanout := opts.Fanout
	if fanout == nil {
		fanout = []int{1, 2}
	}
	if _, err := parseFanoutWidths(fanout); err != nil {
		return nil, err
	}

	confDir := filepath.Join(root, "conf")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir conf: %v", errs.ErrIO, err)
	}

	version := fmt.Sprintf("%s %s\n", packageName, packageVersion)
	if err := writeConfFile(filepath.Join(confDir, "VERSION"), version); err != nil {
		return nil, err
	}
	if err := writeConfFile(filepath.Join(confDir, "digest"), opts.Algorithm+"\n"); err != nil {
		return nil, err
	}
	if err := writeConfFile(filepath.Join(confDir, "fanout"), formatFanout(fanout)+"\n"); err != nil {
		return nil, err
	}

	return Open(root)
}

func parseFanoutWidths(widths []int) ([]int, error) {
	return parseFanout(formatFanout(widths))
}

func writeConfFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", errs.ErrIO, path, err)
	}
	return nil
}

// OpenOptions configures Open.
type OpenOptions struct {
	// AllowNewerVersion opts out of the ConfigMismatch failure when
	// conf/VERSION names a version newer than this package understands
	// (spec.md §4.1 "Failures").
	AllowNewerVersion bool
}

// Open opens an existing store, validating its conf/* files (spec.md
// §4.1 "Failures").
func Open(root string, opts ...OpenOptions) (*Store, error) {
	var o OpenOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	confDir := filepath.Join(root, "conf")

	versionRaw, err := os.ReadFile(filepath.Join(confDir, "VERSION"))
	if err != nil {
		return nil, fmt.Errorf("%w: missing conf/VERSION: %v", errs.ErrCorruptStore, err)
	}
	if err := checkVersion(string(versionRaw), o.AllowNewerVersion); err != nil {
		return nil, err
	}

	algoRaw, err := os.ReadFile(filepath.Join(confDir, "digest"))
	if err != nil {
		return nil, fmt.Errorf("%w: missing conf/digest: %v", errs.ErrCorruptStore, err)
	}
	algo := strings.TrimSpace(string(algoRaw))
	if !digest.Registered(algo) {
		return nil, fmt.Errorf("%w: unregistered digest algorithm %q", errs.ErrConfigMismatch, algo)
	}

	fanoutRaw, err := os.ReadFile(filepath.Join(confDir, "fanout"))
	if err != nil {
		return nil, fmt.Errorf("%w: missing conf/fanout: %v", errs.ErrCorruptStore, err)
	}
	fanout, err := parseFanout(string(fanoutRaw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCorruptStore, err)
	}

	hashOfNull, err := digest.HashOfNull(algo)
	if err != nil {
		return nil, err
	}

	s := &Store{
		root:       root,
		algorithm:  algo,
		fanout:     fanout,
		hashOfNull: hashOfNull,
		allowNewer: o.AllowNewerVersion,
	}

	// The empty blob always exists (spec.md §3). Persist it eagerly so
	// Get(hash_of_null) succeeds even on a freshly created store.
	if _, err := s.Put(nil, PutOptions{}); err != nil {
		return nil, fmt.Errorf("store: seed empty blob: %w", err)
	}

	return s, nil
}

// checkVersion enforces the "version newer than installed" failure mode
// (spec.md §4.1 "Failures"). This module only ever writes one version
// string, so any mismatch is treated as newer/foreign and rejected
// unless the caller opts out.
func checkVersion(raw string, allowNewer bool) error {
	line := strings.TrimSpace(raw)
	want := fmt.Sprintf("%s %s", packageName, packageVersion)
	if line != want {
		if allowNewer {
			return nil
		}
		return fmt.Errorf("%w: conf/VERSION %q does not match %q", errs.ErrConfigMismatch, line, want)
	}
	return nil
}

// Algorithm returns the store's configured digest algorithm name.
func (s *Store) Algorithm() string { return s.algorithm }

// HashOfNull returns the cached digest of the empty blob.
func (s *Store) HashOfNull() digest.Digest { return s.hashOfNull }

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) path(d digest.Digest) (string, error) {
	return blobPath(s.root, string(d), s.fanout)
}

// Get returns a reader for the blob at digest d, or (nil, nil) if
// absent (spec.md §4.1).
func (s *Store) Get(d digest.Digest) (*FileHandle, error) {
	p, err := s.path(d)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", errs.ErrIO, p, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", errs.ErrIO, p, err)
	}
	return &FileHandle{f: f, digest: d, size: info.Size()}, nil
}

// Has reports whether a blob with the given digest is present, without
// opening it.
func (s *Store) Has(d digest.Digest) (bool, error) {
	p, err := s.path(d)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %v", errs.ErrIO, p, err)
}

// PutOptions configures a Put call (spec.md §4.1).
type PutOptions struct {
	// DryRun computes the digest but does not persist the blob.
	DryRun bool

	// KnownHash asserts the digest the caller believes the content
	// hashes to; the store may skip hashing unless VerifyHash is set.
	KnownHash digest.Digest

	// VerifyHash forces hashing even when KnownHash is set.
	VerifyHash bool

	// HardlinkSource is a local filesystem path whose inode may be
	// reused instead of copying bytes.
	HardlinkSource string

	// Stats accumulates insert counters; may be nil.
	Stats *PutStats
}

// Put stores content and returns its digest (spec.md §4.1's key
// algorithm). data may be nil (the empty blob). Exactly one of data or
// PutOptions.HardlinkSource-backed content is consulted; Put reads all
// of data into the destination via a temp-file-then-rename sequence so
// a Put never partially succeeds.
func (s *Store) Put(data []byte, opts PutOptions) (digest.Digest, error) {
	return s.put(nil, data, opts)
}

// PutReader is like Put but streams from r instead of an in-memory
// buffer, hashing concurrently with the copy (spec.md §4.1 step 3).
func (s *Store) PutReader(r io.Reader, opts PutOptions) (digest.Digest, error) {
	return s.put(r, nil, opts)
}

// PutFile stores the content of an existing file, using it as an
// implicit hardlink source when no explicit one was given.
func (s *Store) PutFile(path string, opts PutOptions) (digest.Digest, error) {
	if opts.HardlinkSource == "" {
		opts.HardlinkSource = path
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", errs.ErrIO, path, err)
	}
	defer f.Close()
	return s.put(f, nil, opts)
}

func (s *Store) put(r io.Reader, data []byte, opts PutOptions) (digest.Digest, error) {
	// Step 1: known_hash + destination already exists -> dedup.
	if opts.KnownHash != "" && !opts.VerifyHash {
		if ok, err := s.Has(opts.KnownHash); err != nil {
			return "", err
		} else if ok {
			return opts.KnownHash, nil
		}
	}

	// Step 2: known_hash + hardlink_source -> try link, retry once on
	// missing fanout dir.
	if opts.KnownHash != "" && !opts.VerifyHash && opts.HardlinkSource != "" {
		dest, err := s.path(opts.KnownHash)
		if err != nil {
			return "", err
		}
		if opts.DryRun {
			return opts.KnownHash, nil
		}
		if err := linkWithRetry(opts.HardlinkSource, dest); err != nil {
			if !os.IsExist(err) {
				return "", fmt.Errorf("%w: hardlink %s: %v", errs.ErrIO, dest, err)
			}
		} else {
			opts.Stats.recordNew(string(opts.KnownHash))
			log.WithFields(log.Fields{"digest": opts.KnownHash, "source": opts.HardlinkSource}).Debug("store: hardlinked new blob")
		}
		return opts.KnownHash, nil
	}

	// Step 3: write to a unique temp file, hashing as we go.
	tmpName := "tmp-" + uuid.NewString()
	tmpPath := filepath.Join(s.root, tmpName)

	h, err := digest.New(s.algorithm)
	if err != nil {
		return "", err
	}

	wroteNew := false
	var finalDigest digest.Digest

	linked := false
	if opts.HardlinkSource != "" && data == nil {
		// Hardlink path with unknown hash: link into a sibling temp path,
		// then hash the result without copying bytes. If the link fails
		// and a reader was given, fall back to copying from the reader.
		err := linkWithRetry(opts.HardlinkSource, tmpPath)
		if err != nil && r == nil {
			return "", fmt.Errorf("%w: hardlink to temp: %v", errs.ErrIO, err)
		}
		linked = err == nil
	}
	if linked {
		defer os.Remove(tmpPath)
		f, err := os.Open(tmpPath)
		if err != nil {
			return "", fmt.Errorf("%w: open temp: %v", errs.ErrIO, err)
		}
		if _, err := io.Copy(h, f); err != nil {
			f.Close()
			return "", fmt.Errorf("%w: hash temp: %v", errs.ErrIO, err)
		}
		f.Close()
		finalDigest = digest.FromHash(h)
		wroteNew = true
	} else {
		tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return "", fmt.Errorf("%w: create temp: %v", errs.ErrIO, err)
		}
		defer os.Remove(tmpPath)

		w := io.MultiWriter(tmp, h)
		if data != nil {
			if _, err := w.Write(data); err != nil {
				tmp.Close()
				return "", fmt.Errorf("%w: write temp: %v", errs.ErrIO, err)
			}
		} else if r != nil {
			buf := make([]byte, defaultCopyChunk)
			if _, err := io.CopyBuffer(w, r, buf); err != nil {
				tmp.Close()
				return "", fmt.Errorf("%w: copy to temp: %v", errs.ErrIO, err)
			}
		}
		if err := tmp.Close(); err != nil {
			return "", fmt.Errorf("%w: close temp: %v", errs.ErrIO, err)
		}
		finalDigest = digest.FromHash(h)
		wroteNew = true
	}

	if opts.KnownHash != "" && opts.VerifyHash && finalDigest != opts.KnownHash {
		return "", fmt.Errorf("%w: computed digest %s does not match known hash %s", errs.ErrCorruptStore, finalDigest, opts.KnownHash)
	}

	if opts.DryRun {
		return finalDigest, nil
	}

	// Step 4: rename into place, creating fanout dirs and retrying once.
	dest, err := s.path(finalDigest)
	if err != nil {
		return "", err
	}
	if ok, err := s.Has(finalDigest); err != nil {
		return "", err
	} else if ok {
		// Step 5: destination exists, temp file is deduplicated (removed
		// by the deferred os.Remove above).
		return finalDigest, nil
	}

	if err := renameWithRetry(tmpPath, dest); err != nil {
		return "", fmt.Errorf("%w: rename into place: %v", errs.ErrIO, err)
	}

	if wroteNew {
		opts.Stats.recordNew(string(finalDigest))
		log.WithFields(log.Fields{"digest": finalDigest, "size": len(data)}).Debug("store: wrote new blob")
	}

	return finalDigest, nil
}

func linkWithRetry(source, dest string) error {
	err := os.Link(source, dest)
	if err != nil && os.IsNotExist(err) {
		if mkErr := os.MkdirAll(filepath.Dir(dest), 0o755); mkErr == nil {
			err = os.Link(source, dest)
		}
	}
	return err
}

func renameWithRetry(src, dest string) error {
	err := os.Rename(src, dest)
	if err != nil && os.IsNotExist(err) {
		if mkErr := os.MkdirAll(filepath.Dir(dest), 0o755); mkErr == nil {
			err = os.Rename(src, dest)
		}
	}
	return err
}

// Validate re-hashes the stored blob at d and compares against d
// (spec.md §4.1, §9: any read/decode failure is treated as invalid,
// not propagated as an I/O error).
type ValidateResult int

const (
	Valid ValidateResult = iota
	Invalid
	Missing
)

func (r ValidateResult) String() string {
	switch r {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

func (s *Store) Validate(d digest.Digest) ValidateResult {
	h, err := s.Get(d)
	if err != nil {
		return Invalid
	}
	if h == nil {
		return Missing
	}
	defer h.Close()

	hasher, err := digest.New(s.algorithm)
	if err != nil {
		return Invalid
	}
	if _, err := io.Copy(hasher, h); err != nil {
		return Invalid
	}
	if digest.FromHash(hasher) != d {
		return Invalid
	}
	return Valid
}

// Iterate returns all stored digests by walking the fanout directory
// tree. The walk runs to completion before Iterate returns (the result
// is a slice, not a lazy sequence); each call walks the tree again.
func (s *Store) Iterate() ([]digest.Digest, error) {
	var out []digest.Digest
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		if strings.HasPrefix(rel, "conf") || strings.HasPrefix(filepath.Base(rel), "tmp-") {
			return nil
		}
		hex := strings.ReplaceAll(rel, string(filepath.Separator), "")
		out = append(out, digest.Digest(hex))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: iterate: %v", errs.ErrIO, err)
	}
	return out, nil
}

// Delete removes the blob at d. This is explicitly dangerous and
// out-of-band: no reference counting is maintained anywhere in this
// module, so deleting a blob that is still referenced by a live DirEnt
// silently breaks resolution of that subtree (spec.md §3 "Lifecycles").
func (s *Store) Delete(d digest.Digest) error {
	p, err := s.path(d)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errs.ErrMissingBlob, d)
		}
		return fmt.Errorf("%w: delete %s: %v", errs.ErrIO, d, err)
	}
	return nil
}
