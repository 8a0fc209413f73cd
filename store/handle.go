// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"io"
	"os"

	"github.com/nrdvana/casfs/digest"
)

// FileHandle is a reader bound to a stored blob, supporting sequential
// and random access (spec.md §3 "File Handle").
type FileHandle struct {
	f      *os.File
	digest digest.Digest
	size   int64
}

// Digest returns the blob's digest.
func (h *FileHandle) Digest() digest.Digest { return h.digest }

// Size returns the blob's length in bytes.
func (h *FileHandle) Size() int64 { return h.size }

// Read implements io.Reader.
func (h *FileHandle) Read(p []byte) (int, error) { return h.f.Read(p) }

// ReadAt implements io.ReaderAt for random access.
func (h *FileHandle) ReadAt(p []byte, off int64) (int, error) { return h.f.ReadAt(p, off) }

// Seek implements io.Seeker.
func (h *FileHandle) Seek(offset int64, whence int) (int64, error) { return h.f.Seek(offset, whence) }

// Close releases the underlying file descriptor. Callers must close
// every handle returned by Get on all exit paths (spec.md §5).
func (h *FileHandle) Close() error { return h.f.Close() }

// ReadAll drains the handle to a byte slice.
func (h *FileHandle) ReadAll() ([]byte, error) {
	return io.ReadAll(h.f)
}

var _ io.ReadSeekCloser = (*FileHandle)(nil)
