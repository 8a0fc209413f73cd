// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package errs collects the error kinds shared across casfs's
// subsystems (spec.md §7). Each kind is a distinct sentinel or type so
// callers can branch with errors.Is/errors.As, the same idiom the
// teacher package uses for its ServerError/IsServerError pair.
package errs

import "errors"

// Sentinel error kinds that carry no extra data.
var (
	// ErrIO wraps an underlying filesystem I/O failure.
	ErrIO = errors.New("casfs: io error")

	// ErrCorruptStore signals malformed framing, bad magic, missing
	// required config, or a digest mismatch under validate.
	ErrCorruptStore = errors.New("casfs: corrupt store")

	// ErrUnknownFormat signals a directory blob referencing an
	// unregistered codec.
	ErrUnknownFormat = errors.New("casfs: unknown directory format")

	// ErrEncoding signals a DirEnt field exceeding a codec's limits.
	ErrEncoding = errors.New("casfs: encoding error")

	// ErrMissingBlob signals a referenced digest absent from the store.
	ErrMissingBlob = errors.New("casfs: missing blob")

	// ErrNoSuchEntry signals a missing path component during resolution.
	ErrNoSuchEntry = errors.New("casfs: no such entry")

	// ErrNotADirectory signals descent into a non-directory without the
	// mkdir flag.
	ErrNotADirectory = errors.New("casfs: not a directory")

	// ErrNameConflict signals two entries with the same name at commit
	// time.
	ErrNameConflict = errors.New("casfs: name conflict")

	// ErrConfigMismatch signals a store opened with the wrong digest
	// algorithm or an incompatible version.
	ErrConfigMismatch = errors.New("casfs: config mismatch")

	// ErrInvalidSymlink signals a symlink whose target is empty or
	// unresolvable.
	ErrInvalidSymlink = errors.New("casfs: invalid symlink")
)
