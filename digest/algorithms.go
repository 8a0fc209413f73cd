// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package digest

import (
	"crypto/sha1"  //nolint:gosec // sha1 is a supported, opt-in legacy algorithm (spec.md §3)
	"crypto/sha256"
	"hash"

	"github.com/zeebo/blake3"
)

func init() {
	Register("sha1", func() hash.Hash { return sha1.New() })
	Register("sha256", func() hash.Hash { return sha256.New() })
	// blake3 rounds out the pluggable set with the hash algorithm the
	// teacher package used directly for its Merkle tree; here it is one
	// interchangeable Algorithm among several rather than hard-wired.
	Register("blake3", func() hash.Hash { return blake3.New() })
}

// HashOfNull returns the digest of the empty byte string for the named
// algorithm. Every store caches this value as hash_of_null (spec.md §3).
func HashOfNull(name string) (Digest, error) {
	return Sum(name, nil)
}
