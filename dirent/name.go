// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package dirent

import "unicode/utf8"

// Name holds a filename that may not be valid UTF-8. Valid names render
// as plain strings; invalid ones carry their raw bytes and are wrapped
// distinguishably when serialized (spec.md §3, §4.2.1, §9).
type Name struct {
	s       string
	raw     []byte
	isValid bool
}

// NewName wraps raw bytes as a Name, detecting whether they form valid
// UTF-8. Equality between a Name and a plain string is always defined on
// the underlying bytes, valid or not.
func NewName(raw []byte) Name {
	if utf8.Valid(raw) {
		return Name{s: string(raw), isValid: true}
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return Name{raw: cp, isValid: false}
}

// NameFromString wraps a string known to already be valid UTF-8.
func NameFromString(s string) Name {
	return Name{s: s, isValid: true}
}

// Valid reports whether the name is representable as valid UTF-8.
func (n Name) Valid() bool { return n.isValid }

// String returns the name as a string. For invalid names the string
// holds the raw bytes unchanged, so it is itself not valid UTF-8;
// callers that need valid UTF-8 text must check Valid first.
func (n Name) String() string {
	if n.isValid {
		return n.s
	}
	return string(n.raw)
}

// Bytes returns the exact raw bytes of the name.
func (n Name) Bytes() []byte {
	if n.isValid {
		return []byte(n.s)
	}
	out := make([]byte, len(n.raw))
	copy(out, n.raw)
	return out
}

// Equal compares two Names by underlying bytes.
func (n Name) Equal(o Name) bool {
	return string(n.Bytes()) == string(o.Bytes())
}

// Less orders two Names byte-lexicographically, the total order codecs
// use to sort directory entries (spec.md §3).
func (n Name) Less(o Name) bool {
	return string(n.Bytes()) < string(o.Bytes())
}

// Empty reports whether the name has zero length.
func (n Name) Empty() bool {
	if n.isValid {
		return n.s == ""
	}
	return len(n.raw) == 0
}
