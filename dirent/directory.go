// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package dirent

import "sort"

// Directory is the logical set (metadata, entries) a codec encodes and
// decodes (spec.md §3). Entries are unique by name; Sorted returns them
// in the canonical byte-lexicographic order codecs require on the wire.
type Directory struct {
	Metadata map[string]any
	Entries  []DirEnt
}

// Sorted returns entries ordered byte-lexicographically by name,
// without mutating d. Encoding a Directory always uses this order,
// which is why digest(encode(E)) is independent of E's original order
// (spec.md §8, property 3).
func (d Directory) Sorted() []DirEnt {
	out := make([]DirEnt, len(d.Entries))
	copy(out, d.Entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Name.Less(out[j].Name) })
	return out
}

// ByName returns the entry named n and whether it was found. Lookup is
// O(n); directories are expected to be decoded once and cached (see the
// dircache package) rather than linearly searched on every resolution
// step in hot paths — callers that resolve many names against one
// Directory should build their own index.
func (d Directory) ByName(n Name) (DirEnt, bool) {
	for _, e := range d.Entries {
		if e.Name.Equal(n) {
			return e, true
		}
	}
	return DirEnt{}, false
}

// Validate checks the name-uniqueness invariant (spec.md §3). When
// caseInsensitive is set, names that fold to the same casefolded form
// also conflict.
func (d Directory) Validate(caseInsensitive bool) error {
	seen := make(map[string]struct{}, len(d.Entries))
	for _, e := range d.Entries {
		key := e.Name.String()
		if caseInsensitive {
			key = foldCase(key)
		}
		if _, ok := seen[key]; ok {
			return &NameConflictError{Name: e.Name.String()}
		}
		seen[key] = struct{}{}
	}
	return nil
}

// NameConflictError reports a directory with two entries of the same
// name (spec.md §7, NameConflict).
type NameConflictError struct {
	Name string
}

func (e *NameConflictError) Error() string {
	return "dirent: duplicate name " + e.Name
}

// foldCase is a simple ASCII+common-case fold; full Unicode case
// folding is not required by spec.md, which only asks for "case-
// insensitive" FS behavior as an optional mode.
func foldCase(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}
