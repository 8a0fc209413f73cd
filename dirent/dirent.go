// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package dirent defines the immutable directory-entry record (spec.md
// §3) shared by the codec, cache, and CAS-FS layers. A DirEnt describes
// one filesystem entry: its name, type, content reference, and
// metadata. Entries are immutable; "updates" produce new DirEnts via
// Clone.
package dirent

import "github.com/nrdvana/casfs/digest"

// Type is the entry's filesystem kind, required at storage time.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeFile
	TypeDir
	TypeSymlink
	TypeBlockDev
	TypeCharDev
	TypePipe
	TypeSocket
)

// Code returns the single ASCII letter the unix codec uses for this
// type (spec.md §4.2.2): f d l c b p s.
func (t Type) Code() byte {
	switch t {
	case TypeFile:
		return 'f'
	case TypeDir:
		return 'd'
	case TypeSymlink:
		return 'l'
	case TypeBlockDev:
		return 'b'
	case TypeCharDev:
		return 'c'
	case TypePipe:
		return 'p'
	case TypeSocket:
		return 's'
	default:
		return 0
	}
}

// TypeFromCode reverses Type.Code, returning TypeUnknown for anything
// not one of the seven recognized letters.
func TypeFromCode(c byte) Type {
	switch c {
	case 'f':
		return TypeFile
	case 'd':
		return TypeDir
	case 'l':
		return TypeSymlink
	case 'b':
		return TypeBlockDev
	case 'c':
		return TypeCharDev
	case 'p':
		return TypePipe
	case 's':
		return TypeSocket
	default:
		return TypeUnknown
	}
}

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "dir"
	case TypeSymlink:
		return "symlink"
	case TypeBlockDev:
		return "blockdev"
	case TypeCharDev:
		return "chardev"
	case TypePipe:
		return "pipe"
	case TypeSocket:
		return "socket"
	default:
		return "unknown"
	}
}

// Ref is the entry's content reference. For file/dir it is a digest hex
// string; for symlink, the slash-separated target; for block/char
// devices, "major,minor". It is wrapped the same way a Name is because
// the universal codec allows it to carry non-UTF-8 bytes too.
type Ref = Name

// DirEnt is one immutable directory entry. Zero value of each optional
// field means "not present" (distinguished from present-but-zero by the
// Has* predicates below where the distinction matters).
type DirEnt struct {
	Name Name
	Type Type
	Ref  Ref

	HasRef  bool
	HasSize bool
	Size    uint64

	CreateTS   int64
	ModifyTS   int64
	AccessTS   int64
	MetadataTS int64
	HasTS      bool // at least one timestamp field is meaningful

	UID, GID           uint32
	User, Group        string
	Mode               uint32
	Dev                uint64
	Inode              uint64
	NLink              uint32
	BlockSize          uint32
	BlockCount         uint64
	HasUnixMeta        bool

	// Extra carries arbitrary key/value pairs the universal codec
	// preserves verbatim, including fields unknown to this package.
	Extra map[string]any
}

// New builds a minimal DirEnt of the given type and name.
func New(name Name, typ Type) DirEnt {
	return DirEnt{Name: name, Type: typ}
}

// WithRef returns a copy of e with Ref set.
func (e DirEnt) WithRef(ref Ref) DirEnt {
	e.Ref = ref
	e.HasRef = true
	return e
}

// WithDigestRef sets Ref from a digest.Digest (the common case for
// file/dir entries).
func (e DirEnt) WithDigestRef(d digest.Digest) DirEnt {
	return e.WithRef(NameFromString(string(d)))
}

// WithSize returns a copy of e with Size set.
func (e DirEnt) WithSize(n uint64) DirEnt {
	e.Size = n
	e.HasSize = true
	return e
}

// Clone returns a shallow copy of e; DirEnts are immutable, so every
// mutation in this package goes through Clone plus field assignment
// rather than mutating a shared value in place.
func (e DirEnt) Clone() DirEnt {
	cp := e
	if e.Extra != nil {
		cp.Extra = make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			cp.Extra[k] = v
		}
	}
	return cp
}

// IsDir reports whether the entry is a directory.
func (e DirEnt) IsDir() bool { return e.Type == TypeDir }

// RefDigest returns Ref as a digest.Digest, valid only when HasRef and
// the entry is a file or dir (the two types whose Ref is a digest).
func (e DirEnt) RefDigest() digest.Digest {
	if !e.HasRef {
		return ""
	}
	return digest.Digest(e.Ref.String())
}
