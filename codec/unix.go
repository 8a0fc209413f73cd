// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/errs"
)

func init() {
	Register(&UnixCodec{})
}

// UnixCodec is a compact binary encoding of unix stat() fields
// (spec.md §4.2.2).
type UnixCodec struct{}

func (UnixCodec) Name() string { return "unix" }

// unixIntAttrOrder is the fixed field order of the colon-separated
// int_attrs segment (spec.md §4.2.2).
var unixIntAttrOrder = []string{
	"size", "modify_ts", "uid", "gid", "mode", "metadata_ts",
	"access_ts", "nlink", "dev", "inode", "blocksize", "blockcount",
}

func (UnixCodec) EncodeBody(dir dirent.Directory) ([]byte, error) {
	metaJSON, err := json.Marshal(canonicalUnixMetadata(dir.Metadata, dir.Entries))
	if err != nil {
		return nil, fmt.Errorf("%w: encode metadata: %v", errs.ErrEncoding, err)
	}

	buf := &bytes.Buffer{}
	var lenField [4]byte
	binary.BigEndian.PutUint32(lenField[:], uint32(len(metaJSON)))
	buf.Write(lenField[:])
	buf.Write(metaJSON)

	for _, e := range dir.Sorted() {
		nameBytes := []byte(e.Name.String())
		refBytes := []byte{}
		if e.HasRef {
			refBytes = []byte(e.Ref.String())
		}
		attrs := unixIntAttrs(e)

		if len(nameBytes) > 255 {
			return nil, fmt.Errorf("%w: name exceeds 255 bytes", errs.ErrEncoding)
		}
		if len(refBytes) > 255 {
			return nil, fmt.Errorf("%w: ref exceeds 255 bytes", errs.ErrEncoding)
		}
		if len(attrs) > 255 {
			return nil, fmt.Errorf("%w: int_attrs exceeds 255 bytes", errs.ErrEncoding)
		}

		buf.WriteByte(byte(len(nameBytes)))
		buf.WriteByte(byte(len(refBytes)))
		buf.WriteByte(byte(len(attrs)))
		buf.WriteByte(e.Type.Code())
		buf.Write(nameBytes)
		buf.WriteByte(0)
		buf.Write(refBytes)
		buf.WriteByte(0)
		buf.Write(attrs)
	}
	return buf.Bytes(), nil
}

// unixIntAttrs renders the fixed-order, colon-separated int_attrs
// segment, eliding trailing empty fields.
func unixIntAttrs(e dirent.DirEnt) []byte {
	values := make([]string, len(unixIntAttrOrder))
	set := make([]bool, len(unixIntAttrOrder))

	assign := func(field string, v int64, present bool) {
		for i, name := range unixIntAttrOrder {
			if name == field {
				if present {
					values[i] = strconv.FormatInt(v, 10)
					set[i] = true
				}
				return
			}
		}
	}

	assign("size", int64(e.Size), e.HasSize)
	assign("modify_ts", e.ModifyTS, e.HasTS && e.ModifyTS != 0)
	assign("metadata_ts", e.MetadataTS, e.HasTS && e.MetadataTS != 0)
	assign("access_ts", e.AccessTS, e.HasTS && e.AccessTS != 0)
	if e.HasUnixMeta {
		assign("uid", int64(e.UID), true)
		assign("gid", int64(e.GID), true)
		assign("mode", int64(e.Mode), true)
		assign("nlink", int64(e.NLink), true)
		assign("dev", int64(e.Dev), true)
		assign("inode", int64(e.Inode), true)
		assign("blocksize", int64(e.BlockSize), true)
		assign("blockcount", int64(e.BlockCount), true)
	}

	// Trailing empty fields are elided: find the last set index.
	last := -1
	for i, ok := range set {
		if ok {
			last = i
		}
	}
	fields := make([]string, last+1)
	for i := 0; i <= last; i++ {
		fields[i] = values[i]
	}
	return []byte(strings.Join(fields, ":"))
}

func (UnixCodec) DecodeBody(body []byte) (dirent.Directory, error) {
	if len(body) < 4 {
		return dirent.Directory{}, fmt.Errorf("%w: truncated metadata length", errs.ErrCorruptStore)
	}
	metaLen := binary.BigEndian.Uint32(body[:4])
	rest := body[4:]
	if uint32(len(rest)) < metaLen {
		return dirent.Directory{}, fmt.Errorf("%w: truncated metadata", errs.ErrCorruptStore)
	}
	var meta map[string]any
	if metaLen > 0 {
		if err := json.Unmarshal(rest[:metaLen], &meta); err != nil {
			return dirent.Directory{}, fmt.Errorf("%w: decode metadata: %v", errs.ErrCorruptStore, err)
		}
	}
	rest = rest[metaLen:]
	umap, _ := meta["umap"].(map[string]any)
	gmap, _ := meta["gmap"].(map[string]any)

	var entries []dirent.DirEnt
	for len(rest) > 0 {
		if len(rest) < 4 {
			return dirent.Directory{}, fmt.Errorf("%w: truncated entry header", errs.ErrCorruptStore)
		}
		nameLen, refLen, attrsLen, typeCode := int(rest[0]), int(rest[1]), int(rest[2]), rest[3]
		rest = rest[4:]

		if len(rest) < nameLen+1 {
			return dirent.Directory{}, fmt.Errorf("%w: truncated name", errs.ErrCorruptStore)
		}
		name := rest[:nameLen]
		if rest[nameLen] != 0 {
			return dirent.Directory{}, fmt.Errorf("%w: missing NUL after name", errs.ErrCorruptStore)
		}
		rest = rest[nameLen+1:]

		if len(rest) < refLen+1 {
			return dirent.Directory{}, fmt.Errorf("%w: truncated ref", errs.ErrCorruptStore)
		}
		ref := rest[:refLen]
		if rest[refLen] != 0 {
			return dirent.Directory{}, fmt.Errorf("%w: missing NUL after ref", errs.ErrCorruptStore)
		}
		rest = rest[refLen+1:]

		if len(rest) < attrsLen {
			return dirent.Directory{}, fmt.Errorf("%w: truncated int_attrs", errs.ErrCorruptStore)
		}
		attrs := rest[:attrsLen]
		rest = rest[attrsLen:]

		e, err := unixEntryFromParts(name, ref, typeCode, attrs)
		if err != nil {
			return dirent.Directory{}, err
		}
		applyOwnerNames(&e, umap, gmap)
		entries = append(entries, e)
	}

	return dirent.Directory{Metadata: meta, Entries: entries}, nil
}

// applyOwnerNames fills in e.User/e.Group from the directory's umap/gmap
// tables (uid/gid, as decimal strings, -> owner name), mirroring what the
// universal codec stores per-entry (spec.md §4.2.2).
func applyOwnerNames(e *dirent.DirEnt, umap, gmap map[string]any) {
	if !e.HasUnixMeta {
		return
	}
	if umap != nil {
		if name, ok := umap[strconv.FormatUint(uint64(e.UID), 10)].(string); ok {
			e.User = name
		}
	}
	if gmap != nil {
		if name, ok := gmap[strconv.FormatUint(uint64(e.GID), 10)].(string); ok {
			e.Group = name
		}
	}
}

func unixEntryFromParts(name, ref []byte, typeCode byte, attrs []byte) (dirent.DirEnt, error) {
	e := dirent.New(dirent.NewName(name), dirent.TypeFromCode(typeCode))
	// A zero-length ref is treated as absent (spec.md §9's disambiguation
	// of the two historical revisions' behavior).
	if len(ref) > 0 {
		e = e.WithRef(dirent.NewName(ref))
	}

	if len(attrs) > 0 {
		fields := strings.Split(string(attrs), ":")
		get := func(i int) (int64, bool) {
			if i >= len(fields) || fields[i] == "" {
				return 0, false
			}
			v, err := strconv.ParseInt(fields[i], 10, 64)
			return v, err == nil
		}
		if v, ok := get(0); ok {
			e = e.WithSize(uint64(v))
		}
		if v, ok := get(1); ok {
			e.ModifyTS = v
			e.HasTS = true
		}
		if v, ok := get(2); ok {
			e.UID = uint32(v)
			e.HasUnixMeta = true
		}
		if v, ok := get(3); ok {
			e.GID = uint32(v)
			e.HasUnixMeta = true
		}
		if v, ok := get(4); ok {
			e.Mode = uint32(v)
			e.HasUnixMeta = true
		}
		if v, ok := get(5); ok {
			e.MetadataTS = v
			e.HasTS = true
		}
		if v, ok := get(6); ok {
			e.AccessTS = v
			e.HasTS = true
		}
		if v, ok := get(7); ok {
			e.NLink = uint32(v)
			e.HasUnixMeta = true
		}
		if v, ok := get(8); ok {
			e.Dev = uint64(v)
			e.HasUnixMeta = true
		}
		if v, ok := get(9); ok {
			e.Inode = uint64(v)
			e.HasUnixMeta = true
		}
		if v, ok := get(10); ok {
			e.BlockSize = uint32(v)
			e.HasUnixMeta = true
		}
		if v, ok := get(11); ok {
			e.BlockCount = uint64(v)
			e.HasUnixMeta = true
		}
	}

	return e, nil
}

// canonicalUnixMetadata builds the umap/gmap (uid->name, gid->name)
// tables from entries' per-entry User/Group fields and merges them into
// a copy of m, so the unix codec's directory-level metadata carries the
// same owner-name information the universal codec stores per-entry
// (spec.md §4.2.2).
func canonicalUnixMetadata(m map[string]any, entries []dirent.DirEnt) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}

	umap := map[string]string{}
	gmap := map[string]string{}
	for _, e := range entries {
		if !e.HasUnixMeta {
			continue
		}
		if e.User != "" {
			umap[strconv.FormatUint(uint64(e.UID), 10)] = e.User
		}
		if e.Group != "" {
			gmap[strconv.FormatUint(uint64(e.GID), 10)] = e.Group
		}
	}
	if len(umap) > 0 {
		out["umap"] = umap
	}
	if len(gmap) > 0 {
		out["gmap"] = gmap
	}
	return out
}
