// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/errs"
)

func init() {
	Register(&UniversalCodec{})
}

// UniversalCodec preserves arbitrary DirEnt fields, including
// codec-unknown keys, as canonical JSON (spec.md §4.2.1). Go's
// encoding/json already emits map keys in sorted order, which is the
// same technique the pack's own JSON-based formats (OCI descriptors,
// distribution's manifest schemas) rely on for deterministic output —
// no third-party JSON library is needed.
type UniversalCodec struct{}

func (UniversalCodec) Name() string { return "universal" }

func (UniversalCodec) EncodeBody(dir dirent.Directory) ([]byte, error) {
	metaJSON, err := json.Marshal(metadataToJSON(dir.Metadata))
	if err != nil {
		return nil, fmt.Errorf("%w: encode metadata: %v", errs.ErrEncoding, err)
	}

	buf := &bytes.Buffer{}
	buf.WriteString(`{"metadata": `)
	buf.Write(metaJSON)
	buf.WriteString(`, "entries": [`)

	sorted := dir.Sorted()
	for i, e := range sorted {
		entryJSON, err := json.Marshal(entryToJSON(e))
		if err != nil {
			return nil, fmt.Errorf("%w: encode entry %q: %v", errs.ErrEncoding, e.Name.String(), err)
		}
		buf.WriteByte('\n')
		buf.Write(entryJSON)
		if i < len(sorted)-1 {
			buf.WriteByte(',')
		}
	}
	if len(sorted) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

func (UniversalCodec) DecodeBody(body []byte) (dirent.Directory, error) {
	var raw struct {
		Metadata json.RawMessage   `json:"metadata"`
		Entries  []json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return dirent.Directory{}, fmt.Errorf("%w: decode universal body: %v", errs.ErrCorruptStore, err)
	}

	meta, err := jsonToMetadata(raw.Metadata)
	if err != nil {
		return dirent.Directory{}, err
	}

	entries := make([]dirent.DirEnt, 0, len(raw.Entries))
	for _, rawEntry := range raw.Entries {
		var m map[string]any
		if err := json.Unmarshal(rawEntry, &m); err != nil {
			return dirent.Directory{}, fmt.Errorf("%w: decode entry: %v", errs.ErrCorruptStore, err)
		}
		e, err := entryFromJSON(m)
		if err != nil {
			return dirent.Directory{}, err
		}
		entries = append(entries, e)
	}

	return dirent.Directory{Metadata: meta, Entries: entries}, nil
}

// metadataToJSON converts nil to an empty object and wraps it with
// encodeValueForJSON so top-level maps key-sort deterministically.
func metadataToJSON(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return encodeValueForJSON(m)
}

func jsonToMetadata(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %v", errs.ErrCorruptStore, err)
	}
	return decodeValueFromJSON(m).(map[string]any), nil
}

// entryToJSON renders a DirEnt as the map that json.Marshal turns into
// canonical (key-sorted) JSON.
func entryToJSON(e dirent.DirEnt) map[string]any {
	m := map[string]any{}
	m["name"] = nameToJSON(e.Name)
	m["type"] = e.Type.String()
	if e.HasRef {
		m["ref"] = nameToJSON(e.Ref)
	}
	if e.HasSize {
		m["size"] = e.Size
	}
	if e.HasTS {
		if e.CreateTS != 0 {
			m["create_ts"] = e.CreateTS
		}
		if e.ModifyTS != 0 {
			m["modify_ts"] = e.ModifyTS
		}
		if e.AccessTS != 0 {
			m["access_ts"] = e.AccessTS
		}
		if e.MetadataTS != 0 {
			m["metadata_ts"] = e.MetadataTS
		}
	}
	if e.HasUnixMeta {
		m["uid"] = e.UID
		m["gid"] = e.GID
		if e.User != "" {
			m["user"] = e.User
		}
		if e.Group != "" {
			m["group"] = e.Group
		}
		m["mode"] = e.Mode
		m["dev"] = e.Dev
		m["inode"] = e.Inode
		m["nlink"] = e.NLink
		m["blocksize"] = e.BlockSize
		m["blockcount"] = e.BlockCount
	}
	for k, v := range e.Extra {
		m[k] = v
	}
	return m
}

func entryFromJSON(m map[string]any) (dirent.DirEnt, error) {
	name, err := nameFromJSON(m["name"])
	if err != nil {
		return dirent.DirEnt{}, err
	}
	typ := dirent.TypeFromCode(0)
	if ts, ok := m["type"].(string); ok {
		typ = typeFromString(ts)
	}
	e := dirent.New(name, typ)

	if rawRef, ok := m["ref"]; ok {
		ref, err := nameFromJSON(rawRef)
		if err != nil {
			return dirent.DirEnt{}, err
		}
		e = e.WithRef(ref)
	}
	if v, ok := m["size"]; ok {
		e = e.WithSize(uint64(toFloat(v)))
	}

	knownKeys := map[string]bool{"name": true, "type": true, "ref": true, "size": true}

	if v, ok := m["create_ts"]; ok {
		e.CreateTS = int64(toFloat(v))
		e.HasTS = true
		knownKeys["create_ts"] = true
	}
	if v, ok := m["modify_ts"]; ok {
		e.ModifyTS = int64(toFloat(v))
		e.HasTS = true
		knownKeys["modify_ts"] = true
	}
	if v, ok := m["access_ts"]; ok {
		e.AccessTS = int64(toFloat(v))
		e.HasTS = true
		knownKeys["access_ts"] = true
	}
	if v, ok := m["metadata_ts"]; ok {
		e.MetadataTS = int64(toFloat(v))
		e.HasTS = true
		knownKeys["metadata_ts"] = true
	}

	unixKeys := []string{"uid", "gid", "user", "group", "mode", "dev", "inode", "nlink", "blocksize", "blockcount"}
	anyUnix := false
	for _, k := range unixKeys {
		if _, ok := m[k]; ok {
			anyUnix = true
			knownKeys[k] = true
		}
	}
	if anyUnix {
		e.HasUnixMeta = true
		if v, ok := m["uid"]; ok {
			e.UID = uint32(toFloat(v))
		}
		if v, ok := m["gid"]; ok {
			e.GID = uint32(toFloat(v))
		}
		if v, ok := m["user"].(string); ok {
			e.User = v
		}
		if v, ok := m["group"].(string); ok {
			e.Group = v
		}
		if v, ok := m["mode"]; ok {
			e.Mode = uint32(toFloat(v))
		}
		if v, ok := m["dev"]; ok {
			e.Dev = uint64(toFloat(v))
		}
		if v, ok := m["inode"]; ok {
			e.Inode = uint64(toFloat(v))
		}
		if v, ok := m["nlink"]; ok {
			e.NLink = uint32(toFloat(v))
		}
		if v, ok := m["blocksize"]; ok {
			e.BlockSize = uint32(toFloat(v))
		}
		if v, ok := m["blockcount"]; ok {
			e.BlockCount = uint64(toFloat(v))
		}
	}

	for k, v := range m {
		if !knownKeys[k] {
			if e.Extra == nil {
				e.Extra = map[string]any{}
			}
			e.Extra[k] = v
		}
	}

	return e, nil
}

func toFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func typeFromString(s string) dirent.Type {
	switch s {
	case "file":
		return dirent.TypeFile
	case "dir":
		return dirent.TypeDir
	case "symlink":
		return dirent.TypeSymlink
	case "blockdev":
		return dirent.TypeBlockDev
	case "chardev":
		return dirent.TypeCharDev
	case "pipe":
		return dirent.TypePipe
	case "socket":
		return dirent.TypeSocket
	default:
		return dirent.TypeUnknown
	}
}

// nameToJSON renders a Name either as a plain string or, when it is not
// valid UTF-8, as the {"*InvalidUTF8*": "..."} wrapper (spec.md
// §4.2.1).
func nameToJSON(n dirent.Name) any {
	if n.Valid() {
		return n.String()
	}
	return map[string]any{invalidUTF8Key: encodeOpaqueString(n.Bytes())}
}

func nameFromJSON(v any) (dirent.Name, error) {
	switch val := v.(type) {
	case string:
		return dirent.NameFromString(val), nil
	case map[string]any:
		wrapped, ok := val[invalidUTF8Key]
		if !ok {
			return dirent.Name{}, fmt.Errorf("%w: object name missing %s", errs.ErrCorruptStore, invalidUTF8Key)
		}
		s, ok := wrapped.(string)
		if !ok {
			return dirent.Name{}, fmt.Errorf("%w: %s value is not a string", errs.ErrCorruptStore, invalidUTF8Key)
		}
		raw, err := decodeOpaqueString(s)
		if err != nil {
			return dirent.Name{}, fmt.Errorf("%w: %v", errs.ErrCorruptStore, err)
		}
		return dirent.NewName(raw), nil
	case nil:
		return dirent.Name{}, nil
	default:
		return dirent.Name{}, fmt.Errorf("%w: unexpected name encoding %T", errs.ErrCorruptStore, v)
	}
}

// encodeValueForJSON and decodeValueFromJSON let metadata values that
// are themselves opaque byte wrappers roundtrip; most metadata is plain
// JSON-compatible data and passes through unchanged.
func encodeValueForJSON(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = encodeValueForJSON(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = encodeValueForJSON(vv)
		}
		return out
	default:
		return val
	}
}

func decodeValueFromJSON(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = decodeValueFromJSON(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = decodeValueFromJSON(vv)
		}
		return out
	default:
		return val
	}
}
