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
	c := &MinimalCodec{}
	Register(c)
	RegisterAlias("minimal", c)
}

// MinimalCodec is the smallest possible encoding, preserving only
// {type, name, ref} (spec.md §4.2.3). It encodes under the empty
// format name (matching spec.md's worked example) and is also
// reachable at decode time under the alias "minimal".
type MinimalCodec struct{}

func (MinimalCodec) Name() string { return "" }

func (MinimalCodec) EncodeBody(dir dirent.Directory) ([]byte, error) {
	buf := &bytes.Buffer{}
	if len(dir.Metadata) > 0 {
		metaJSON, err := json.Marshal(dir.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: encode metadata: %v", errs.ErrEncoding, err)
		}
		buf.Write(metaJSON)
	}
	buf.WriteByte(0)

	for _, e := range dir.Sorted() {
		nameBytes := e.Name.Bytes()
		refBytes := []byte{}
		if e.HasRef {
			refBytes = e.Ref.Bytes()
		}
		if len(nameBytes) > 255 {
			return nil, fmt.Errorf("%w: name %q exceeds 255 bytes", errs.ErrEncoding, e.Name.String())
		}
		if len(refBytes) > 255 {
			return nil, fmt.Errorf("%w: ref exceeds 255 bytes", errs.ErrEncoding)
		}
		buf.WriteByte(byte(len(nameBytes)))
		buf.WriteByte(byte(len(refBytes)))
		buf.WriteByte(e.Type.Code())
		buf.Write(nameBytes)
		buf.WriteByte(0)
		buf.Write(refBytes)
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

func (MinimalCodec) DecodeBody(body []byte) (dirent.Directory, error) {
	nulIdx := bytes.IndexByte(body, 0)
	if nulIdx < 0 {
		return dirent.Directory{}, fmt.Errorf("%w: missing metadata terminator", errs.ErrCorruptStore)
	}
	var meta map[string]any
	if nulIdx > 0 {
		if err := json.Unmarshal(body[:nulIdx], &meta); err != nil {
			return dirent.Directory{}, fmt.Errorf("%w: decode metadata: %v", errs.ErrCorruptStore, err)
		}
	}

	rest := body[nulIdx+1:]
	var entries []dirent.DirEnt
	for len(rest) > 0 {
		if len(rest) < 3 {
			return dirent.Directory{}, fmt.Errorf("%w: truncated entry header", errs.ErrCorruptStore)
		}
		nameLen, refLen, typeCode := int(rest[0]), int(rest[1]), rest[2]
		rest = rest[3:]

		if len(rest) < nameLen+1 {
			return dirent.Directory{}, fmt.Errorf("%w: truncated entry name", errs.ErrCorruptStore)
		}
		name := rest[:nameLen]
		if rest[nameLen] != 0 {
			return dirent.Directory{}, fmt.Errorf("%w: missing NUL after name", errs.ErrCorruptStore)
		}
		rest = rest[nameLen+1:]

		if len(rest) < refLen+1 {
			return dirent.Directory{}, fmt.Errorf("%w: truncated entry ref", errs.ErrCorruptStore)
		}
		ref := rest[:refLen]
		if rest[refLen] != 0 {
			return dirent.Directory{}, fmt.Errorf("%w: missing NUL after ref", errs.ErrCorruptStore)
		}
		rest = rest[refLen+1:]

		e := dirent.New(dirent.NewName(name), dirent.TypeFromCode(typeCode))
		if refLen > 0 {
			e = e.WithRef(dirent.NewName(ref))
		}
		entries = append(entries, e)
	}

	return dirent.Directory{Metadata: meta, Entries: entries}, nil
}
