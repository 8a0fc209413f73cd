// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/errs"
)

// Codec serializes and deserializes an ordered set of DirEnts plus
// metadata to and from a blob body (everything after the common framing
// header). Implementations must sort entries by name before encoding
// (spec.md §4.2, §8 property 3).
type Codec interface {
	// Name is the format-name used in the framing header.
	Name() string
	// EncodeBody writes just the body (the framing header is added by
	// Encode).
	EncodeBody(dir dirent.Directory) ([]byte, error)
	// DecodeBody parses a body previously produced by EncodeBody.
	DecodeBody(body []byte) (dirent.Directory, error)
}

var (
	mu       sync.RWMutex
	registry = map[string]Codec{}
)

// Register adds a codec to the process-wide registry, keyed by its
// Name(). The registry is a read-only table after program
// initialization (spec.md §9, "Global codec registry").
func Register(c Codec) {
	mu.Lock()
	defer mu.Unlock()
	registry[c.Name()] = c
}

// RegisterAlias makes an additional format-name resolve to an already-
// registered codec at decode time, without changing the name that
// codec uses when it encodes (spec.md §4.2.3: "minimal" or "").
func RegisterAlias(alias string, c Codec) {
	mu.Lock()
	defer mu.Unlock()
	registry[alias] = c
}

// Lookup returns the codec registered under name, if any.
func Lookup(name string) (Codec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[name]
	return c, ok
}

// Encode frames and encodes dir with the named codec.
func Encode(name string, dir dirent.Directory) ([]byte, error) {
	c, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownFormat, name)
	}
	body, err := c.EncodeBody(dir)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	if err := writeFraming(buf, c.Name()); err != nil {
		return nil, err
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// Load peeks a blob's framing header, looks up the matching codec, and
// decodes the body (spec.md §4.2 "Codec registry").
func Load(blob []byte) (name string, dir dirent.Directory, err error) {
	formatName, body, err := readFraming(blob)
	if err != nil {
		return "", dirent.Directory{}, err
	}
	c, ok := Lookup(formatName)
	if !ok {
		return "", dirent.Directory{}, fmt.Errorf("%w: %q", errs.ErrUnknownFormat, formatName)
	}
	dir, err = c.DecodeBody(body)
	if err != nil {
		return "", dirent.Directory{}, err
	}
	return formatName, dir, nil
}
