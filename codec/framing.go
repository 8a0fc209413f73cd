// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package codec implements the directory codec layer (spec.md §4.2):
// three pluggable binary encodings for directory listings — universal,
// unix, and minimal — sharing one framing format and a process-wide
// registry, grounded on the teacher's own msgpack encode/decode pair
// (encoding.go) generalized to three concrete wire formats instead of
// one.
package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/nrdvana/casfs/errs"
)

const magic = "CAS_Dir "

const maxFormatNameLen = 255

// writeFraming writes the common header:
//
//	"CAS_Dir " <format-name-length as 2 hex uppercase digits> " " <format-name> "\n"
func writeFraming(w io.Writer, formatName string) error {
	if len(formatName) > maxFormatNameLen {
		return fmt.Errorf("%w: format name %q exceeds %d bytes", errs.ErrEncoding, formatName, maxFormatNameLen)
	}
	_, err := fmt.Fprintf(w, "%s%02X %s\n", magic, len(formatName), formatName)
	return err
}

// readFraming parses the header from r, returning the format name and
// the remainder of the stream as body bytes.
func readFraming(data []byte) (formatName string, body []byte, err error) {
	r := bufio.NewReader(bytes.NewReader(data))

	prefix := make([]byte, len(magic))
	if _, err := io.ReadFull(r, prefix); err != nil {
		return "", nil, fmt.Errorf("%w: short header: %v", errs.ErrCorruptStore, err)
	}
	if string(prefix) != magic {
		return "", nil, fmt.Errorf("%w: bad magic %q", errs.ErrCorruptStore, prefix)
	}

	lenHex := make([]byte, 2)
	if _, err := io.ReadFull(r, lenHex); err != nil {
		return "", nil, fmt.Errorf("%w: short length field: %v", errs.ErrCorruptStore, err)
	}
	n64, err := strconv.ParseInt(string(lenHex), 16, 32)
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad length field %q", errs.ErrCorruptStore, lenHex)
	}
	n := int(n64)
	if n > maxFormatNameLen {
		return "", nil, fmt.Errorf("%w: format name length %d exceeds %d", errs.ErrCorruptStore, n, maxFormatNameLen)
	}

	sep := make([]byte, 1)
	if _, err := io.ReadFull(r, sep); err != nil || sep[0] != ' ' {
		return "", nil, fmt.Errorf("%w: malformed framing separator", errs.ErrCorruptStore)
	}

	nameBuf := make([]byte, n)
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return "", nil, fmt.Errorf("%w: short format name: %v", errs.ErrCorruptStore, err)
	}

	nl := make([]byte, 1)
	if _, err := io.ReadFull(r, nl); err != nil || nl[0] != '\n' {
		return "", nil, fmt.Errorf("%w: missing framing newline", errs.ErrCorruptStore)
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("%w: read body: %v", errs.ErrCorruptStore, err)
	}

	return string(nameBuf), rest, nil
}
