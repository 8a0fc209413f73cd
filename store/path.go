// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// parseFanout parses the whitespace-separated list of decimal digit
// widths in conf/fanout, e.g. "1 2" (spec.md §4.1). The sum of widths
// must be <= 5 and each width <= 3.
func parseFanout(s string) ([]int, error) {
	fields := strings.Fields(s)
	widths := make([]int, 0, len(fields))
	sum := 0
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || n > 3 {
			return nil, fmt.Errorf("store: invalid fanout width %q", f)
		}
		widths = append(widths, n)
		sum += n
	}
	if sum > 5 {
		return nil, fmt.Errorf("store: fanout widths sum to %d, must be <= 5", sum)
	}
	return widths, nil
}

func formatFanout(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strconv.Itoa(w)
	}
	return strings.Join(parts, " ")
}

// blobPath splits hexDigest into nested directory components per the
// fanout pattern, with the remainder as the filename. With fanout
// [1,2] and digest "abcdef...", the path is a/bc/def... (spec.md
// §4.1).
func blobPath(root, hexDigest string, widths []int) (string, error) {
	rest := hexDigest
	parts := make([]string, 0, len(widths)+1)
	for _, w := range widths {
		if len(rest) < w {
			return "", fmt.Errorf("store: digest %q too short for fanout", hexDigest)
		}
		parts = append(parts, rest[:w])
		rest = rest[w:]
	}
	if rest == "" {
		return "", fmt.Errorf("store: digest %q fully consumed by fanout", hexDigest)
	}
	parts = append(parts, rest)
	return filepath.Join(root, filepath.Join(parts...)), nil
}
