// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDateSpec implements the date-spec grammar of spec.md §6: an
// ISO-8601 prefix (YYYY, YYYY-MM, YYYY-MM-DD, YYYY-MM-DDTHH:MM[:SS]),
// optionally suffixed with Z; a unix epoch integer; or <n>[DWMY] for a
// relative-past offset from now. The result is always normalized to
// UTC.
func ParseDateSpec(spec string, now time.Time) (time.Time, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return time.Time{}, fmt.Errorf("backup: empty date spec")
	}

	if t, ok := parseRelative(spec, now); ok {
		return t, nil
	}
	if t, ok := parseISOPrefix(spec); ok {
		return t, nil
	}
	if n, err := strconv.ParseInt(spec, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("backup: unrecognized date spec %q", spec)
}

// parseRelative matches "<n>[DWMY]" (days/weeks/months/years into the
// past).
func parseRelative(spec string, now time.Time) (time.Time, bool) {
	if len(spec) < 2 {
		return time.Time{}, false
	}
	unit := spec[len(spec)-1]
	if unit != 'D' && unit != 'W' && unit != 'M' && unit != 'Y' {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || n < 0 {
		return time.Time{}, false
	}
	now = now.UTC()
	switch unit {
	case 'D':
		return now.AddDate(0, 0, -n), true
	case 'W':
		return now.AddDate(0, 0, -7*n), true
	case 'M':
		return now.AddDate(0, -n, 0), true
	case 'Y':
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}

// isoLayouts are tried longest-to-shortest so a longer, more specific
// spec is never mistakenly parsed by a shorter layout that happens to
// match a prefix.
var isoLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

func parseISOPrefix(spec string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, spec); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
