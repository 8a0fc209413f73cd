// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nrdvana/casfs/errs"
)

const (
	snapshotsFileName = "casbak.snapshots"
	snapshotsHeader   = "Timestamp\tHash\tComment\n"
	timestampLayout   = "2006-01-02T15:04:05Z"
)

// Snapshot is one row of casbak.snapshots.
type Snapshot struct {
	Timestamp time.Time
	Hash      string
	Comment   string
}

// SnapshotIndex reads and appends casbak.snapshots (spec.md §6): the
// literal header is validated on load, and appended timestamps must be
// non-decreasing.
type SnapshotIndex struct {
	path      string
	snapshots []Snapshot
}

// OpenSnapshotIndex loads casbak.snapshots from dir, or starts a fresh
// index if the file does not yet exist.
func OpenSnapshotIndex(dir string) (*SnapshotIndex, error) {
	path := dir + string(os.PathSeparator) + snapshotsFileName
	idx := &SnapshotIndex{path: path}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", errs.ErrIO, snapshotsFileName, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: %s is empty, missing header", errs.ErrCorruptStore, snapshotsFileName)
	}
	if scanner.Text()+"\n" != snapshotsHeader {
		return nil, fmt.Errorf("%w: %s has unexpected header %q", errs.ErrCorruptStore, snapshotsFileName, scanner.Text())
	}
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		snap, err := parseSnapshotLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errs.ErrCorruptStore, snapshotsFileName, err)
		}
		idx.snapshots = append(idx.snapshots, snap)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", errs.ErrIO, snapshotsFileName, err)
	}
	return idx, nil
}

func parseSnapshotLine(line string) (Snapshot, error) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 {
		return Snapshot{}, fmt.Errorf("malformed row %q", line)
	}
	ts, err := time.Parse(timestampLayout, parts[0])
	if err != nil {
		return Snapshot{}, fmt.Errorf("malformed timestamp %q: %w", parts[0], err)
	}
	return Snapshot{Timestamp: ts.UTC(), Hash: parts[1], Comment: parts[2]}, nil
}

// Snapshots returns all loaded snapshot rows, oldest first.
func (idx *SnapshotIndex) Snapshots() []Snapshot {
	out := make([]Snapshot, len(idx.snapshots))
	copy(out, idx.snapshots)
	return out
}

// Append adds a new snapshot row and persists the whole file. ts must
// not be earlier than the most recently appended snapshot's timestamp.
func (idx *SnapshotIndex) Append(ts time.Time, hash, comment string) error {
	ts = ts.UTC()
	if len(idx.snapshots) > 0 {
		last := idx.snapshots[len(idx.snapshots)-1]
		if ts.Before(last.Timestamp) {
			return fmt.Errorf("%w: snapshot timestamp %s precedes last snapshot %s",
				errs.ErrCorruptStore, ts.Format(timestampLayout), last.Timestamp.Format(timestampLayout))
		}
	}
	idx.snapshots = append(idx.snapshots, Snapshot{Timestamp: ts, Hash: hash, Comment: comment})
	return idx.save()
}

func (idx *SnapshotIndex) save() error {
	var b strings.Builder
	b.WriteString(snapshotsHeader)
	for _, s := range idx.snapshots {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", s.Timestamp.Format(timestampLayout), s.Hash, s.Comment)
	}
	if err := os.WriteFile(idx.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", errs.ErrIO, snapshotsFileName, err)
	}
	return nil
}

// Since returns snapshots with Timestamp >= t.
func (idx *SnapshotIndex) Since(t time.Time) []Snapshot {
	var out []Snapshot
	for _, s := range idx.snapshots {
		if !s.Timestamp.Before(t) {
			out = append(out, s)
		}
	}
	return out
}

// Until returns snapshots with Timestamp <= t.
func (idx *SnapshotIndex) Until(t time.Time) []Snapshot {
	var out []Snapshot
	for _, s := range idx.snapshots {
		if !s.Timestamp.After(t) {
			out = append(out, s)
		}
	}
	return out
}
