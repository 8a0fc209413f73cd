// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package store

import "sync"

// PutStats accumulates counters across one or more Put calls, the
// out-parameter spec.md §4.1 describes for the `stats` flag.
type PutStats struct {
	mu           sync.Mutex
	NewFileCount int
	NewFiles     []string
}

func (s *PutStats) recordNew(digestHex string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NewFileCount++
	s.NewFiles = append(s.NewFiles, digestHex)
}
