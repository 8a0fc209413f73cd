// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/nrdvana/casfs/backup"
	"github.com/nrdvana/casfs/store"
)

// openBackup loads an existing backup directory's config, blob store,
// and snapshot index.
func openBackup() (*backup.Config, *store.Store, *backup.SnapshotIndex, error) {
	cfg, err := backup.LoadConfig(backupDir)
	if err != nil {
		return nil, nil, nil, err
	}
	casPath, err := cfg.CASPath()
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := store.Open(casPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store at %s: %w", casPath, err)
	}
	idx, err := backup.OpenSnapshotIndex(backupDir)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, st, idx, nil
}
