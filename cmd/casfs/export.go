// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nrdvana/casfs"
	"github.com/nrdvana/casfs/backup"
	"github.com/nrdvana/casfs/digest"
	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/extractor"
)

var exportSnapshot string

var exportCmd = &cobra.Command{
	Use:   "export SRC_PATH DEST_PATH",
	Short: "materialize a snapshot (or subtree) onto a real filesystem",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, idx, err := openBackup()
		if err != nil {
			return wrapRuntime(err)
		}

		snapHash, err := resolveSnapshotHash(idx, exportSnapshot)
		if err != nil {
			return wrapRuntime(err)
		}

		root := dirent.New(dirent.NameFromString(""), dirent.TypeDir).WithDigestRef(snapHash)
		fsys, err := casfs.Open(st, root)
		if err != nil {
			return wrapRuntime(err)
		}

		if err := extractor.Extract(fsys, args[0], args[1]); err != nil {
			return wrapRuntime(err)
		}
		if !quiet {
			fmt.Printf("exported %s@%s -> %s\n", args[0], snapHash, args[1])
		}
		return nil
	},
}

// resolveSnapshotHash picks the snapshot whose hash starts with spec, or
// the most recent snapshot when spec is empty.
func resolveSnapshotHash(idx *backup.SnapshotIndex, spec string) (digest.Digest, error) {
	snaps := idx.Snapshots()
	if len(snaps) == 0 {
		return "", fmt.Errorf("no snapshots recorded in %s", backupDir)
	}
	if spec == "" {
		return digest.Digest(snaps[len(snaps)-1].Hash), nil
	}
	for i := len(snaps) - 1; i >= 0; i-- {
		if strings.HasPrefix(snaps[i].Hash, spec) {
			return digest.Digest(snaps[i].Hash), nil
		}
	}
	return "", fmt.Errorf("no snapshot matching %q", spec)
}

func init() {
	exportCmd.Flags().StringVar(&exportSnapshot, "snapshot", "", "snapshot hash (prefix) to export; defaults to the most recent")
	rootCmd.AddCommand(exportCmd)
}
