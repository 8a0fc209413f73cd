// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nrdvana/casfs/backup"
	"github.com/nrdvana/casfs/codec"
	"github.com/nrdvana/casfs/digest"
	"github.com/nrdvana/casfs/dirent"
	"github.com/nrdvana/casfs/scanner"
	"github.com/nrdvana/casfs/store"
)

var (
	importComment string
	importCodec   string
)

var importCmd = &cobra.Command{
	Use:   "import SRC_PATH",
	Short: "scan a real directory tree into a new snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, idx, err := openBackup()
		if err != nil {
			return wrapRuntime(err)
		}

		hint := lastSnapshotDir(st, idx)

		root, stats, err := scanner.Scan(st, importCodec, args[0], hint)
		if err != nil {
			return wrapRuntime(err)
		}

		// The snapshot blob is the just-scanned root directory, decoded
		// and re-encoded with its timestamp/comment metadata attached
		// (spec.md §6, "Snapshot blob").
		h, err := st.Get(root.RefDigest())
		if err != nil || h == nil {
			return wrapRuntime(fmt.Errorf("reopen scanned root: %w", err))
		}
		blob, err := h.ReadAll()
		h.Close()
		if err != nil {
			return wrapRuntime(err)
		}
		_, rootDir, err := codec.Load(blob)
		if err != nil {
			return wrapRuntime(err)
		}

		now := time.Now().UTC()
		if rootDir.Metadata == nil {
			rootDir.Metadata = make(map[string]any)
		}
		rootDir.Metadata["timestamp"] = now.Format("2006-01-02T15:04:05Z")
		rootDir.Metadata["comment"] = importComment

		snapBlob, err := codec.Encode(importCodec, rootDir)
		if err != nil {
			return wrapRuntime(err)
		}
		snapRef, err := st.Put(snapBlob, store.PutOptions{})
		if err != nil {
			return wrapRuntime(err)
		}
		if err := idx.Append(now, string(snapRef), importComment); err != nil {
			return wrapRuntime(err)
		}

		if !quiet {
			fmt.Printf("imported %s: %d files, %d dirs, snapshot %s\n",
				args[0], stats.FileCount, stats.DirCount, snapRef)
		}
		return nil
	},
}

// lastSnapshotDir decodes the most recent snapshot's directory, for use
// as the scanner's reuse hint.
func lastSnapshotDir(st *store.Store, idx *backup.SnapshotIndex) *dirent.Directory {
	snaps := idx.Snapshots()
	if len(snaps) == 0 {
		return nil
	}
	last := snaps[len(snaps)-1]
	h, err := st.Get(digest.Digest(last.Hash))
	if err != nil || h == nil {
		return nil
	}
	defer h.Close()
	blob, err := h.ReadAll()
	if err != nil {
		return nil
	}
	_, dir, err := codec.Load(blob)
	if err != nil {
		return nil
	}
	return &dir
}

func init() {
	importCmd.Flags().StringVar(&importComment, "comment", "", "snapshot comment")
	importCmd.Flags().StringVar(&importCodec, "codec", "universal", "directory codec to encode with")
	rootCmd.AddCommand(importCmd)
}
