// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nrdvana/casfs"
	"github.com/nrdvana/casfs/dirent"
)

var lsSnapshot string

var lsCmd = &cobra.Command{
	Use:   "ls [PATH]",
	Short: "list a resolved path within a snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, idx, err := openBackup()
		if err != nil {
			return wrapRuntime(err)
		}
		snapHash, err := resolveSnapshotHash(idx, lsSnapshot)
		if err != nil {
			return wrapRuntime(err)
		}

		root := dirent.New(dirent.NameFromString(""), dirent.TypeDir).WithDigestRef(snapHash)
		fsys, err := casfs.Open(st, root)
		if err != nil {
			return wrapRuntime(err)
		}

		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
		p := casfs.NewPath(fsys, path)
		entry, err := p.FinalEntry()
		if err != nil {
			return wrapRuntime(err)
		}

		if entry.Type != dirent.TypeDir {
			printEntry(entry)
			return nil
		}
		if !entry.HasRef {
			return nil
		}
		dir, err := fsys.GetDir(entry.RefDigest())
		if err != nil {
			return wrapRuntime(err)
		}
		for _, e := range dir.Sorted() {
			printEntry(e)
		}
		return nil
	},
}

func printEntry(e dirent.DirEnt) {
	typ := e.Type.String()
	style, ok := styleType[typ]
	if !ok {
		style = styleType["file"]
	}
	size := ""
	if e.HasSize {
		size = fmt.Sprintf("%d", e.Size)
	}
	fmt.Printf("%-8s %8s %s\n", typ, size, style.Render(e.Name.String()))
}

func init() {
	lsCmd.Flags().StringVar(&lsSnapshot, "snapshot", "", "snapshot hash (prefix); defaults to the most recent")
	rootCmd.AddCommand(lsCmd)
}
