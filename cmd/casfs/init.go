// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nrdvana/casfs/backup"
	"github.com/nrdvana/casfs/store"
)

var initAlgorithm string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "lay out a new backup directory and blob store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		casRel := "cas"
		casAbs := backupDir + "/" + casRel
		if _, err := store.Create(casAbs, store.CreateOptions{Algorithm: initAlgorithm}); err != nil {
			return wrapRuntime(err)
		}
		if err := backup.WriteConfig(backupDir, casRel, "scanner.Scan", "extractor.Extract"); err != nil {
			return wrapRuntime(err)
		}
		if !quiet {
			fmt.Println("initialized backup directory at", backupDir)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initAlgorithm, "algorithm", "sha256", "digest algorithm for the new store")
	rootCmd.AddCommand(initCmd)
}
