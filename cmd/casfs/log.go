// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nrdvana/casfs/backup"
)

var (
	logSince string
	logUntil string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "print recorded snapshots, optionally filtered by date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, idx, err := openBackup()
		if err != nil {
			return wrapRuntime(err)
		}

		snaps := idx.Snapshots()
		now := time.Now().UTC()

		if logSince != "" {
			since, err := backup.ParseDateSpec(logSince, now)
			if err != nil {
				return err // usage error: bad --since value
			}
			snaps = intersect(snaps, idx.Since(since))
		}
		if logUntil != "" {
			until, err := backup.ParseDateSpec(logUntil, now)
			if err != nil {
				return err // usage error: bad --until value
			}
			snaps = intersect(snaps, idx.Until(until))
		}

		for _, s := range snaps {
			fmt.Printf("%s\t%s\t%s\n", s.Timestamp.Format("2006-01-02T15:04:05Z"), s.Hash, s.Comment)
		}
		return nil
	},
}

// intersect keeps only the snapshots of a that also appear in b, by
// hash, preserving a's order.
func intersect(a, b []backup.Snapshot) []backup.Snapshot {
	keep := make(map[string]bool, len(b))
	for _, s := range b {
		keep[s.Hash] = true
	}
	var out []backup.Snapshot
	for _, s := range a {
		if keep[s.Hash] {
			out = append(out, s)
		}
	}
	return out
}

func init() {
	logCmd.Flags().StringVar(&logSince, "since", "", "only show snapshots at or after this date-spec")
	logCmd.Flags().StringVar(&logUntil, "until", "", "only show snapshots at or before this date-spec")
	rootCmd.AddCommand(logCmd)
}
