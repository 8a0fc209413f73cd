// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mountCmd is a documented stub: FUSE mounting is outside this module's
// scope (spec.md §6 lists `mount` in the CLI surface contract without
// requiring an implementation).
var mountCmd = &cobra.Command{
	Use:   "mount MOUNTPOINT",
	Short: "mount a snapshot via FUSE (not implemented)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return errMountUnsupported
	},
}

var errMountUnsupported = fmt.Errorf("mount is outside this module's scope; FUSE integration is not implemented")

func init() {
	rootCmd.AddCommand(mountCmd)
}
