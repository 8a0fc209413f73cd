// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Command casfs is the CLI surface over the store/codec/casfs/scanner/
// extractor/backup packages (spec.md §6), built with cobra+viper the
// way the pack's own mfinelli-modctl is.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// errRuntime marks an error as an operational failure (exit code 1);
// anything else bubbling out of Execute — bad flags, wrong arg count —
// is treated as a usage error (exit code 2), matching spec.md §6.
var errRuntime = errors.New("casfs: runtime error")

func wrapRuntime(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", errRuntime, err)
}

var (
	backupDir string
	verbose   bool
	quiet     bool
)

var styleType = map[string]lipgloss.Style{
	"dir":      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
	"file":     lipgloss.NewStyle(),
	"symlink":  lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	"blockdev": lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	"chardev":  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	"pipe":     lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	"socket":   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
}

var rootCmd = &cobra.Command{
	Use:     "casfs",
	Short:   "content-addressable backup storage",
	Version: "1.0.0",
	SilenceUsage: true,
}

func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	if errors.Is(err, errRuntime) {
		fmt.Fprintln(os.Stderr, "casfs:", err)
		return 1
	}
	fmt.Fprintln(os.Stderr, "casfs:", err)
	return 2
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&backupDir, "casfs-dir", "D", ".", "backup directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.Flags().BoolP("version", "V", false, "print the version and exit")
}

func initConfig() {
	viper.SetEnvPrefix("CASFS")
	viper.AutomaticEnv()
}
