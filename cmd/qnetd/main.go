// Package main is qnetd's composition root: a thin cobra CLI that wires the
// consensus core's collaborators together into a runnable single-node
// process. It is scaffolding over the core packages, not part of the
// consensus logic itself.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is overridden via -ldflags at release build time.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "qnetd: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qnetd",
	Short: "qnetd runs a QNet consensus core node",
	Long: `qnetd wires the certificate, reputation, microblock, macroblock, and
sync collaborators of the QNet consensus core into a single process.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "./qnetd-data", "directory holding this node's keys and chain state")
	rootCmd.PersistentFlags().String("network", "local", "parameter preset: mainnet, testnet, or local")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(keygenCmd)
}
