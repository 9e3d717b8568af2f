// Package main provides the flocksync coordination service binary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flocksync-server",
	Short: "flocksync coordination service",
	Long: `flocksync-server is the coordination service for a flock of follower
database instances. It stores the instance registry, the sync command
queue and the append-only fact log that agents reconcile against.`,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: flocksync-server.yaml in the working directory)")

	rootCmd.Flags().String("listen", "", "listen address (overrides config)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("flocksync-server\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Build Date: %s\n", BuildDate)
		fmt.Printf("Git Commit: %s\n", GitCommit)
	},
}
