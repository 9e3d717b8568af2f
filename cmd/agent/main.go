// Package main provides the flocksync agent binary: the control process
// that runs the sync manager and sync worker loops and offers commands
// for managing follower instances.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/flocksync/internal/agent/iocli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var (
	configFile string
	stdio      = iocli.NewStdio()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flocksync-agent",
	Short: "flocksync agent",
	Long: `flocksync-agent keeps local follower database instances in sync with
their leaders. The run command starts the sync manager and sync worker
loops against a flocksync coordination service; the other commands
manage the instance registry.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: flocksync-agent.yaml in the working directory)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("flocksync-agent\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Build Date: %s\n", BuildDate)
		fmt.Printf("Git Commit: %s\n", GitCommit)
	},
}
