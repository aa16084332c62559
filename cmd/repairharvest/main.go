// Package main provides the entry point for the repairharvest CLI tool.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repairharvest/cmd/repairharvest/commands"
	"github.com/Sumatoshi-tech/repairharvest/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	// Credentials commonly live in a local .env file.
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	rootCmd := &cobra.Command{
		Use:   "repairharvest",
		Short: "Harvest bug-fix commits from GitHub into code repair training pairs",
		Long: `repairharvest searches GitHub for bug-fixing commits and turns each changed
file into a masked buggy/fixed training pair.

Commands:
  collect   Crawl commit search and append pairs to the dataset
  status    Show crawl progress and dataset size
  reset     Back up and clear the crawl checkpoint and seen commits`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewCollectCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewResetCommand())
	rootCmd.AddCommand(versionCmd())

	err = rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "repairharvest %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
