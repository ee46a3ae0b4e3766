package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quartermaster",
	Short: "Household assistant that plans and runs pantry tasks",
	Long: `Quartermaster turns natural-language household requests into typed
task graphs and executes them against the pantry inventory.

With no arguments, launches an interactive session where you can type
requests, watch them execute, and answer disambiguation questions when a
request like "toss the milk" matches more than one item.

Core capabilities:
- Plans requests into dependency-ordered task graphs via Claude
- Executes independent tasks concurrently, wave by wave
- Pauses for confirmation when an item reference is ambiguous
- Keeps a full run history in SQLite`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagCaller, "caller", defaultCaller(), "Caller identity used to scope confirmation sessions")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to a config file (overrides discovery)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var flagCaller string
var flagConfigPath string

// defaultCaller falls back to the OS user when no caller is given.
func defaultCaller() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "default"
}
