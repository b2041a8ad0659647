package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datawatch/datawatch/cmd/cli/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "datawatch",
		Short: "Tabular data quality analysis and baseline versioning",
		Long: `A command-line interface for analyzing the quality of tabular datasets
and managing versioned baseline snapshots for drift comparison.`,
		Version: "0.1.0",
	}

	rootCmd.AddCommand(commands.NewCheckCmd())
	rootCmd.AddCommand(commands.NewBaselineCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
