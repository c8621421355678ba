// Package cmd implements the atlas command-line interface.
//
// Following the pattern used by kubectl, hugo, and other standard Go
// CLI tools, all application logic is contained here, leaving main.go
// as a minimal entry point.
package cmd

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Atlas - retrieval-augmented context engine",
	Long: `Atlas maintains a pgvector-backed knowledge base, per-user memory,
and a response cache for a conversational assistant.

Commands cover the operational side: ingesting knowledge documents,
inspecting the stored corpus, and sweeping expired cache entries.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
