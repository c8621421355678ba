package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/atlascore/atlas/internal/knowledge"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		store, err := knowledge.NewStore(e.pool, e.logger)
		if err != nil {
			return err
		}

		stats, err := store.Stats(ctx)
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		fmt.Printf("Chunks:   %d (%d embedded)\n", stats.ChunkCount, stats.EmbeddedCount)
		fmt.Printf("Tokens:   min %d / avg %.1f / max %d\n",
			stats.MinTokens, stats.AvgTokens, stats.MaxTokens)

		categories := make([]string, 0, len(stats.Categories))
		for name := range stats.Categories {
			categories = append(categories, name)
		}
		sort.Strings(categories)

		fmt.Println("Categories:")
		for _, name := range categories {
			fmt.Printf("  %-24s %d\n", name, stats.Categories[name])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
