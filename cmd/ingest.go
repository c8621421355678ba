package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atlascore/atlas/internal/chunker"
	"github.com/atlascore/atlas/internal/embedder"
	"github.com/atlascore/atlas/internal/ingest"
	"github.com/atlascore/atlas/internal/knowledge"
	"github.com/atlascore/atlas/internal/tokenizer"
)

var (
	ingestDir   string
	ingestReset bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk, embed, and store knowledge documents",
	Long: `Ingest walks the knowledge directory, splits every markdown file
into categorized chunks, embeds them, and upserts them into the store.
Re-running on unchanged documents is a no-op thanks to content hashing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		dir := ingestDir
		if dir == "" {
			dir = e.cfg.KnowledgeDir
		}

		counter := tokenizer.New(e.cfg.Tokenizer.RunesPerToken)
		chk, err := chunker.New(e.cfg.Chunker, counter, e.logger)
		if err != nil {
			return err
		}

		provider, err := newEmbedderProvider(ctx, e.cfg)
		if err != nil {
			return err
		}
		emb, err := embedder.New(provider, e.cfg.Embedder, e.logger)
		if err != nil {
			return err
		}

		store, err := knowledge.NewStore(e.pool, e.logger)
		if err != nil {
			return err
		}

		pipeline, err := ingest.New(chk, emb, store, e.logger)
		if err != nil {
			return err
		}

		result, err := pipeline.Run(ctx, dir, ingestReset)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", dir, err)
		}

		fmt.Printf("Ingested %d files: %d chunks embedded and stored\n",
			result.Files, result.Stored)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "source directory (default: knowledge_dir from config)")
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "empty the knowledge base before ingesting")
	rootCmd.AddCommand(ingestCmd)
}
