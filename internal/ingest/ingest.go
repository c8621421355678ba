// Package ingest runs the knowledge ingestion pipeline: discover
// markdown files, chunk them, embed the chunks, and upsert them into
// the store.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/atlascore/atlas/internal/chunker"
	"github.com/atlascore/atlas/internal/embedder"
	"github.com/atlascore/atlas/internal/knowledge"
)

// Segmenter splits a document into chunks.
type Segmenter interface {
	Segment(doc chunker.Document) []knowledge.Chunk
}

// BatchEmbedder embeds chunk contents in order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkWriter persists chunks.
type ChunkWriter interface {
	UpsertByHash(ctx context.Context, chunks []knowledge.Chunk) error
	Reset(ctx context.Context) error
}

// Result summarizes one pipeline run.
type Result struct {
	Files    int
	Chunks   int
	Embedded int
	Stored   int
}

// Pipeline ties the ingestion stages together.
type Pipeline struct {
	chunker  Segmenter
	embedder BatchEmbedder
	store    ChunkWriter
	logger   *slog.Logger
}

// New creates an ingestion Pipeline.
func New(seg Segmenter, emb BatchEmbedder, store ChunkWriter, logger *slog.Logger) (*Pipeline, error) {
	if seg == nil || emb == nil || store == nil {
		return nil, fmt.Errorf("chunker, embedder, and store are all required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{chunker: seg, embedder: emb, store: store, logger: logger}, nil
}

// Run ingests every markdown file under dir. With reset set, the
// knowledge base is emptied first. Any stage failure aborts the run;
// the returned Result reports how far it got.
func (p *Pipeline) Run(ctx context.Context, dir string, reset bool) (Result, error) {
	var result Result

	if reset {
		if err := p.store.Reset(ctx); err != nil {
			return result, fmt.Errorf("resetting before ingest: %w", err)
		}
	}

	files, err := discoverMarkdown(dir)
	if err != nil {
		return result, fmt.Errorf("discovering source files: %w", err)
	}
	if len(files) == 0 {
		return result, fmt.Errorf("no markdown files under %s", dir)
	}
	result.Files = len(files)

	var chunks []knowledge.Chunk
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return result, fmt.Errorf("reading %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		fileChunks := p.chunker.Segment(chunker.Document{
			SourceFile: rel,
			Content:    string(content),
		})
		p.logger.Info("chunked file", "file", rel, "chunks", len(fileChunks))
		chunks = append(chunks, fileChunks...)
	}
	result.Chunks = len(chunks)
	if len(chunks) == 0 {
		return result, fmt.Errorf("no chunks produced from %d files", len(files))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return result, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	result.Embedded = len(vectors)

	report := embedder.Verify(vectors)
	p.logger.Info("embedding quality",
		"count", report.Count,
		"dimension", report.Dimension,
		"same_dimension", report.SameDimension,
		"zero_vectors", report.ZeroVectors,
		"avg_magnitude", report.AvgMagnitude)
	if report.ZeroVectors > 0 || !report.SameDimension {
		p.logger.Warn("embedding quality issues detected",
			"zero_vectors", report.ZeroVectors, "same_dimension", report.SameDimension)
	}

	if err := p.store.UpsertByHash(ctx, chunks); err != nil {
		return result, fmt.Errorf("storing chunks: %w", err)
	}
	result.Stored = len(chunks)

	p.logger.Info("ingestion complete",
		"files", result.Files, "chunks", result.Chunks, "stored", result.Stored)
	return result, nil
}

// discoverMarkdown returns the .md files under dir, sorted for a
// deterministic ingest order.
func discoverMarkdown(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
