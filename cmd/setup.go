package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlascore/atlas/internal/config"
	"github.com/atlascore/atlas/internal/database"
	"github.com/atlascore/atlas/internal/log"
)

// env bundles the shared runtime pieces every command needs: validated
// configuration, a logger, and a migrated database pool.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
}

// setup loads configuration, applies migrations, and opens the pool.
// The returned cleanup closes the pool and must be deferred.
func setup(ctx context.Context) (*env, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	if err := database.Migrate(cfg.Postgres); err != nil {
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}

	pool, err := database.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	e := &env{cfg: cfg, logger: logger, pool: pool}
	return e, pool.Close, nil
}

// newEmbedderProvider initializes Genkit with the Google AI plugin and
// returns the configured embedding model. GEMINI_API_KEY is read by the
// plugin from the environment.
func newEmbedderProvider(ctx context.Context, cfg *config.Config) (ai.Embedder, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("initializing Genkit")
	}
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel), nil
}
