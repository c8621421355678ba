// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.atlas/config.yaml)
//  3. Default values
//
// Error handling uses sentinel errors so callers can check categories
// with errors.Is(); details are wrapped with fmt.Errorf("%w: ...").
// Validation is fail-fast: a misconfigured classifier or embedder stops
// startup rather than degrading at runtime.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/atlascore/atlas/internal/assembler"
	"github.com/atlascore/atlas/internal/cache"
	"github.com/atlascore/atlas/internal/chunker"
	"github.com/atlascore/atlas/internal/classifier"
	"github.com/atlascore/atlas/internal/database"
	"github.com/atlascore/atlas/internal/embedder"
	"github.com/atlascore/atlas/internal/retriever"
	"github.com/atlascore/atlas/internal/tokenizer"
)

var (
	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidEmbedder indicates the embedder settings are unusable.
	ErrInvalidEmbedder = errors.New("invalid embedder configuration")

	// ErrInvalidChunker indicates the chunking budgets are unusable.
	ErrInvalidChunker = errors.New("invalid chunker configuration")

	// ErrInvalidRetriever indicates the retrieval settings are unusable.
	ErrInvalidRetriever = errors.New("invalid retriever configuration")

	// ErrInvalidClassifier indicates the complexity rules are unusable.
	ErrInvalidClassifier = errors.New("invalid classifier configuration")

	// ErrInvalidAssembler indicates the context limits are unusable.
	ErrInvalidAssembler = errors.New("invalid assembler configuration")

	// ErrInvalidTokenizer indicates the token encoding density is unusable.
	ErrInvalidTokenizer = errors.New("invalid tokenizer configuration")
)

// DefaultEmbedderModel is the Gemini embedding model used unless
// overridden. It supports truncation to 768 dimensions, matching the
// vector columns in the schema.
const DefaultEmbedderModel = "gemini-embedding-001"

// Config stores application configuration.
type Config struct {
	// EmbedderModel selects the Genkit embedding model.
	EmbedderModel string `mapstructure:"embedder_model"`

	// KnowledgeDir is the default source directory for ingestion.
	KnowledgeDir string `mapstructure:"knowledge_dir"`

	Postgres   database.Config   `mapstructure:"postgres"`
	Tokenizer  tokenizer.Config  `mapstructure:"tokenizer"`
	Embedder   embedder.Config   `mapstructure:"embedder"`
	Chunker    chunker.Config    `mapstructure:"chunker"`
	Retriever  retriever.Config  `mapstructure:"retriever"`
	Cache      cache.Config      `mapstructure:"cache"`
	Assembler  assembler.Config  `mapstructure:"assembler"`
	Classifier classifier.Config `mapstructure:"classifier"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".atlas")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if len(cfg.Chunker.Categories) == 0 {
		cfg.Chunker.Categories = chunker.DefaultCategories()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("knowledge_dir", "./knowledge")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "atlas")
	v.SetDefault("postgres.password", "atlas_dev_password")
	v.SetDefault("postgres.dbname", "atlas")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("tokenizer.runes_per_token", tokenizer.DefaultRunesPerToken)

	v.SetDefault("embedder.dimension", 768)
	v.SetDefault("embedder.batch_size", 50)
	v.SetDefault("embedder.batch_delay", time.Second)
	v.SetDefault("embedder.retry.max_retries", 3)
	v.SetDefault("embedder.retry.initial_interval", 500*time.Millisecond)
	v.SetDefault("embedder.retry.max_interval", 10*time.Second)

	v.SetDefault("chunker.max_chunk_tokens", 500)
	v.SetDefault("chunker.overlap_tokens", 50)

	v.SetDefault("retriever.threshold", retriever.DefaultThreshold)
	v.SetDefault("retriever.top_k", retriever.DefaultTopK)
	v.SetDefault("retriever.sample_cap", retriever.DefaultSampleCap)

	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.greetings", cache.DefaultGreetings())

	v.SetDefault("assembler.token_budget", assembler.DefaultTokenBudget)
	v.SetDefault("assembler.memory_limit", 10)
	v.SetDefault("assembler.history_limit", 5)

	defaults := classifier.DefaultConfig()
	v.SetDefault("classifier.simple_keywords", defaults.SimpleKeywords)
	v.SetDefault("classifier.complex_keywords", defaults.ComplexKeywords)
	v.SetDefault("classifier.low_token_threshold", defaults.LowTokenThreshold)
	v.SetDefault("classifier.high_token_threshold", defaults.HighTokenThreshold)
}

// bindEnvVariables binds environment overrides explicitly. Hardcoded
// keys cannot fail to bind; a panic here is a bug, not a runtime error.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("postgres.host", "ATLAS_POSTGRES_HOST")
	mustBind("postgres.port", "ATLAS_POSTGRES_PORT")
	mustBind("postgres.user", "ATLAS_POSTGRES_USER")
	mustBind("postgres.password", "ATLAS_POSTGRES_PASSWORD")
	mustBind("postgres.dbname", "ATLAS_POSTGRES_DBNAME")
	mustBind("postgres.sslmode", "ATLAS_POSTGRES_SSLMODE")
	mustBind("embedder_model", "ATLAS_EMBEDDER_MODEL")
	mustBind("knowledge_dir", "ATLAS_KNOWLEDGE_DIR")

	// NOTE: GEMINI_API_KEY is read directly by Genkit, not via Viper.
}

// Validate checks the full configuration and fails fast on the first
// problem.
func (c *Config) Validate() error {
	if c.Postgres.Host == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidPostgresPort, c.Postgres.Port)
	}
	if c.Postgres.DBName == "" {
		return fmt.Errorf("%w: dbname must not be empty", ErrInvalidPostgresDBName)
	}

	if c.Tokenizer.RunesPerToken <= 0 {
		return fmt.Errorf("%w: runes_per_token must be positive", ErrInvalidTokenizer)
	}

	if c.Embedder.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidEmbedder)
	}
	if c.Embedder.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidEmbedder)
	}
	if c.Embedder.BatchDelay < 0 {
		return fmt.Errorf("%w: batch_delay must not be negative", ErrInvalidEmbedder)
	}

	if c.Chunker.MaxChunkTokens <= 0 {
		return fmt.Errorf("%w: max_chunk_tokens must be positive", ErrInvalidChunker)
	}
	if c.Chunker.OverlapTokens < 0 || c.Chunker.OverlapTokens >= c.Chunker.MaxChunkTokens {
		return fmt.Errorf("%w: overlap_tokens must be in [0, max_chunk_tokens)", ErrInvalidChunker)
	}

	if c.Retriever.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidRetriever)
	}
	if c.Retriever.Threshold < 0 || c.Retriever.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be in [0, 1]", ErrInvalidRetriever)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("invalid cache configuration: ttl must not be negative")
	}

	if c.Assembler.TokenBudget <= 0 {
		return fmt.Errorf("%w: token_budget must be positive", ErrInvalidAssembler)
	}
	if c.Assembler.MemoryLimit <= 0 || c.Assembler.HistoryLimit <= 0 {
		return fmt.Errorf("%w: memory_limit and history_limit must be positive", ErrInvalidAssembler)
	}

	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClassifier, err)
	}
	return nil
}
