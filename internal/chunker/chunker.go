// Package chunker splits markdown documents into bounded, categorized,
// content-addressed knowledge chunks ready for embedding.
//
// Documents are partitioned at heading boundaries. Sections that fit the
// configured token maximum are emitted whole; oversized sections are split
// at paragraph boundaries with an overlap excerpt carried across chunk
// boundaries to preserve continuity.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/atlascore/atlas/internal/knowledge"
	"github.com/atlascore/atlas/internal/tokenizer"
)

// CategoryRule maps a category name to the keywords that select it.
// Rules are evaluated in slice order; the first match wins.
type CategoryRule struct {
	Name     string   `mapstructure:"name"`
	Keywords []string `mapstructure:"keywords"`
}

// Config holds the chunking budgets and the category keyword table.
type Config struct {
	// MaxChunkTokens is the upper bound for a single chunk. A section at
	// or below this size is emitted as one chunk.
	MaxChunkTokens int `mapstructure:"max_chunk_tokens"`

	// OverlapTokens bounds the overlap excerpt seeded into the chunk that
	// follows a split.
	OverlapTokens int `mapstructure:"overlap_tokens"`

	// Categories is the ordered category keyword table. Matching is
	// case-insensitive over chunk content and section title combined.
	Categories []CategoryRule `mapstructure:"categories"`
}

// DefaultCategories returns the built-in category keyword table.
// Deployments with a different corpus override it in configuration.
func DefaultCategories() []CategoryRule {
	return []CategoryRule{
		{Name: "AWS Cloud", Keywords: []string{"aws", "ec2", "s3", "lambda", "rds", "cloudfront", "iam", "vpc"}},
		{Name: "Cost Optimization", Keywords: []string{"cost", "pricing", "budget", "savings", "reserved instance", "spot instance"}},
		{Name: "Security", Keywords: []string{"security", "encryption", "compliance", "firewall", "credentials", "audit"}},
		{Name: "DevOps", Keywords: []string{"deployment", "docker", "kubernetes", "terraform", "pipeline", "ci/cd"}},
		{Name: "Databases", Keywords: []string{"database", "sql", "postgres", "dynamodb", "index", "query"}},
		{Name: "Networking", Keywords: []string{"network", "dns", "load balancer", "subnet", "routing", "latency"}},
	}
}

// Document is one raw input document.
type Document struct {
	SourceFile string
	Content    string
}

// Chunker segments documents into knowledge chunks. Safe for concurrent
// use; it holds no cross-call state.
type Chunker struct {
	cfg     Config
	counter *tokenizer.Counter
	logger  *slog.Logger
}

// New creates a Chunker. counter must be the same Counter used by every
// other budget decision in the pipeline.
func New(cfg Config, counter *tokenizer.Counter, logger *slog.Logger) (*Chunker, error) {
	if counter == nil {
		return nil, fmt.Errorf("counter is required")
	}
	if cfg.MaxChunkTokens <= 0 {
		return nil, fmt.Errorf("max_chunk_tokens must be positive, got %d", cfg.MaxChunkTokens)
	}
	if cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.MaxChunkTokens {
		return nil, fmt.Errorf("overlap_tokens must be in [0, max_chunk_tokens), got %d", cfg.OverlapTokens)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{cfg: cfg, counter: counter, logger: logger}, nil
}

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// section is one heading-delimited region of a document.
type section struct {
	level   int
	title   string
	content string
}

// Segment splits a document into ordered knowledge chunks. Unreadable or
// empty input yields zero chunks, not an error. Embeddings are left empty.
func (c *Chunker) Segment(doc Document) []knowledge.Chunk {
	sections := splitSections(doc.Content)

	var chunks []knowledge.Chunk
	index := 0
	for _, sec := range sections {
		for _, text := range c.chunkSection(sec) {
			category, subcategory := c.categorize(text, sec.title)
			chunks = append(chunks, knowledge.Chunk{
				Content:      text,
				ContentHash:  hashContent(text),
				TokenCount:   c.counter.Count(text),
				Category:     category,
				Subcategory:  subcategory,
				SourceFile:   doc.SourceFile,
				SectionTitle: sec.title,
				SectionLevel: sec.level,
				ChunkIndex:   index,
			})
			index++
		}
	}

	c.logger.Debug("segmented document",
		"source", doc.SourceFile,
		"sections", len(sections),
		"chunks", len(chunks),
	)
	return chunks
}

// splitSections partitions markdown content at heading boundaries,
// preserving heading depth and title. Content before the first heading
// falls into an implicit level-0 "Introduction" section.
func splitSections(content string) []section {
	var sections []section
	current := section{level: 0, title: "Introduction"}

	for _, line := range strings.Split(content, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			if strings.TrimSpace(current.content) != "" {
				sections = append(sections, current)
			}
			current = section{
				level:   len(m[1]),
				title:   strings.TrimSpace(m[2]),
				content: line + "\n",
			}
			continue
		}
		current.content += line + "\n"
	}
	if strings.TrimSpace(current.content) != "" {
		sections = append(sections, current)
	}
	return sections
}

// chunkSection emits a section as a single chunk when it fits the token
// maximum, otherwise splits it at paragraph boundaries, seeding each new
// chunk with an overlap excerpt from the previous one.
//
// A single paragraph that alone exceeds the maximum is emitted unsplit;
// further subdivision is a documented limitation.
func (c *Chunker) chunkSection(sec section) []string {
	content := strings.TrimSpace(sec.content)
	if content == "" {
		return nil
	}
	if c.counter.Count(content) <= c.cfg.MaxChunkTokens {
		return []string{content}
	}

	var chunks []string
	current := sec.title
	currentTokens := c.counter.Count(current)
	// seeded tracks whether current holds more than the bare title seed,
	// so an oversized first paragraph never closes a title-only chunk.
	seeded := false

	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraTokens := c.counter.Count(para)

		if seeded && currentTokens+paraTokens > c.cfg.MaxChunkTokens {
			chunks = append(chunks, strings.TrimSpace(current))
			current = c.overlapExcerpt(current) + "\n\n" + para
			currentTokens = c.counter.Count(current)
			continue
		}
		current += "\n\n" + para
		currentTokens += paraTokens
		seeded = true
	}
	if seeded {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

var sentenceEndRe = regexp.MustCompile(`[.!?]+`)

// overlapExcerpt returns the text carried from a closed chunk into the
// next one: the chunk's last full sentence when it fits the overlap
// budget, otherwise the literal last N tokens of the chunk.
func (c *Chunker) overlapExcerpt(text string) string {
	sentences := sentenceEndRe.Split(text, -1)
	if len(sentences) > 1 {
		last := strings.TrimSpace(sentences[len(sentences)-2])
		if last != "" && c.counter.Count(last) <= c.cfg.OverlapTokens {
			return last
		}
	}
	return c.counter.Tail(text, c.cfg.OverlapTokens)
}

// categorize assigns a primary category and optional subcategory by
// case-insensitive keyword matching over chunk content and section title
// combined. The first matching rule in table order is primary; a second
// match becomes the subcategory. No match falls back to the default.
func (c *Chunker) categorize(content, title string) (category, subcategory string) {
	haystack := strings.ToLower(content) + " " + strings.ToLower(title)

	var matched []string
	for _, rule := range c.cfg.Categories {
		for _, kw := range rule.Keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				matched = append(matched, rule.Name)
				break
			}
		}
		if len(matched) == 2 {
			break
		}
	}

	switch len(matched) {
	case 0:
		return knowledge.DefaultCategory, ""
	case 1:
		return matched[0], ""
	default:
		return matched[0], matched[1]
	}
}

// hashContent computes the content-addressed dedup key for a chunk.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
