package chunker

import (
	"strings"
	"testing"

	"github.com/atlascore/atlas/internal/knowledge"
	"github.com/atlascore/atlas/internal/log"
	"github.com/atlascore/atlas/internal/tokenizer"
)

func testChunker(t *testing.T, cfg Config) *Chunker {
	t.Helper()
	c, err := New(cfg, tokenizer.New(4), log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func defaultTestConfig() Config {
	return Config{
		MaxChunkTokens: 750,
		OverlapTokens:  50,
		Categories: []CategoryRule{
			{Name: "AWS Cloud", Keywords: []string{"aws", "cloud", "ec2"}},
			{Name: "Cost Optimization", Keywords: []string{"cost", "savings", "pricing"}},
			{Name: "Troubleshooting", Keywords: []string{"problem", "error", "debug"}},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	counter := tokenizer.New(4)

	t.Run("nil counter", func(t *testing.T) {
		if _, err := New(defaultTestConfig(), nil, log.NewNop()); err == nil {
			t.Error("New(nil counter) expected error, got nil")
		}
	})
	t.Run("zero max tokens", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.MaxChunkTokens = 0
		if _, err := New(cfg, counter, log.NewNop()); err == nil {
			t.Error("New(max=0) expected error, got nil")
		}
	})
	t.Run("overlap not below max", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.OverlapTokens = cfg.MaxChunkTokens
		if _, err := New(cfg, counter, log.NewNop()); err == nil {
			t.Error("New(overlap=max) expected error, got nil")
		}
	})
}

func TestSegment_EmptyInput(t *testing.T) {
	c := testChunker(t, defaultTestConfig())

	for _, content := range []string{"", "   \n\n  \n"} {
		chunks := c.Segment(Document{SourceFile: "empty.md", Content: content})
		if len(chunks) != 0 {
			t.Errorf("Segment(%q) = %d chunks, want 0", content, len(chunks))
		}
	}
}

func TestSegment_SmallSectionSingleChunk(t *testing.T) {
	c := testChunker(t, defaultTestConfig())

	doc := Document{
		SourceFile: "small.md",
		Content:    "# Overview\n\nA short section that easily fits one chunk.\n",
	}
	chunks := c.Segment(doc)
	if len(chunks) != 1 {
		t.Fatalf("Segment() = %d chunks, want 1", len(chunks))
	}
	got := chunks[0]
	if got.SourceFile != "small.md" {
		t.Errorf("SourceFile = %q, want %q", got.SourceFile, "small.md")
	}
	if got.SectionTitle != "Overview" || got.SectionLevel != 1 {
		t.Errorf("section = (%q, %d), want (Overview, 1)", got.SectionTitle, got.SectionLevel)
	}
	if got.ChunkIndex != 0 {
		t.Errorf("ChunkIndex = %d, want 0", got.ChunkIndex)
	}
	if got.TokenCount == 0 {
		t.Error("TokenCount = 0, want > 0")
	}
}

// sentence is ~19 tokens at 4 runes/token.
const sentence = "This paragraph talks about infrastructure design and general planning in detail."

// paragraph builds a ~150 token paragraph of repeated sentences.
func paragraph() string {
	return strings.TrimSpace(strings.Repeat(sentence+" ", 8))
}

func TestSegment_OversizedSectionSplitsWithOverlap(t *testing.T) {
	// Section A ~300 tokens under max=750: one chunk.
	// Section B ~900 tokens: exactly two chunks, the second seeded with
	// the overlap excerpt from the first.
	c := testChunker(t, defaultTestConfig())

	para := paragraph()
	sectionA := "# Section A\n\n" + para + "\n\n" + para + "\n"
	sectionB := "# Section B\n\n" + strings.Join([]string{para, para, para, para, para, para}, "\n\n") + "\n"

	chunks := c.Segment(Document{SourceFile: "doc.md", Content: sectionA + sectionB})

	var a, b []knowledge.Chunk
	for _, ch := range chunks {
		switch ch.SectionTitle {
		case "Section A":
			a = append(a, ch)
		case "Section B":
			b = append(b, ch)
		}
	}
	if len(a) != 1 {
		t.Fatalf("section A chunks = %d, want 1", len(a))
	}
	if len(b) != 2 {
		t.Fatalf("section B chunks = %d, want 2", len(b))
	}
	for _, ch := range b {
		if ch.TokenCount > 750 {
			t.Errorf("section B chunk exceeds max: %d tokens", ch.TokenCount)
		}
	}

	// The last sentence of the first B-chunk fits the 50-token overlap
	// budget, so the second B-chunk must begin with it.
	wantOverlap := strings.TrimSuffix(sentence, ".")
	if !strings.HasPrefix(b[1].Content, wantOverlap) {
		t.Errorf("second chunk does not begin with overlap excerpt:\ngot prefix %q\nwant %q",
			b[1].Content[:min(len(b[1].Content), 100)], wantOverlap)
	}
}

func TestSegment_OverlapFallsBackToLastTokens(t *testing.T) {
	// A chunk whose sentences all exceed the overlap budget falls back to
	// the literal last N tokens.
	cfg := defaultTestConfig()
	cfg.MaxChunkTokens = 100
	cfg.OverlapTokens = 5
	c := testChunker(t, cfg)

	// Paragraphs with no sentence terminators, ~75 tokens each.
	long := strings.Repeat("alpha beta gamma delta ", 13)
	doc := Document{
		SourceFile: "long.md",
		Content:    "# L\n\n" + long + "\n\n" + long + "\n",
	}
	chunks := c.Segment(doc)
	if len(chunks) < 2 {
		t.Fatalf("Segment() = %d chunks, want >= 2", len(chunks))
	}

	first := chunks[0].Content
	counter := tokenizer.New(4)
	wantTail := strings.TrimSpace(counter.Tail(first, 5))
	if !strings.HasPrefix(chunks[1].Content, wantTail) {
		t.Errorf("second chunk prefix = %q, want literal tail %q",
			chunks[1].Content[:min(len(chunks[1].Content), 40)], wantTail)
	}
}

func TestSegment_OversizedParagraphEmittedUnsplit(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MaxChunkTokens = 50
	cfg.OverlapTokens = 5
	c := testChunker(t, cfg)

	// One paragraph of ~150 tokens, alone in its section.
	doc := Document{
		SourceFile: "big.md",
		Content:    "# Big\n\n" + paragraph() + "\n",
	}
	chunks := c.Segment(doc)

	// The heading block and the paragraph may land in separate chunks,
	// but the oversized paragraph itself must appear whole in exactly one.
	var holding int
	for _, ch := range chunks {
		if strings.Contains(ch.Content, paragraph()) {
			holding++
		}
	}
	if holding != 1 {
		t.Errorf("oversized paragraph appears whole in %d chunks, want 1", holding)
	}
}

func TestSegment_ChunkIndexIsDocumentOrder(t *testing.T) {
	c := testChunker(t, defaultTestConfig())

	doc := Document{
		SourceFile: "multi.md",
		Content:    "# One\n\nfirst body\n\n## Two\n\nsecond body\n\n# Three\n\nthird body\n",
	}
	chunks := c.Segment(doc)
	if len(chunks) != 3 {
		t.Fatalf("Segment() = %d chunks, want 3", len(chunks))
	}
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has ChunkIndex %d", i, ch.ChunkIndex)
		}
	}
	if chunks[1].SectionLevel != 2 {
		t.Errorf("second section level = %d, want 2", chunks[1].SectionLevel)
	}
}

func TestSegment_ContentBeforeFirstHeading(t *testing.T) {
	c := testChunker(t, defaultTestConfig())

	doc := Document{
		SourceFile: "intro.md",
		Content:    "leading text before any heading\n\n# First\n\nbody\n",
	}
	chunks := c.Segment(doc)
	if len(chunks) != 2 {
		t.Fatalf("Segment() = %d chunks, want 2", len(chunks))
	}
	if chunks[0].SectionTitle != "Introduction" || chunks[0].SectionLevel != 0 {
		t.Errorf("implicit section = (%q, %d), want (Introduction, 0)",
			chunks[0].SectionTitle, chunks[0].SectionLevel)
	}
}

func TestCategorize(t *testing.T) {
	c := testChunker(t, defaultTestConfig())

	tests := []struct {
		name    string
		content string
		title   string
		wantCat string
		wantSub string
	}{
		{
			name:    "first match wins in table order",
			content: "Running workloads on AWS can reduce cost significantly.",
			wantCat: "AWS Cloud",
			wantSub: "Cost Optimization",
		},
		{
			name:    "single match has no subcategory",
			content: "General pricing considerations.",
			wantCat: "Cost Optimization",
			wantSub: "",
		},
		{
			name:    "title participates in matching",
			content: "Nothing relevant here.",
			title:   "Debug checklist",
			wantCat: "Troubleshooting",
			wantSub: "",
		},
		{
			name:    "no match falls back to default",
			content: "Completely unrelated text.",
			wantCat: knowledge.DefaultCategory,
			wantSub: "",
		},
		{
			name:    "matching is case-insensitive",
			content: "EC2 INSTANCES EVERYWHERE",
			wantCat: "AWS Cloud",
			wantSub: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, sub := c.categorize(tt.content, tt.title)
			if cat != tt.wantCat || sub != tt.wantSub {
				t.Errorf("categorize() = (%q, %q), want (%q, %q)", cat, sub, tt.wantCat, tt.wantSub)
			}
		})
	}
}

func TestHashContent(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		if hashContent("same text") != hashContent("same text") {
			t.Error("hashContent() not deterministic for identical content")
		}
	})
	t.Run("distinct content distinct digest", func(t *testing.T) {
		if hashContent("text a") == hashContent("text b") {
			t.Error("hashContent() collided for distinct content")
		}
	})
	t.Run("hex encoded sha256", func(t *testing.T) {
		if got := len(hashContent("x")); got != 64 {
			t.Errorf("digest length = %d, want 64", got)
		}
	})
}
