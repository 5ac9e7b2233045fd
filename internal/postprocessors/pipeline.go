package postprocessors

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/clubdocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline implements PostProcessorPipeline.
// It chains post-processors in order, starting with a Chunker.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
	sorted     bool
}

// NewPipeline creates a new post-processor pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]driven.PostProcessor, 0),
	}
}

// Add adds a processor to the pipeline.
// Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process turns one page into ordered passages.
func (p *Pipeline) Process(page driven.Page) []driven.Passage {
	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	processors := make([]driven.PostProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.Unlock()

	// Start with a single passage holding the whole page
	passages := []driven.Passage{
		{
			Content:     page.Text,
			Page:        page.Number,
			StartOffset: 0,
			EndOffset:   len([]rune(page.Text)),
		},
	}

	for _, proc := range processors {
		passages = proc.Process(passages)
	}

	return passages
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// DefaultPipeline creates a pipeline with the default processors.
func DefaultPipeline(maxChunkSize int) *Pipeline {
	p := NewPipeline()
	cfg := DefaultChunkConfig()
	if maxChunkSize > 0 {
		cfg.MaxChunkSize = maxChunkSize
	}
	p.Add(NewChunker(cfg))
	p.Add(NewWhitespaceNormalizer())
	return p
}

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// MaxChunkSize is the maximum characters (runes) per chunk
	MaxChunkSize int

	// PreserveSentences tries to break at sentence boundaries
	PreserveSentences bool

	// PreserveParagraphs tries to break at paragraph boundaries
	PreserveParagraphs bool
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize:       800,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

// Chunker splits text into non-overlapping passages of at most
// MaxChunkSize runes. Breaks fall after a paragraph, sentence or
// whitespace boundary when the window has one; a run with no boundary at
// all is cut at the limit so nothing is dropped.
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
func NewChunker(config ChunkConfig) *Chunker {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultChunkConfig().MaxChunkSize
	}
	return &Chunker{config: config}
}

// Process splits every incoming passage.
func (c *Chunker) Process(passages []driven.Passage) []driven.Passage {
	var result []driven.Passage
	for _, p := range passages {
		result = append(result, c.split(p)...)
	}
	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0 - chunker should be first.
func (c *Chunker) Order() int {
	return 0
}

func (c *Chunker) split(in driven.Passage) []driven.Passage {
	runes := []rune(in.Content)
	n := len(runes)
	max := c.config.MaxChunkSize

	var out []driven.Passage
	start := 0
	for start < n {
		for start < n && unicode.IsSpace(runes[start]) {
			start++
		}
		if start >= n {
			break
		}

		end := start + max
		if end >= n {
			end = n
		} else if !isCleanBreak(runes, end) {
			if bp := c.findBreakPoint(runes, start, end); bp > start {
				end = bp
			}
		}

		// Trimming only shrinks the window, so offsets stay inside it
		lead, trail := 0, 0
		for start+lead < end && unicode.IsSpace(runes[start+lead]) {
			lead++
		}
		for end-trail > start+lead && unicode.IsSpace(runes[end-trail-1]) {
			trail++
		}
		if content := string(runes[start+lead : end-trail]); content != "" {
			out = append(out, driven.Passage{
				Content:     content,
				Page:        in.Page,
				StartOffset: in.StartOffset + start + lead,
				EndOffset:   in.StartOffset + end - trail,
			})
		}
		start = end
	}
	return out
}

// isCleanBreak reports whether cutting before runes[i] splits no word.
func isCleanBreak(runes []rune, i int) bool {
	return unicode.IsSpace(runes[i]) || unicode.IsSpace(runes[i-1])
}

// findBreakPoint returns the rune index just after the best boundary in
// runes[start:maxEnd], or -1. Paragraph and sentence boundaries are only
// taken from the back half of the window to avoid tiny passages.
func (c *Chunker) findBreakPoint(runes []rune, start, maxEnd int) int {
	half := start + (maxEnd-start)/2

	if c.config.PreserveParagraphs {
		for i := maxEnd - 1; i > half; i-- {
			if runes[i] == '\n' && runes[i-1] == '\n' {
				return i + 1
			}
		}
	}

	if c.config.PreserveSentences {
		for i := maxEnd - 1; i > half; i-- {
			if unicode.IsSpace(runes[i]) && isSentenceEnd(runes[i-1]) {
				return i + 1
			}
		}
	}

	for i := maxEnd - 1; i > start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}

	return -1
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// WhitespaceNormalizer normalizes whitespace in passages.
type WhitespaceNormalizer struct{}

// Verify interface compliance
var _ driven.PostProcessor = (*WhitespaceNormalizer)(nil)

// NewWhitespaceNormalizer creates a new whitespace normalizer.
func NewWhitespaceNormalizer() *WhitespaceNormalizer {
	return &WhitespaceNormalizer{}
}

// Process collapses runs of spaces, trims lines and drops passages left blank.
func (w *WhitespaceNormalizer) Process(passages []driven.Passage) []driven.Passage {
	result := make([]driven.Passage, 0, len(passages))

	for _, p := range passages {
		content := strings.ReplaceAll(p.Content, "\r\n", "\n")
		content = strings.ReplaceAll(content, "\r", "\n")

		lines := strings.Split(content, "\n")
		for i, line := range lines {
			lines[i] = strings.Join(strings.FieldsFunc(line, func(r rune) bool {
				return r == ' ' || r == '\t'
			}), " ")
		}
		content = strings.Join(lines, "\n")

		for strings.Contains(content, "\n\n\n") {
			content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
		}

		content = strings.TrimSpace(content)

		if content != "" {
			np := p
			np.Content = content
			result = append(result, np)
		}
	}

	return result
}

// Name returns the processor name.
func (w *WhitespaceNormalizer) Name() string {
	return "whitespace-normalizer"
}

// Order returns 5 - runs after the chunker.
func (w *WhitespaceNormalizer) Order() int {
	return 5
}
