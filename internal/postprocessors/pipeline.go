package postprocessors

import (
	"sort"
	"strings"
	"sync"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// PostProcessor transforms a document's chunk set after the chunker has
// split it. Content may be rewritten or chunks dropped; StartChar and
// EndChar keep pointing at the source slice the content came from.
type PostProcessor interface {
	// Process returns the surviving chunks, order preserved.
	Process(chunks []*domain.Chunk) []*domain.Chunk

	// Name identifies the processor in diagnostics.
	Name() string

	// Order decides the position in the pipeline; lower runs first.
	Order() int
}

// Pipeline applies post-processors to freshly chunked documents before
// they are scored for persistence. Splitting itself is the chunker's job;
// the pipeline only cleans up what the chunker produced.
type Pipeline struct {
	mu         sync.RWMutex
	processors []PostProcessor
	sorted     bool
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]PostProcessor, 0),
	}
}

// Add appends a processor. Processors run sorted by Order, not by
// registration order.
func (p *Pipeline) Add(processor PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process runs every processor in order over the chunk set.
func (p *Pipeline) Process(chunks []*domain.Chunk) []*domain.Chunk {
	p.mu.Lock()
	if !p.sorted {
		sort.Slice(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	p.mu.Unlock()

	p.mu.RLock()
	processors := make([]PostProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.RUnlock()

	for _, proc := range processors {
		chunks = proc.Process(chunks)
	}

	return chunks
}

// List returns processor names in registration order (execution order
// once Process has run).
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// DefaultPipeline creates the pipeline applied to every document:
// whitespace cleanup, then duplicate removal.
func DefaultPipeline() *Pipeline {
	p := NewPipeline()
	p.Add(NewWhitespaceNormalizer())
	p.Add(NewDeduplicator(DefaultDeduplicatorConfig()))
	return p
}

// WhitespaceNormalizer cleans each chunk's content: line endings, space
// runs, blank-line runs. A chunk whose cleaned content falls under the
// chunk floor is dropped, keeping the floor true after cleanup shrinks
// what the chunker emitted.
type WhitespaceNormalizer struct{}

// Verify interface compliance
var _ PostProcessor = (*WhitespaceNormalizer)(nil)

// NewWhitespaceNormalizer creates a whitespace normalizer.
func NewWhitespaceNormalizer() *WhitespaceNormalizer {
	return &WhitespaceNormalizer{}
}

// Process rewrites content in place and filters what falls under the
// floor. Offsets are untouched: they locate the source slice, not the
// cleaned text.
func (w *WhitespaceNormalizer) Process(chunks []*domain.Chunk) []*domain.Chunk {
	result := make([]*domain.Chunk, 0, len(chunks))

	for _, chunk := range chunks {
		content := chunk.Content

		content = strings.ReplaceAll(content, "\r\n", "\n")
		content = strings.ReplaceAll(content, "\r", "\n")

		// Collapse space runs per line, keeping the line structure
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			for strings.Contains(line, "  ") {
				line = strings.ReplaceAll(line, "  ", " ")
			}
			lines[i] = strings.TrimSpace(line)
		}
		content = strings.Join(lines, "\n")

		for strings.Contains(content, "\n\n\n") {
			content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
		}

		content = strings.TrimSpace(content)

		if len(content) >= domain.MinChunkLength {
			chunk.Content = content
			result = append(result, chunk)
		}
	}

	return result
}

// Name returns the processor name.
func (w *WhitespaceNormalizer) Name() string {
	return "whitespace-normalizer"
}

// Order returns 5; cleanup runs before deduplication so that chunks
// differing only in whitespace dedup correctly.
func (w *WhitespaceNormalizer) Order() int {
	return 5
}

// DeduplicatorConfig configures the deduplicator.
type DeduplicatorConfig struct {
	// MinDuplicateLength is the minimum chunk length considered for
	// deduplication. Shorter chunks pass through: short strings repeat
	// legitimately.
	MinDuplicateLength int
}

// DefaultDeduplicatorConfig returns the production defaults.
func DefaultDeduplicatorConfig() DeduplicatorConfig {
	return DeduplicatorConfig{
		MinDuplicateLength: 50,
	}
}

// Deduplicator drops chunks whose normalized content already appeared in
// the document. PDF extraction repeats headers and footers once per page;
// the graph needs one copy.
type Deduplicator struct {
	config DeduplicatorConfig
}

// Verify interface compliance
var _ PostProcessor = (*Deduplicator)(nil)

// NewDeduplicator creates a deduplicator with the given config.
func NewDeduplicator(config DeduplicatorConfig) *Deduplicator {
	return &Deduplicator{config: config}
}

// Process removes repeated chunks, keeping the first occurrence.
func (d *Deduplicator) Process(chunks []*domain.Chunk) []*domain.Chunk {
	if len(chunks) <= 1 {
		return chunks
	}

	seen := make(map[string]bool)
	result := make([]*domain.Chunk, 0, len(chunks))

	for _, chunk := range chunks {
		if len(chunk.Content) < d.config.MinDuplicateLength {
			result = append(result, chunk)
			continue
		}

		normalized := strings.TrimSpace(strings.ToLower(chunk.Content))

		if !seen[normalized] {
			seen[normalized] = true
			result = append(result, chunk)
		}
	}

	return result
}

// Name returns the processor name.
func (d *Deduplicator) Name() string {
	return "deduplicator"
}

// Order returns 10; deduplication sees whitespace-normalized content.
func (d *Deduplicator) Order() int {
	return 10
}
