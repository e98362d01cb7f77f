// Package chunker splits extracted text into overlapping, boundary-aware
// chunks sized per format. Splits prefer semantic boundaries over
// arbitrary cuts: paragraph break, then line break, then sentence
// boundary, then word boundary, then a hard character cut. Overlap
// between adjacent chunks preserves context at the edges for retrieval.
package chunker

import (
	"strings"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// Config is the target chunk size and overlap in characters
type Config struct {
	Size    int
	Overlap int
}

// ConfigFor returns the chunking parameters for a format. Dense prose
// formats share one sizing; plain text runs smaller, code larger so
// functions survive in one piece.
func ConfigFor(fileType domain.FileType) Config {
	switch fileType {
	case domain.FileTypeText:
		return Config{Size: 400, Overlap: 80}
	case domain.FileTypeCode:
		return Config{Size: 800, Overlap: 200}
	default:
		return Config{Size: 512, Overlap: 100}
	}
}

// EstimateChunkCount predicts how many chunks a text should produce.
// The quality scorer compares the real count against this.
func EstimateChunkCount(text string, fileType domain.FileType) int {
	if len(text) == 0 {
		return 0
	}
	cfg := ConfigFor(fileType)
	stride := cfg.Size - cfg.Overlap
	return (len(text) + stride - 1) / stride
}

// separator is one boundary token; keep is how many of its bytes stay
// with the left chunk when cutting.
type separator struct {
	token string
	keep  int
}

// Tiers in priority order. All tokens in a tier rank equally and the
// rightmost match wins.
var (
	paragraphTier = []separator{{"\n\n", 2}}
	lineTier      = []separator{{"\n", 1}}
	sentenceTier  = []separator{{". ", 2}, {"! ", 2}, {"? ", 2}}
	wordTier      = []separator{{" ", 1}}

	// codeTier cuts before a top-level declaration so the declaration
	// opens the next chunk.
	codeTier = []separator{{"\nfunc ", 1}, {"\ntype ", 1}, {"\nclass ", 1}, {"\ndef ", 1}, {"\n}\n", 3}}
)

func tiersFor(fileType domain.FileType) [][]separator {
	if fileType == domain.FileTypeCode {
		return [][]separator{codeTier, paragraphTier, lineTier, sentenceTier, wordTier}
	}
	return [][]separator{paragraphTier, lineTier, sentenceTier, wordTier}
}

// ChunkDocument splits text into chunks for the given format. Returned
// chunks carry Index, Content, StartChar/EndChar into the original text
// and the Overlap shared with the previous chunk; identity fields are the
// caller's to fill. Chunks trimming to fewer than domain.MinChunkLength
// characters are dropped as noise.
func ChunkDocument(text string, fileType domain.FileType) []*domain.Chunk {
	cfg := ConfigFor(fileType)
	tiers := tiersFor(fileType)

	var chunks []*domain.Chunk
	prevEnd := -1
	start := 0

	for start < len(text) {
		end := start + cfg.Size
		if end >= len(text) {
			end = len(text)
		} else {
			end = start + findSplit(text[start:end], tiers, cfg.Size/2)
		}

		if c := makeChunk(text, start, end, len(chunks), prevEnd); c != nil {
			chunks = append(chunks, c)
			prevEnd = c.EndChar
		}

		if end == len(text) {
			break
		}
		next := end - cfg.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// findSplit picks the cut position inside the window. Tiers are tried in
// priority order; a cut is only taken past minCut so splits cannot
// degenerate into slivers. Falls back to the full window (hard cut).
func findSplit(window string, tiers [][]separator, minCut int) int {
	for _, tier := range tiers {
		best := -1
		for _, sep := range tier {
			idx := strings.LastIndex(window, sep.token)
			if idx < 0 {
				continue
			}
			cut := idx + sep.keep
			if cut >= minCut && cut > best {
				best = cut
			}
		}
		if best > 0 {
			return best
		}
	}
	return len(window)
}

// makeChunk trims the window and builds the chunk, or returns nil when
// the trimmed content is below the noise floor.
func makeChunk(text string, start, end, index, prevEnd int) *domain.Chunk {
	raw := text[start:end]
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < domain.MinChunkLength {
		return nil
	}

	lead := strings.Index(raw, trimmed)
	chunkStart := start + lead
	chunkEnd := chunkStart + len(trimmed)

	overlap := 0
	if prevEnd > chunkStart {
		overlap = prevEnd - chunkStart
	}

	return &domain.Chunk{
		Index:     index,
		Content:   trimmed,
		StartChar: chunkStart,
		EndChar:   chunkEnd,
		Overlap:   overlap,
	}
}
