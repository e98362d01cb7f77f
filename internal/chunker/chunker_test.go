package chunker

import (
	"strings"
	"testing"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

func TestConfigFor(t *testing.T) {
	tests := []struct {
		fileType    domain.FileType
		wantSize    int
		wantOverlap int
	}{
		{domain.FileTypePDF, 512, 100},
		{domain.FileTypeDOCX, 512, 100},
		{domain.FileTypeMarkdown, 512, 100},
		{domain.FileTypeText, 400, 80},
		{domain.FileTypeCode, 800, 200},
	}

	for _, tt := range tests {
		t.Run(string(tt.fileType), func(t *testing.T) {
			cfg := ConfigFor(tt.fileType)
			if cfg.Size != tt.wantSize || cfg.Overlap != tt.wantOverlap {
				t.Errorf("ConfigFor(%s) = %d/%d, want %d/%d",
					tt.fileType, cfg.Size, cfg.Overlap, tt.wantSize, tt.wantOverlap)
			}
		})
	}
}

func TestEstimateChunkCount(t *testing.T) {
	tests := []struct {
		name     string
		textLen  int
		fileType domain.FileType
		want     int
	}{
		{"empty", 0, domain.FileTypePDF, 0},
		{"one stride exactly", 412, domain.FileTypePDF, 1},
		{"one char past a stride", 413, domain.FileTypePDF, 2},
		{"three text strides", 960, domain.FileTypeText, 3},
		{"code single stride", 600, domain.FileTypeCode, 1},
		{"code two strides", 601, domain.FileTypeCode, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("x", tt.textLen)
			if got := EstimateChunkCount(text, tt.fileType); got != tt.want {
				t.Errorf("EstimateChunkCount(len %d, %s) = %d, want %d", tt.textLen, tt.fileType, got, tt.want)
			}
		})
	}
}

func TestChunkDocument_ShortText(t *testing.T) {
	text := "This is a short note that fits in one chunk."

	chunks := ChunkDocument(text, domain.FileTypeText)

	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	c := chunks[0]
	if c.Index != 0 {
		t.Errorf("Index = %d, want 0", c.Index)
	}
	if c.Content != text {
		t.Errorf("Content = %q, want %q", c.Content, text)
	}
	if c.StartChar != 0 || c.EndChar != len(text) {
		t.Errorf("range = [%d,%d), want [0,%d)", c.StartChar, c.EndChar, len(text))
	}
	if c.Overlap != 0 {
		t.Errorf("Overlap = %d, want 0", c.Overlap)
	}
}

func TestChunkDocument_DropsNoise(t *testing.T) {
	if got := ChunkDocument("", domain.FileTypeText); got != nil {
		t.Errorf("empty text produced %d chunks", len(got))
	}
	if got := ChunkDocument("tiny", domain.FileTypeText); got != nil {
		t.Errorf("sub-minimum text produced %d chunks", len(got))
	}
	if got := ChunkDocument(strings.Repeat(" \n\t", 40), domain.FileTypeText); got != nil {
		t.Errorf("whitespace-only text produced %d chunks", len(got))
	}
}

func TestChunkDocument_PrefersParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("alpha ", 50) // 300 chars
	para2 := strings.Repeat("beta ", 60)  // 300 chars
	text := para1 + "\n\n" + para2

	chunks := ChunkDocument(text, domain.FileTypeMarkdown)

	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if want := strings.TrimSpace(para1); chunks[0].Content != want {
		t.Errorf("first chunk = %q, want first paragraph", chunks[0].Content)
	}
	if strings.Contains(chunks[0].Content, "beta") {
		t.Error("first chunk crossed the paragraph boundary")
	}
}

func TestChunkDocument_SentenceFallback(t *testing.T) {
	// One long paragraph with no line breaks forces the sentence tier.
	text := strings.Repeat("The quick brown fox jumps now. ", 20)

	chunks := ChunkDocument(text, domain.FileTypeMarkdown)

	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want at least 2", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Content, "now.") {
		t.Errorf("first chunk ends %q, want a sentence boundary", tail(chunks[0].Content))
	}
}

func TestChunkDocument_HardCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("x", 1000)

	chunks := ChunkDocument(text, domain.FileTypeText)

	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	for i, c := range chunks[1:] {
		if c.Overlap != 80 {
			t.Errorf("chunk %d Overlap = %d, want 80", i+1, c.Overlap)
		}
	}
	if chunks[2].EndChar != 1000 {
		t.Errorf("last chunk EndChar = %d, want 1000", chunks[2].EndChar)
	}
}

func TestChunkDocument_CodeBoundaries(t *testing.T) {
	alpha := "func alpha() {\n" + strings.Repeat("\talpha = alpha + 1\n", 25) + "}\n"
	beta := "func beta() {\n" + strings.Repeat("\tbeta = beta - 1\n", 20) + "}\n"
	text := alpha + beta

	chunks := ChunkDocument(text, domain.FileTypeCode)

	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want at least 2", len(chunks))
	}
	if strings.Contains(chunks[0].Content, "func beta") {
		t.Error("first chunk crossed the function boundary")
	}
}

func TestChunkDocument_MinimumLengthInvariant(t *testing.T) {
	texts := []string{
		strings.Repeat("Short line.\n", 100),
		strings.Repeat("A paragraph of reasonable length sits here.\n\n", 40),
		strings.Repeat("word ", 500),
	}

	for _, text := range texts {
		for _, c := range ChunkDocument(text, domain.FileTypeText) {
			if len(strings.TrimSpace(c.Content)) < domain.MinChunkLength {
				t.Errorf("chunk %d has length %d, want >= %d", c.Index, len(c.Content), domain.MinChunkLength)
			}
		}
	}
}

func TestChunkDocument_RangesReconstructSource(t *testing.T) {
	text := strings.Repeat("One sentence of filler text follows here. ", 30)

	chunks := ChunkDocument(text, domain.FileTypePDF)

	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want at least 2", len(chunks))
	}

	prevStart := -1
	prevEnd := -1
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d Index = %d", i, c.Index)
		}
		if c.Content != text[c.StartChar:c.EndChar] {
			t.Errorf("chunk %d content does not match its source range", i)
		}
		if c.StartChar <= prevStart {
			t.Errorf("chunk %d StartChar %d not after previous %d", i, c.StartChar, prevStart)
		}
		if prevEnd >= 0 {
			wantOverlap := prevEnd - c.StartChar
			if wantOverlap < 0 {
				wantOverlap = 0
			}
			if c.Overlap != wantOverlap {
				t.Errorf("chunk %d Overlap = %d, want %d", i, c.Overlap, wantOverlap)
			}
		}
		prevStart = c.StartChar
		prevEnd = c.EndChar
	}
}

func tail(s string) string {
	if len(s) <= 20 {
		return s
	}
	return s[len(s)-20:]
}
