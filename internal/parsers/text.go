package parsers

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/quality"
)

// TextParser handles the text-like formats: plain text, markdown and
// code. Markdown is kept raw rather than rendered so headers and lists
// stay visible to the chunker as structural cues. The only extraction
// risk is bad encoding, measured by replacement-character density.
type TextParser struct {
	format domain.FileType
}

// NewTextParser creates a TextParser for one text-like format
func NewTextParser(format domain.FileType) *TextParser {
	return &TextParser{format: format}
}

func (p *TextParser) Format() domain.FileType {
	return p.format
}

func (p *TextParser) Parse(ctx context.Context, data []byte) (*domain.ParseResult, error) {
	text, invalid := decodeUTF8(data)

	var warnings []string
	if invalid > 0 {
		warnings = append(warnings, "invalid UTF-8 sequences replaced")
	}

	signals := quality.MeasureText(text, 0)

	return &domain.ParseResult{
		Text:       text,
		Confidence: quality.ScorePlainText(signals),
		Format:     p.format,
		Warnings:   warnings,
	}, nil
}

// decodeUTF8 decodes bytes into a valid UTF-8 string, substituting
// U+FFFD for each invalid byte and counting the substitutions.
func decodeUTF8(data []byte) (string, int) {
	if utf8.Valid(data) {
		return string(data), 0
	}

	var sb strings.Builder
	sb.Grow(len(data))
	invalid := 0

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			invalid++
		}
		sb.WriteRune(r)
		data = data[size:]
	}
	return sb.String(), invalid
}
