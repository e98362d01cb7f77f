package parsers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/quality"
)

// PDFParser extracts text per page. OCR is unsupported, so image-only
// pages extract to nothing and the per-page yield drives the confidence
// down instead of failing the parse.
type PDFParser struct{}

// NewPDFParser creates a PDFParser
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) Format() domain.FileType {
	return domain.FileTypePDF
}

func (p *PDFParser) Parse(ctx context.Context, data []byte) (result *domain.ParseResult, err error) {
	// The pdf library panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", domain.ErrParseFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
	}

	var sb strings.Builder
	var warnings []string
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			warnings = append(warnings, fmt.Sprintf("page %d is empty", i))
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("page %d extraction failed", i))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	signals := quality.MeasureText(text, pages)

	return &domain.ParseResult{
		Text:       text,
		Confidence: quality.ScorePDF(signals),
		Format:     domain.FileTypePDF,
		PageCount:  pages,
		Warnings:   warnings,
	}, nil
}
