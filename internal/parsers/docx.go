package parsers

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/quality"
)

// DOCXParser extracts text runs from the document XML, preserving
// paragraph boundaries as blank lines so the chunker sees them.
type DOCXParser struct{}

// NewDOCXParser creates a DOCXParser
func NewDOCXParser() *DOCXParser {
	return &DOCXParser{}
}

func (p *DOCXParser) Format() domain.FileType {
	return domain.FileTypeDOCX
}

func (p *DOCXParser) Parse(ctx context.Context, data []byte) (*domain.ParseResult, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	text, warnings := extractDocxText(content)

	signals := quality.MeasureText(text, 0)

	return &domain.ParseResult{
		Text:       text,
		Confidence: quality.ScoreDOCX(signals),
		Format:     domain.FileTypeDOCX,
		Warnings:   warnings,
	}, nil
}

// extractDocxText pulls the text runs (w:t) out of document XML and
// turns paragraph ends (w:p) into blank lines. A decode error partway
// through keeps the text gathered so far and records a warning.
func extractDocxText(content string) (string, []string) {
	var sb strings.Builder
	var warnings []string
	inTextRun := false

	decoder := xml.NewDecoder(strings.NewReader(content))
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			warnings = append(warnings, "document XML truncated")
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inTextRun = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inTextRun = false
			case "p":
				sb.WriteString("\n\n")
			}
		case xml.CharData:
			if inTextRun {
				sb.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), warnings
}
