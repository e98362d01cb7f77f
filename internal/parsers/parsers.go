// Package parsers turns validated upload bytes into text plus an
// extraction-confidence estimate. One parser per FileType variant; the
// registry is closed at construction and unknown variants are rejected
// at the validator boundary, never here.
package parsers

import (
	"context"
	"fmt"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// Parser extracts text from one file format
type Parser interface {
	// Parse extracts text and estimates extraction confidence.
	// A terminal decode failure returns domain.ErrParseFailed; a lossy
	// but usable extraction returns a result with reduced confidence.
	Parse(ctx context.Context, data []byte) (*domain.ParseResult, error)

	// Format returns the FileType this parser handles
	Format() domain.FileType
}

// Registry dispatches to the parser for a file type
type Registry struct {
	parsers map[domain.FileType]Parser
}

// NewRegistry builds the registry with every supported format wired in
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[domain.FileType]Parser)}
	r.register(NewPDFParser())
	r.register(NewDOCXParser())
	r.register(NewTextParser(domain.FileTypeText))
	r.register(NewTextParser(domain.FileTypeMarkdown))
	r.register(NewTextParser(domain.FileTypeCode))
	return r
}

func (r *Registry) register(p Parser) {
	r.parsers[p.Format()] = p
}

// Parse routes data to the parser for fileType
func (r *Registry) Parse(ctx context.Context, fileType domain.FileType, data []byte) (*domain.ParseResult, error) {
	parser, ok := r.parsers[fileType]
	if !ok {
		return nil, fmt.Errorf("%w: no parser for %s", domain.ErrUnsupportedFileType, fileType)
	}
	return parser.Parse(ctx, data)
}

// SupportedFormats lists the registered file types
func (r *Registry) SupportedFormats() []domain.FileType {
	formats := make([]domain.FileType, 0, len(r.parsers))
	for ft := range r.parsers {
		formats = append(formats, ft)
	}
	return formats
}
