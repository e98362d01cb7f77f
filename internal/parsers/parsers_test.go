package parsers

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

func TestRegistry_Parse(t *testing.T) {
	r := NewRegistry()

	result, err := r.Parse(context.Background(), domain.FileTypeText, []byte("some plain text content"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Format != domain.FileTypeText {
		t.Errorf("Format = %s, want text", result.Format)
	}
}

func TestRegistry_UnknownFormat(t *testing.T) {
	r := NewRegistry()

	_, err := r.Parse(context.Background(), domain.FileType("tiff"), []byte("data"))
	if !errors.Is(err, domain.ErrUnsupportedFileType) {
		t.Errorf("error = %v, want ErrUnsupportedFileType", err)
	}
}

func TestRegistry_SupportedFormats(t *testing.T) {
	r := NewRegistry()

	if got := len(r.SupportedFormats()); got != 5 {
		t.Errorf("len(SupportedFormats()) = %d, want 5", got)
	}
}

func TestTextParser_CleanText(t *testing.T) {
	p := NewTextParser(domain.FileTypeText)
	input := "A perfectly ordinary note.\n\nWith two paragraphs."

	result, err := p.Parse(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Text != input {
		t.Errorf("Text = %q, want input unchanged", result.Text)
	}
	if result.Confidence != 1.0 {
		t.Errorf("Confidence = %f, want 1.0", result.Confidence)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", result.Warnings)
	}
}

func TestTextParser_InvalidEncoding(t *testing.T) {
	p := NewTextParser(domain.FileTypeText)
	data := append([]byte{0xff, 0xfe}, []byte("hello world")...)

	result, err := p.Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Confidence >= 1.0 {
		t.Errorf("Confidence = %f, want < 1.0 with invalid bytes", result.Confidence)
	}
	if result.Confidence < 0.5 {
		t.Errorf("Confidence = %f, want >= 0.5 floor", result.Confidence)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Warnings = %v, want encoding warning", result.Warnings)
	}
	if !strings.Contains(result.Text, "hello world") {
		t.Errorf("Text = %q, want surviving text preserved", result.Text)
	}
}

func TestTextParser_GarbageFloorsAtHalf(t *testing.T) {
	p := NewTextParser(domain.FileTypeText)

	result, err := p.Parse(context.Background(), bytes.Repeat([]byte{0xff}, 10))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Confidence != 0.5 {
		t.Errorf("Confidence = %f, want 0.5 floor", result.Confidence)
	}
}

func TestTextParser_MarkdownStaysRaw(t *testing.T) {
	p := NewTextParser(domain.FileTypeMarkdown)
	input := "# Title\n\n- item one\n- item two\n\n## Section\n\nBody text."

	result, err := p.Parse(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Text != input {
		t.Error("markdown structure was not preserved")
	}
	if result.Format != domain.FileTypeMarkdown {
		t.Errorf("Format = %s, want markdown", result.Format)
	}
}

func TestPDFParser_MalformedInput(t *testing.T) {
	p := NewPDFParser()

	_, err := p.Parse(context.Background(), []byte("%PDF-1.4\nthis is not a real pdf body"))
	if !errors.Is(err, domain.ErrParseFailed) {
		t.Errorf("error = %v, want ErrParseFailed", err)
	}

	_, err = p.Parse(context.Background(), []byte("not a pdf at all"))
	if !errors.Is(err, domain.ErrParseFailed) {
		t.Errorf("error = %v, want ErrParseFailed", err)
	}
}

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>First paragraph of meaningful content.</w:t></w:r></w:p><w:p><w:r><w:t>Second paragraph follows here.</w:t></w:r></w:p></w:body></w:document>`

const docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

func buildDocx(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entries := []struct {
		name    string
		content string
	}{
		{"word/document.xml", docxBody},
		{"word/_rels/document.xml.rels", docxRels},
	}
	for _, e := range entries {
		f, err := w.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(e.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDOCXParser_ExtractsParagraphs(t *testing.T) {
	p := NewDOCXParser()

	result, err := p.Parse(context.Background(), buildDocx(t))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := "First paragraph of meaningful content.\n\nSecond paragraph follows here."
	if result.Text != want {
		t.Errorf("Text = %q, want %q", result.Text, want)
	}
	if result.Confidence != 0.95 {
		t.Errorf("Confidence = %f, want 0.95", result.Confidence)
	}
}

func TestDOCXParser_MalformedInput(t *testing.T) {
	p := NewDOCXParser()

	_, err := p.Parse(context.Background(), []byte("not a zip archive"))
	if !errors.Is(err, domain.ErrParseFailed) {
		t.Errorf("error = %v, want ErrParseFailed", err)
	}
}

func TestExtractDocxText_TruncatedXML(t *testing.T) {
	text, warnings := extractDocxText(`<w:document><w:body><w:p><w:r><w:t>Partial content`)

	if text != "Partial content" {
		t.Errorf("text = %q, want partial content preserved", text)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want truncation warning", warnings)
	}
}
