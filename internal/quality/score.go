// Package quality scores lossy text extraction. Every function here is
// pure: parsers measure the extracted text into TextSignals and the
// scoring functions fold those measurements into a confidence in [0,1].
// Low confidence is never an error, it is data the review loop consumes.
package quality

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// Confidence baselines and thresholds for PDF extraction. Average
// characters per page below ScannedPageChars signals an image-only or
// scanned document, which cannot be extracted without OCR.
const (
	ScannedPageChars = 50
	SparsePageChars  = 200

	scannedConfidence = 0.3
	sparseConfidence  = 0.7
	highConfidence    = 0.95
)

// excessWhitespace is the whitespace density above which PDF layout
// extraction is assumed to have produced padding artifacts.
const excessWhitespace = 0.6

// TextSignals are the structural measurements scoring works from
type TextSignals struct {
	// Chars is the total rune count of the extracted text
	Chars int

	// Pages is the page count for paged formats, zero otherwise
	Pages int

	// ReplacementRatio is the U+FFFD density, signalling encoding failures
	ReplacementRatio float64

	// WhitespaceRatio is the whitespace density of the text
	WhitespaceRatio float64
}

// CharsPerPage returns the average extraction yield per page
func (s TextSignals) CharsPerPage() float64 {
	if s.Pages <= 0 {
		return float64(s.Chars)
	}
	return float64(s.Chars) / float64(s.Pages)
}

// MeasureText derives TextSignals from extracted text
func MeasureText(text string, pages int) TextSignals {
	var total, replacements, whitespace int
	for _, r := range text {
		total++
		switch {
		case r == utf8.RuneError:
			replacements++
		case unicode.IsSpace(r):
			whitespace++
		}
	}

	signals := TextSignals{Chars: total, Pages: pages}
	if total > 0 {
		signals.ReplacementRatio = float64(replacements) / float64(total)
		signals.WhitespaceRatio = float64(whitespace) / float64(total)
	}
	return signals
}

// ScorePDF scores a PDF extraction. The per-page yield picks the
// baseline, which is then discounted by the replacement-character ratio
// and, past the excess threshold, by the whitespace ratio.
func ScorePDF(s TextSignals) float64 {
	var base float64
	switch cpp := s.CharsPerPage(); {
	case cpp < ScannedPageChars:
		base = scannedConfidence
	case cpp < SparsePageChars:
		base = sparseConfidence
	default:
		base = highConfidence
	}

	score := base * (1 - s.ReplacementRatio)
	if s.WhitespaceRatio > excessWhitespace {
		score *= 1 - (s.WhitespaceRatio - excessWhitespace)
	}
	return clamp(score)
}

// ScoreDOCX scores a DOCX extraction. The XML container makes yield a
// weak signal, so only encoding failures discount the baseline.
func ScoreDOCX(s TextSignals) float64 {
	return clamp(highConfidence * (1 - s.ReplacementRatio))
}

// ScorePlainText scores text, markdown and code extraction: encoding
// failures are the only quality signal, and even a heavily mangled file
// keeps a 0.5 floor because the surviving text is still usable.
func ScorePlainText(s TextSignals) float64 {
	score := 1 - 2*s.ReplacementRatio
	if score < 0.5 {
		return 0.5
	}
	return clamp(score)
}

// ScoreExtraction folds the parser's confidence and the chunker's output
// into the final assessment. Structural shortfalls discount confidence
// before the review threshold is applied, so the review flag always
// reflects the final score.
func ScoreExtraction(result *domain.ParseResult, chunks []*domain.Chunk, estimatedChunks int, threshold float64) domain.QualityAssessment {
	confidence := result.Confidence
	warnings := append([]string(nil), result.Warnings...)

	completeness := 1.0
	switch {
	case len(chunks) == 0:
		completeness = 0
		confidence *= 0.5
		warnings = append(warnings, "no chunks produced")
	case estimatedChunks > 0 && len(chunks) < estimatedChunks/2:
		completeness = float64(len(chunks)) / float64(estimatedChunks)
		confidence *= 0.9
		warnings = append(warnings, fmt.Sprintf("chunk count %d well below estimate %d", len(chunks), estimatedChunks))
	case estimatedChunks > 0 && len(chunks) < estimatedChunks:
		completeness = float64(len(chunks)) / float64(estimatedChunks)
	}

	return domain.NewQualityAssessment(clamp(confidence), clamp(completeness), warnings, threshold)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
