// Package validator is the trust boundary for uploaded bytes. The true
// file type comes from content-signature sniffing, never from the
// declared MIME type or the filename alone; the content hash is computed
// here so duplicate uploads short-circuit before any decode work.
package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// DefaultMaxFileSize caps uploads at 50MB
const DefaultMaxFileSize = 50 << 20

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// codeExtensions are text-like files chunked with code-aware boundaries
var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true,
	".tsx": true, ".java": true, ".c": true, ".h": true, ".cpp": true,
	".cc": true, ".rs": true, ".rb": true, ".php": true, ".sh": true,
	".sql": true, ".kt": true, ".swift": true, ".scala": true,
}

// Validator performs upfront checks on uploaded bytes
type Validator struct {
	maxSize int64
}

// New creates a Validator; maxSize <= 0 selects the default cap
func New(maxSize int64) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Validator{maxSize: maxSize}
}

// Result is what validation hands the pipeline
type Result struct {
	FileType     domain.FileType
	DetectedMime string
	FileHash     string
	FileSize     int64
}

// ValidateFile checks size limits, sniffs the true content type and
// computes the content hash. Unsupported formats are rejected here so
// parsers only ever receive valid variants.
func (v *Validator) ValidateFile(data []byte, filename string) (*Result, error) {
	if len(data) == 0 {
		return nil, domain.ErrEmptyFile
	}
	if int64(len(data)) > v.maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", domain.ErrFileTooLarge, len(data), v.maxSize)
	}

	mtype := mimetype.Detect(data)
	fileType, err := classify(mtype, filename)
	if err != nil {
		return nil, err
	}

	return &Result{
		FileType:     fileType,
		DetectedMime: mtype.String(),
		FileHash:     CalculateFileHash(data),
		FileSize:     int64(len(data)),
	}, nil
}

// classify maps a sniffed MIME onto the closed FileType enum. Text-like
// content is further split by extension because chunk sizing differs for
// code, markdown and prose.
func classify(mtype *mimetype.MIME, filename string) (domain.FileType, error) {
	switch {
	case mtype.Is(mimePDF):
		return domain.FileTypePDF, nil
	case mtype.Is(mimeDOCX):
		return domain.FileTypeDOCX, nil
	case mtype.Is("text/markdown"):
		return domain.FileTypeMarkdown, nil
	}

	if isTextLike(mtype) {
		switch ext := strings.ToLower(filepath.Ext(filename)); {
		case ext == ".md" || ext == ".markdown":
			return domain.FileTypeMarkdown, nil
		case codeExtensions[ext]:
			return domain.FileTypeCode, nil
		default:
			return domain.FileTypeText, nil
		}
	}

	return "", fmt.Errorf("%w: detected %s", domain.ErrUnsupportedFileType, mtype.String())
}

// isTextLike walks the MIME hierarchy looking for a text/* ancestor,
// which covers formats like CSV and XML that sniff as text subtypes.
func isTextLike(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	return false
}

// CalculateFileHash returns the SHA-256 hex digest of the content.
// This is the idempotency key for the whole pipeline.
func CalculateFileHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
