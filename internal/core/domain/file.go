package domain

import "time"

// FileType is the closed set of upload formats the engine can extract
// text from. Detection happens by content signature in the validator;
// anything outside this set is rejected there, never deeper in the
// pipeline.
type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeDOCX     FileType = "docx"
	FileTypeText     FileType = "text"
	FileTypeMarkdown FileType = "markdown"
	FileTypeCode     FileType = "code"
)

// ParseFileType validates a format name from external input
func ParseFileType(s string) (FileType, error) {
	switch FileType(s) {
	case FileTypePDF, FileTypeDOCX, FileTypeText, FileTypeMarkdown, FileTypeCode:
		return FileType(s), nil
	}
	return "", ErrUnsupportedFileType
}

// FileStatus tracks an upload through the processing pipeline.
//
//	uploaded -> validating -> {rejected | duplicate | parsing}
//	parsing -> chunking -> scoring -> writing -> {completed | failed}
//
// rejected, duplicate and completed are terminal; failed is retryable
// under the enclosing task's retry policy.
type FileStatus string

const (
	FileStatusUploaded   FileStatus = "uploaded"
	FileStatusValidating FileStatus = "validating"
	FileStatusRejected   FileStatus = "rejected"
	FileStatusDuplicate  FileStatus = "duplicate"
	FileStatusParsing    FileStatus = "parsing"
	FileStatusChunking   FileStatus = "chunking"
	FileStatusScoring    FileStatus = "scoring"
	FileStatusWriting    FileStatus = "writing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

// IsTerminal reports whether no further transition can happen
func (s FileStatus) IsTerminal() bool {
	switch s {
	case FileStatusRejected, FileStatusDuplicate, FileStatusCompleted, FileStatusFailed:
		return true
	}
	return false
}

// UploadedFile describes one uploaded blob moving through the pipeline.
// FileHash is the idempotency key: a hash already seen for the same user
// is never reparsed.
type UploadedFile struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	StoragePath      string     `json:"storage_path"`
	FileHash         string     `json:"file_hash"`
	FileSize         int64      `json:"file_size"`
	DeclaredMimeType string     `json:"declared_mime_type"`
	DetectedType     FileType   `json:"detected_type"`
	OriginalName     string     `json:"original_name"`
	Status           FileStatus `json:"status"`
	StatusMessage    string     `json:"status_message,omitempty"`
	DocumentID       string     `json:"document_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewUploadedFile creates the initial record for an upload
func NewUploadedFile(userID, originalName, declaredMime string, size int64) *UploadedFile {
	now := time.Now()
	return &UploadedFile{
		ID:               GenerateID(),
		UserID:           userID,
		FileSize:         size,
		DeclaredMimeType: declaredMime,
		OriginalName:     originalName,
		Status:           FileStatusUploaded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// SetStatus advances the pipeline state
func (f *UploadedFile) SetStatus(status FileStatus, message string) {
	f.Status = status
	f.StatusMessage = message
	f.UpdatedAt = time.Now()
}

// ParseResult is what a format extractor returns: the raw text plus an
// estimate of how trustworthy the extraction is.
type ParseResult struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Format     FileType `json:"format"`
	PageCount  int      `json:"page_count,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// DefaultReviewThreshold is the confidence below which a document is
// flagged for human review.
const DefaultReviewThreshold = 0.8

// QualityAssessment combines parser confidence with structural checks
// over the produced chunks. Low confidence is not an error: the document
// is persisted and flagged, never dropped.
type QualityAssessment struct {
	Confidence   float64  `json:"confidence"`
	Completeness float64  `json:"completeness"`
	Warnings     []string `json:"warnings,omitempty"`
	NeedsReview  bool     `json:"needs_review"`
}

// NewQualityAssessment derives the review flag from the threshold
func NewQualityAssessment(confidence, completeness float64, warnings []string, threshold float64) QualityAssessment {
	return QualityAssessment{
		Confidence:   confidence,
		Completeness: completeness,
		Warnings:     warnings,
		NeedsReview:  confidence < threshold,
	}
}

// IsAcceptable is the gate consumers use before trusting extracted
// content without a human check.
func (q QualityAssessment) IsAcceptable() bool {
	return !q.NeedsReview
}

// UploadOutcome is what the upload endpoint reports immediately;
// processing itself is asynchronous.
type UploadOutcome string

const (
	UploadOutcomeProcessing UploadOutcome = "processing"
	UploadOutcomeDuplicate  UploadOutcome = "duplicate"
	UploadOutcomeError      UploadOutcome = "error"
)

// UploadReceipt is returned to the uploader
type UploadReceipt struct {
	Outcome    UploadOutcome `json:"outcome"`
	FileID     string        `json:"file_id,omitempty"`
	DocumentID string        `json:"document_id,omitempty"`
	Error      string        `json:"error,omitempty"`
}
