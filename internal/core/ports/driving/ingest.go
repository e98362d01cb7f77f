package driving

import (
	"context"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// UploadRequest carries one uploaded file into the pipeline
type UploadRequest struct {
	UserID       string
	FileName     string
	DeclaredMime string
	Data         []byte
}

// IngestService drives uploaded files through validation, parsing,
// chunking, scoring and the graph write. Upload answers immediately;
// heavy processing happens on the worker via file_process tasks.
type IngestService interface {
	// Upload validates and stores an upload, then either processes it
	// inline (small files) or enqueues a file_process task. The receipt's
	// outcome is processing, duplicate or error.
	Upload(ctx context.Context, req UploadRequest) (*domain.UploadReceipt, error)

	// ProcessStoredFile runs the pipeline for a previously stored upload.
	// This is the worker-side entry point for file_process tasks.
	ProcessStoredFile(ctx context.Context, fileID string) error

	// GetFile reports the pipeline state of one upload.
	// Callers only see their own uploads.
	GetFile(ctx context.Context, userID, fileID string) (*domain.UploadedFile, error)

	// ListFiles lists a user's live upload records
	ListFiles(ctx context.Context, userID string) ([]*domain.UploadedFile, error)
}
