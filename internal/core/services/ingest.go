package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/engram-labs/engram-core/internal/chunker"
	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
	"github.com/engram-labs/engram-core/internal/core/ports/driving"
	"github.com/engram-labs/engram-core/internal/parsers"
	"github.com/engram-labs/engram-core/internal/postprocessors"
	"github.com/engram-labs/engram-core/internal/quality"
	"github.com/engram-labs/engram-core/internal/validator"
)

// defaultInlineLimit is the size at or below which an upload is processed
// within the request instead of through a file_process task.
const defaultInlineLimit = 1 << 20 // 1MB

// Ensure IngestService implements the driving port
var _ driving.IngestService = (*IngestService)(nil)

// IngestService drives uploaded files through the processing pipeline:
//
//	uploaded -> validating -> {rejected | duplicate | parsing}
//	parsing -> chunking -> scoring -> writing -> {completed | failed}
//
// The upload call always answers immediately. Validation and the
// duplicate check run inline because both need only a hash and a content
// sniff; parsing and everything after runs inline for small files and on
// the worker for large ones.
type IngestService struct {
	validator   *validator.Validator
	parsers     *parsers.Registry
	blobStore   driven.BlobStore
	graphStore  driven.GraphStore
	statusStore driven.FileStatusStore
	queue       driven.TaskQueue
	embedder    driven.EmbeddingAdapter
	pipeline    *postprocessors.Pipeline
	logger      *slog.Logger

	inlineLimit     int64
	reviewThreshold float64
}

// IngestServiceConfig holds dependencies for the ingest pipeline.
// Embedder is optional; when nil chunks are written without vectors.
// Pipeline defaults to the standard post-chunk cleanup when nil.
type IngestServiceConfig struct {
	Validator   *validator.Validator
	Parsers     *parsers.Registry
	BlobStore   driven.BlobStore
	GraphStore  driven.GraphStore
	StatusStore driven.FileStatusStore
	Queue       driven.TaskQueue
	Embedder    driven.EmbeddingAdapter
	Pipeline    *postprocessors.Pipeline
	Logger      *slog.Logger

	InlineLimit     int64   // max size processed inside the upload request (default 1MB)
	ReviewThreshold float64 // confidence below this flags documents for review (default 0.8)
}

// NewIngestService creates the ingest pipeline
func NewIngestService(cfg IngestServiceConfig) *IngestService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	inlineLimit := cfg.InlineLimit
	if inlineLimit <= 0 {
		inlineLimit = defaultInlineLimit
	}
	reviewThreshold := cfg.ReviewThreshold
	if reviewThreshold <= 0 {
		reviewThreshold = domain.DefaultReviewThreshold
	}
	pipeline := cfg.Pipeline
	if pipeline == nil {
		pipeline = postprocessors.DefaultPipeline()
	}

	return &IngestService{
		validator:       cfg.Validator,
		parsers:         cfg.Parsers,
		blobStore:       cfg.BlobStore,
		graphStore:      cfg.GraphStore,
		statusStore:     cfg.StatusStore,
		queue:           cfg.Queue,
		embedder:        cfg.Embedder,
		pipeline:        pipeline,
		logger:          logger,
		inlineLimit:     inlineLimit,
		reviewThreshold: reviewThreshold,
	}
}

// Upload validates and stores an upload, then either processes it inline
// or hands it to the worker. Validation failures and duplicates are
// domain outcomes reported in the receipt, not errors; only
// infrastructure trouble returns an error.
func (s *IngestService) Upload(ctx context.Context, req driving.UploadRequest) (*domain.UploadReceipt, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user id required: %w", domain.ErrInvalidInput)
	}

	file := domain.NewUploadedFile(req.UserID, req.FileName, req.DeclaredMime, int64(len(req.Data)))
	file.SetStatus(domain.FileStatusValidating, "")

	result, err := s.validator.ValidateFile(req.Data, req.FileName)
	if err != nil {
		file.SetStatus(domain.FileStatusRejected, err.Error())
		s.saveStatus(ctx, file)
		return &domain.UploadReceipt{
			Outcome: domain.UploadOutcomeError,
			FileID:  file.ID,
			Error:   err.Error(),
		}, nil
	}
	file.FileHash = result.FileHash
	file.DetectedType = result.FileType

	// Hash is known before any parse work, so duplicates short-circuit here
	if docID, err := s.graphStore.CheckDuplicate(ctx, req.UserID, result.FileHash); err == nil {
		file.SetStatus(domain.FileStatusDuplicate, "")
		file.DocumentID = docID
		s.saveStatus(ctx, file)
		return &domain.UploadReceipt{
			Outcome:    domain.UploadOutcomeDuplicate,
			FileID:     file.ID,
			DocumentID: docID,
		}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	file.StoragePath = uploadPath(req.UserID, file.ID, req.FileName)
	if err := s.blobStore.Put(ctx, file.StoragePath, req.Data, result.DetectedMime); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	if int64(len(req.Data)) <= s.inlineLimit {
		if err := s.runPipeline(ctx, file, req.Data); err != nil {
			return nil, err
		}
		return s.receiptFor(file), nil
	}

	// Large file: the worker picks it up from here. The record must be
	// durable before the task exists, or the worker has nothing to load.
	if err := s.statusStore.Save(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to save upload record: %w", err)
	}
	if err := s.queue.Enqueue(ctx, domain.NewFileProcessTask(req.UserID, file.ID)); err != nil {
		return nil, fmt.Errorf("failed to enqueue processing task: %w", err)
	}

	s.logger.Info("upload queued for processing",
		"file_id", file.ID,
		"user_id", req.UserID,
		"size", file.FileSize,
		"type", file.DetectedType,
	)
	return &domain.UploadReceipt{
		Outcome: domain.UploadOutcomeProcessing,
		FileID:  file.ID,
	}, nil
}

// ProcessStoredFile runs the pipeline for a previously stored upload.
// Redelivered tasks for finished files are no-ops.
func (s *IngestService) ProcessStoredFile(ctx context.Context, fileID string) error {
	file, err := s.statusStore.Get(ctx, fileID)
	if err != nil {
		return fmt.Errorf("upload record %s: %w", fileID, err)
	}
	if file.Status.IsTerminal() {
		return nil
	}

	data, err := s.blobStore.Get(ctx, file.StoragePath)
	if err != nil {
		err = fmt.Errorf("failed to fetch blob: %w", err)
		file.SetStatus(domain.FileStatusFailed, err.Error())
		s.saveStatus(ctx, file)
		return err
	}

	return s.runPipeline(ctx, file, data)
}

// GetFile reports the pipeline state of one of the caller's uploads
func (s *IngestService) GetFile(ctx context.Context, userID, fileID string) (*domain.UploadedFile, error) {
	file, err := s.statusStore.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return file, nil
}

// ListFiles lists a user's live upload records
func (s *IngestService) ListFiles(ctx context.Context, userID string) ([]*domain.UploadedFile, error) {
	return s.statusStore.ListByUser(ctx, userID)
}

// runPipeline carries a validated upload from parsing to its terminal
// state. A corrupt input is terminal immediately: retrying an unchanged
// blob cannot succeed, so the task is not failed. Only infrastructure
// errors return non-nil, letting the queue consume a retry attempt.
func (s *IngestService) runPipeline(ctx context.Context, file *domain.UploadedFile, data []byte) error {
	file.SetStatus(domain.FileStatusParsing, "")
	s.saveStatus(ctx, file)

	parsed, err := s.parsers.Parse(ctx, file.DetectedType, data)
	if err != nil {
		file.SetStatus(domain.FileStatusFailed, err.Error())
		s.saveStatus(ctx, file)
		if errors.Is(err, domain.ErrParseFailed) || errors.Is(err, domain.ErrUnsupportedFileType) {
			s.logger.Warn("upload unparseable",
				"file_id", file.ID,
				"type", file.DetectedType,
				"error", err,
			)
			return nil
		}
		return err
	}

	file.SetStatus(domain.FileStatusChunking, "")
	s.saveStatus(ctx, file)
	chunks := s.pipeline.Process(chunker.ChunkDocument(parsed.Text, file.DetectedType))

	file.SetStatus(domain.FileStatusScoring, "")
	s.saveStatus(ctx, file)
	estimate := chunker.EstimateChunkCount(parsed.Text, file.DetectedType)
	assessment := quality.ScoreExtraction(parsed, chunks, estimate, s.reviewThreshold)

	file.SetStatus(domain.FileStatusWriting, "")
	s.saveStatus(ctx, file)

	doc := domain.NewDocument(file.UserID, file.FileHash, file.OriginalName, file.DetectedType)
	doc.ApplyAssessment(assessment)
	doc.ChunkCount = len(chunks)
	doc.Metadata = map[string]string{
		"original_name": file.OriginalName,
		"declared_mime": file.DeclaredMimeType,
		"file_size":     fmt.Sprintf("%d", file.FileSize),
	}
	if parsed.PageCount > 0 {
		doc.Metadata["page_count"] = fmt.Sprintf("%d", parsed.PageCount)
	}
	for _, chunk := range chunks {
		chunk.DocumentID = doc.ID
		chunk.UserID = file.UserID
	}
	embedChunks(ctx, s.embedder, s.logger, chunks)

	err = s.graphStore.CreateDocumentWithChunks(ctx, doc, chunks)
	switch {
	case err == nil:
		file.DocumentID = doc.ID
		file.SetStatus(domain.FileStatusCompleted, "")
		s.saveStatus(ctx, file)
		s.logger.Info("upload processed",
			"file_id", file.ID,
			"document_id", doc.ID,
			"chunks", len(chunks),
			"confidence", assessment.Confidence,
			"needs_review", assessment.NeedsReview,
		)
		return nil
	case errors.Is(err, domain.ErrDuplicateDocument):
		// Lost a race with a concurrent upload of the same content
		docID, lookupErr := s.graphStore.CheckDuplicate(ctx, file.UserID, file.FileHash)
		if lookupErr != nil {
			s.logger.Warn("duplicate lookup after lost race failed",
				"file_id", file.ID,
				"error", lookupErr,
			)
		}
		file.DocumentID = docID
		file.SetStatus(domain.FileStatusDuplicate, "")
		s.saveStatus(ctx, file)
		return nil
	default:
		err = fmt.Errorf("failed to write document: %w", err)
		file.SetStatus(domain.FileStatusFailed, err.Error())
		s.saveStatus(ctx, file)
		return err
	}
}

// receiptFor maps an inline-processed file's terminal status onto the
// upload response contract.
func (s *IngestService) receiptFor(file *domain.UploadedFile) *domain.UploadReceipt {
	switch file.Status {
	case domain.FileStatusCompleted:
		return &domain.UploadReceipt{
			Outcome:    domain.UploadOutcomeProcessing,
			FileID:     file.ID,
			DocumentID: file.DocumentID,
		}
	case domain.FileStatusDuplicate:
		return &domain.UploadReceipt{
			Outcome:    domain.UploadOutcomeDuplicate,
			FileID:     file.ID,
			DocumentID: file.DocumentID,
		}
	default:
		return &domain.UploadReceipt{
			Outcome: domain.UploadOutcomeError,
			FileID:  file.ID,
			Error:   file.StatusMessage,
		}
	}
}

// saveStatus persists a pipeline transition. The status store is a
// progress surface, not the source of truth, so a failed save only logs.
func (s *IngestService) saveStatus(ctx context.Context, file *domain.UploadedFile) {
	if err := s.statusStore.Save(ctx, file); err != nil {
		s.logger.Warn("failed to save upload status",
			"file_id", file.ID,
			"status", file.Status,
			"error", err,
		)
	}
}

// uploadPath builds the blob key for an upload. The extension is kept so
// object storage stays browsable.
func uploadPath(userID, fileID, originalName string) string {
	return "uploads/" + userID + "/" + fileID + strings.ToLower(filepath.Ext(originalName))
}
