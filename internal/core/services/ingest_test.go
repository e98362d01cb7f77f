package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven/mocks"
	"github.com/engram-labs/engram-core/internal/core/ports/driving"
	"github.com/engram-labs/engram-core/internal/parsers"
	"github.com/engram-labs/engram-core/internal/validator"
)

// meetingNotes is clean prose that parses at full confidence and yields
// at least one chunk.
const meetingNotes = `The migration review covered three services still on the old cluster.
Storage moves first because its failover runs are already green.

The gateway follows once its connection draining patch ships. Nothing
else blocks the cutover window planned for the end of the month.`

type ingestFixture struct {
	ingest   *IngestService
	graph    *mocks.MockGraphStore
	blobs    *mocks.MockBlobStore
	statuses *mocks.MockFileStatusStore
	queue    *mocks.MockTaskQueue
	embedder *mocks.MockEmbeddingAdapter
}

func newIngestFixture(t *testing.T, opts ...func(*IngestServiceConfig)) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		graph:    mocks.NewMockGraphStore(),
		blobs:    mocks.NewMockBlobStore(),
		statuses: mocks.NewMockFileStatusStore(),
		queue:    mocks.NewMockTaskQueue(),
		embedder: mocks.NewMockEmbeddingAdapter(),
	}
	cfg := IngestServiceConfig{
		Validator:   validator.New(0),
		Parsers:     parsers.NewRegistry(),
		BlobStore:   f.blobs,
		GraphStore:  f.graph,
		StatusStore: f.statuses,
		Queue:       f.queue,
		Embedder:    f.embedder,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.ingest = NewIngestService(cfg)
	return f
}

func uploadReq(userID, name, content string) driving.UploadRequest {
	return driving.UploadRequest{
		UserID:       userID,
		FileName:     name,
		DeclaredMime: "text/plain",
		Data:         []byte(content),
	}
}

func TestIngestService_Upload_InlineCompletesAndEmbeds(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	receipt, err := f.ingest.Upload(ctx, uploadReq("user-1", "notes.txt", meetingNotes))
	require.NoError(t, err)
	require.Equal(t, domain.UploadOutcomeProcessing, receipt.Outcome)
	require.NotEmpty(t, receipt.DocumentID)

	file, err := f.statuses.Get(ctx, receipt.FileID)
	require.NoError(t, err)
	assert.Equal(t, domain.FileStatusCompleted, file.Status)
	assert.Equal(t, receipt.DocumentID, file.DocumentID)
	assert.True(t, f.blobs.Has(file.StoragePath), "original bytes should be kept at %s", file.StoragePath)

	doc, err := f.graph.GetDocument(ctx, receipt.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", doc.UserID)
	assert.Equal(t, domain.FileTypeText, doc.FileType)
	assert.False(t, doc.NeedsReview)

	chunks, err := f.graph.GetChunks(ctx, receipt.DocumentID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, doc.ChunkCount, len(chunks))
	for _, chunk := range chunks {
		assert.Equal(t, receipt.DocumentID, chunk.DocumentID)
		assert.Equal(t, "user-1", chunk.UserID)
		assert.GreaterOrEqual(t, len(chunk.Content), domain.MinChunkLength)
		assert.Len(t, chunk.Embedding, f.embedder.Dimensions())
	}
}

func TestIngestService_Upload_RejectsUnsupportedContent(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	pngBytes := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	receipt, err := f.ingest.Upload(ctx, driving.UploadRequest{
		UserID:       "user-1",
		FileName:     "diagram.txt",
		DeclaredMime: "text/plain",
		Data:         pngBytes,
	})
	require.NoError(t, err, "a rejection is a domain outcome, not an error")
	assert.Equal(t, domain.UploadOutcomeError, receipt.Outcome)
	assert.Contains(t, receipt.Error, "unsupported file type")

	file, err := f.statuses.Get(ctx, receipt.FileID)
	require.NoError(t, err)
	assert.Equal(t, domain.FileStatusRejected, file.Status)
	assert.Zero(t, f.graph.DocumentCount())
}

func TestIngestService_Upload_DuplicateShortCircuits(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	first, err := f.ingest.Upload(ctx, uploadReq("user-1", "notes.txt", meetingNotes))
	require.NoError(t, err)
	require.Equal(t, domain.UploadOutcomeProcessing, first.Outcome)

	second, err := f.ingest.Upload(ctx, uploadReq("user-1", "renamed.txt", meetingNotes))
	require.NoError(t, err)
	assert.Equal(t, domain.UploadOutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, 1, f.graph.DocumentCount())

	file, err := f.statuses.Get(ctx, second.FileID)
	require.NoError(t, err)
	assert.Equal(t, domain.FileStatusDuplicate, file.Status)

	other, err := f.ingest.Upload(ctx, uploadReq("user-2", "notes.txt", meetingNotes))
	require.NoError(t, err)
	assert.Equal(t, domain.UploadOutcomeProcessing, other.Outcome, "dedup is per user, not global")
	assert.Equal(t, 2, f.graph.DocumentCount())
}

func TestIngestService_Upload_LargeFileGoesToWorker(t *testing.T) {
	f := newIngestFixture(t, func(cfg *IngestServiceConfig) {
		cfg.InlineLimit = 64
	})
	ctx := context.Background()

	receipt, err := f.ingest.Upload(ctx, uploadReq("user-1", "notes.txt", meetingNotes))
	require.NoError(t, err)
	assert.Equal(t, domain.UploadOutcomeProcessing, receipt.Outcome)
	assert.Empty(t, receipt.DocumentID, "processing has not happened yet")

	tasks := f.queue.EnqueuedOfType(domain.TaskTypeFileProcess)
	require.Len(t, tasks, 1)
	assert.Equal(t, receipt.FileID, tasks[0].Payload["file_id"])
	assert.Equal(t, "user-1", tasks[0].UserID)
	assert.Zero(t, f.graph.DocumentCount())
}

func TestIngestService_ProcessStoredFile_CompletesQueuedUpload(t *testing.T) {
	f := newIngestFixture(t, func(cfg *IngestServiceConfig) {
		cfg.InlineLimit = 64
	})
	ctx := context.Background()

	receipt, err := f.ingest.Upload(ctx, uploadReq("user-1", "notes.txt", meetingNotes))
	require.NoError(t, err)

	require.NoError(t, f.ingest.ProcessStoredFile(ctx, receipt.FileID))

	file, err := f.statuses.Get(ctx, receipt.FileID)
	require.NoError(t, err)
	assert.Equal(t, domain.FileStatusCompleted, file.Status)
	assert.NotEmpty(t, file.DocumentID)
	assert.Equal(t, 1, f.graph.DocumentCount())
}

func TestIngestService_ProcessStoredFile_TerminalIsNoOp(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	file := domain.NewUploadedFile("user-1", "notes.txt", "text/plain", 42)
	file.SetStatus(domain.FileStatusCompleted, "")
	require.NoError(t, f.statuses.Save(ctx, file))
	f.blobs.GetFn = func(path string) ([]byte, error) {
		t.Errorf("blob fetched for a finished upload: %s", path)
		return nil, domain.ErrNotFound
	}

	assert.NoError(t, f.ingest.ProcessStoredFile(ctx, file.ID))
}

func TestIngestService_Upload_FlagsLowConfidenceForReview(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	// Botched encoding conversion: valid UTF-8, but dense with
	// replacement characters.
	mangled := strings.Repeat("report �� ", 40)
	receipt, err := f.ingest.Upload(ctx, uploadReq("user-1", "scan.txt", mangled))
	require.NoError(t, err)
	require.Equal(t, domain.UploadOutcomeProcessing, receipt.Outcome)

	doc, err := f.graph.GetDocument(ctx, receipt.DocumentID)
	require.NoError(t, err)
	assert.True(t, doc.NeedsReview)
	assert.Equal(t, domain.ReviewStatusPending, doc.ReviewStatus)
	assert.Less(t, doc.Confidence, domain.DefaultReviewThreshold)

	waiting, err := f.graph.ListNeedingReview(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, receipt.DocumentID, waiting[0].ID)
}

func TestIngestService_GetFile_ScopedToOwner(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	receipt, err := f.ingest.Upload(ctx, uploadReq("user-1", "notes.txt", meetingNotes))
	require.NoError(t, err)

	file, err := f.ingest.GetFile(ctx, "user-1", receipt.FileID)
	require.NoError(t, err)
	assert.Equal(t, receipt.FileID, file.ID)

	_, err = f.ingest.GetFile(ctx, "user-2", receipt.FileID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEmbedChunks_AttachesVectors(t *testing.T) {
	embedder := mocks.NewMockEmbeddingAdapter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chunks := []*domain.Chunk{
		{Content: "first chunk of text"},
		{Content: "second chunk of text"},
	}

	embedChunks(context.Background(), embedder, logger, chunks)

	for i, chunk := range chunks {
		assert.Len(t, chunk.Embedding, embedder.Dimensions(), "chunk %d", i)
	}
}

func TestEmbedChunks_FailureLeavesChunksBare(t *testing.T) {
	embedder := mocks.NewMockEmbeddingAdapter()
	embedder.EmbedFn = func(texts []string) ([][]float32, error) {
		return nil, errors.New("model offline")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chunks := []*domain.Chunk{{Content: "some chunk text"}}

	embedChunks(context.Background(), embedder, logger, chunks)

	assert.Nil(t, chunks[0].Embedding, "a failed embedding must not block the write")
}

func TestEmbedChunks_VectorCountMismatchDiscarded(t *testing.T) {
	embedder := mocks.NewMockEmbeddingAdapter()
	embedder.EmbedFn = func(texts []string) ([][]float32, error) {
		return [][]float32{{0.1, 0.2}}, nil
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chunks := []*domain.Chunk{
		{Content: "first chunk of text"},
		{Content: "second chunk of text"},
	}

	embedChunks(context.Background(), embedder, logger, chunks)

	assert.Nil(t, chunks[0].Embedding)
	assert.Nil(t, chunks[1].Embedding)
}

func TestEmbedChunks_NilEmbedderIsNoOp(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chunks := []*domain.Chunk{{Content: "some chunk text"}}

	embedChunks(context.Background(), nil, logger, chunks)

	assert.Nil(t, chunks[0].Embedding)
}
