package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/engram-labs/engram-core/internal/chunker"
	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
	"github.com/engram-labs/engram-core/internal/normalisers"
	"github.com/engram-labs/engram-core/internal/postprocessors"
	"github.com/engram-labs/engram-core/internal/quality"
	"github.com/engram-labs/engram-core/internal/validator"
)

// fanOutStagger spaces the per-user jobs of one fan-out batch so the
// batch cannot hit an external API all at once, however many users are
// eligible. Jitter is added on top by the scheduler.
const fanOutStagger = 1000 * time.Millisecond

// defaultLeaseTTL bounds how long one per-(user, source) sync may hold
// its lease before a crashed worker's lease expires on its own.
const defaultLeaseTTL = 5 * time.Minute

// SyncRunner executes sync tasks pulled off the queue. A fan-out task
// expands into staggered per-user tasks; a per-user task pulls records
// from the user's integration and writes them into the graph.
//
// Runners share no state with each other: eligibility, failure history
// and deduplication all live in the durable stores.
type SyncRunner struct {
	syncStore   driven.SyncStateStore
	graphStore  driven.GraphStore
	factory     driven.IntegrationFactory
	lock        driven.DistributedLock
	scheduler   *Scheduler
	embedder    driven.EmbeddingAdapter
	normalisers *normalisers.Registry
	pipeline    *postprocessors.Pipeline
	logger      *slog.Logger

	threshold       time.Duration
	leaseTTL        time.Duration
	reviewThreshold float64
}

// SyncRunnerConfig holds dependencies for the sync runner.
// Embedder is optional; when nil chunks are written without vectors.
// Normalisers and Pipeline default to the standard registry and the
// standard post-chunk cleanup when nil.
type SyncRunnerConfig struct {
	SyncStore   driven.SyncStateStore
	GraphStore  driven.GraphStore
	Factory     driven.IntegrationFactory
	Lock        driven.DistributedLock
	Scheduler   *Scheduler
	Embedder    driven.EmbeddingAdapter
	Normalisers *normalisers.Registry
	Pipeline    *postprocessors.Pipeline
	Logger      *slog.Logger

	SyncThreshold   time.Duration // staleness cutoff for fan-out eligibility (default 15m)
	LeaseTTL        time.Duration // per-(user, source) lease TTL (default 5m)
	ReviewThreshold float64       // confidence below this flags documents for review (default 0.8)
}

// NewSyncRunner creates a sync runner
func NewSyncRunner(cfg SyncRunnerConfig) *SyncRunner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.SyncThreshold
	if threshold <= 0 {
		threshold = domain.DefaultSyncThreshold
	}
	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}
	reviewThreshold := cfg.ReviewThreshold
	if reviewThreshold <= 0 {
		reviewThreshold = domain.DefaultReviewThreshold
	}
	registry := cfg.Normalisers
	if registry == nil {
		registry = normalisers.DefaultRegistry()
	}
	pipeline := cfg.Pipeline
	if pipeline == nil {
		pipeline = postprocessors.DefaultPipeline()
	}

	return &SyncRunner{
		syncStore:       cfg.SyncStore,
		graphStore:      cfg.GraphStore,
		factory:         cfg.Factory,
		lock:            cfg.Lock,
		scheduler:       cfg.Scheduler,
		embedder:        cfg.Embedder,
		normalisers:     registry,
		pipeline:        pipeline,
		logger:          logger,
		threshold:       threshold,
		leaseTTL:        leaseTTL,
		reviewThreshold: reviewThreshold,
	}
}

// EnqueueAllUserSyncs expands a fan-out task: one per-user job per
// eligible user, staggered by 1000ms per position in the batch. Returns
// the number of jobs enqueued.
func (r *SyncRunner) EnqueueAllUserSyncs(ctx context.Context, source domain.SyncSource) (int, error) {
	users, err := r.syncStore.GetUsersNeedingSync(ctx, source, r.threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to query users needing sync: %w", err)
	}

	for i, userID := range users {
		stagger := time.Duration(i) * fanOutStagger
		if _, err := r.scheduler.enqueueUserSync(ctx, source, userID, i, stagger); err != nil {
			return i, fmt.Errorf("failed to enqueue sync for user %s: %w", userID, err)
		}
	}

	r.logger.Info("sync fan-out enqueued",
		"source", source,
		"users", len(users),
	)
	return len(users), nil
}

// SyncUser pulls one source for one user. A user with no integration
// provisioned, or whose lease another worker holds, is a success no-op.
// Any real failure is recorded in the sync state before it propagates,
// so the queue consumes a retry attempt while the failure stays visible.
func (r *SyncRunner) SyncUser(ctx context.Context, userID string, source domain.SyncSource) (*domain.SyncResult, error) {
	startTime := time.Now()
	result := &domain.SyncResult{UserID: userID, Source: source}

	client, err := r.factory.ClientFor(ctx, userID, source)
	if err != nil {
		if errors.Is(err, domain.ErrNoIntegration) {
			result.Success = true
			result.NoOp = true
			result.Duration = time.Since(startTime).Seconds()
			r.logger.Debug("no integration provisioned, skipping sync",
				"user_id", userID,
				"source", source,
			)
			return result, nil
		}
		return r.failSync(ctx, result, startTime, fmt.Errorf("failed to resolve integration: %w", err))
	}

	leaseKey := driven.SyncLeaseKey(userID, string(source))
	acquired, err := r.lock.Acquire(ctx, leaseKey, r.leaseTTL)
	if err != nil {
		return r.failSync(ctx, result, startTime, fmt.Errorf("failed to acquire sync lease: %w", err))
	}
	if !acquired {
		result.Success = true
		result.NoOp = true
		result.Duration = time.Since(startTime).Seconds()
		r.logger.Debug("sync lease held elsewhere, skipping",
			"user_id", userID,
			"source", source,
		)
		return result, nil
	}
	defer func() {
		if err := r.lock.Release(ctx, leaseKey); err != nil {
			r.logger.Warn("failed to release sync lease", "key", leaseKey, "error", err)
		}
	}()

	if err := client.TestConnection(ctx); err != nil {
		return r.failSync(ctx, result, startTime, fmt.Errorf("connection test failed: %w", err))
	}

	since, err := r.lastSyncedAt(ctx, userID, source)
	if err != nil {
		return r.failSync(ctx, result, startTime, err)
	}

	records, err := client.FetchRecords(ctx, since)
	if err != nil {
		return r.failSync(ctx, result, startTime, fmt.Errorf("failed to fetch records: %w", err))
	}

	stats := domain.SyncStats{}
	for _, record := range records {
		select {
		case <-ctx.Done():
			return r.failSync(ctx, result, startTime, ctx.Err())
		default:
		}
		r.writeRecord(ctx, userID, source, record, &stats)
	}

	if err := r.syncStore.MarkSyncCompleted(ctx, userID, source); err != nil {
		r.logger.Warn("failed to mark sync completed",
			"user_id", userID,
			"source", source,
			"error", err,
		)
	}

	result.Success = true
	result.Stats = stats
	result.Duration = time.Since(startTime).Seconds()

	r.logger.Info("sync completed",
		"user_id", userID,
		"source", source,
		"records_added", stats.RecordsAdded,
		"records_updated", stats.RecordsUpdated,
		"errors", stats.Errors,
		"duration_seconds", result.Duration,
	)
	return result, nil
}

// lastSyncedAt reads the incremental cursor. A user with no state yet
// gets a full pull.
func (r *SyncRunner) lastSyncedAt(ctx context.Context, userID string, source domain.SyncSource) (*time.Time, error) {
	state, err := r.syncStore.Get(ctx, userID, source)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}
	return state.LastSyncedAt, nil
}

// writeRecord turns one pulled record into a graph document with chunks.
// Content is normalised for the record's declared MIME type before
// anything else, so the dedup hash and the persisted chunks both see the
// same text. A record whose hash already exists counts as updated, not
// added; per-record write failures are counted and logged but do not
// abort the batch.
func (r *SyncRunner) writeRecord(ctx context.Context, userID string, source domain.SyncSource, record *domain.SyncRecord, stats *domain.SyncStats) {
	content := r.normalisers.Apply(record.Content, record.ContentType())
	hash := recordHash(source, record.ExternalID, content)

	if _, err := r.graphStore.CheckDuplicate(ctx, userID, hash); err == nil {
		stats.RecordsUpdated++
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		r.logger.Warn("duplicate check failed",
			"user_id", userID,
			"external_id", record.ExternalID,
			"error", err,
		)
		stats.Errors++
		return
	}

	chunks := r.pipeline.Process(chunker.ChunkDocument(content, domain.FileTypeText))
	if len(chunks) == 0 {
		r.logger.Debug("record content below chunk floor, skipping",
			"user_id", userID,
			"external_id", record.ExternalID,
		)
		return
	}

	signals := quality.MeasureText(content, 0)
	parsed := &domain.ParseResult{
		Text:       content,
		Confidence: quality.ScorePlainText(signals),
		Format:     domain.FileTypeText,
	}
	estimate := chunker.EstimateChunkCount(content, domain.FileTypeText)
	assessment := quality.ScoreExtraction(parsed, chunks, estimate, r.reviewThreshold)

	doc := domain.NewDocument(userID, hash, recordTitle(record), domain.FileTypeText)
	doc.Source = source
	doc.ApplyAssessment(assessment)
	doc.ChunkCount = len(chunks)
	doc.Metadata = recordMetadata(record)

	for _, chunk := range chunks {
		chunk.DocumentID = doc.ID
		chunk.UserID = userID
	}
	embedChunks(ctx, r.embedder, r.logger, chunks)

	err := r.graphStore.CreateDocumentWithChunks(ctx, doc, chunks)
	switch {
	case err == nil:
		stats.RecordsAdded++
	case errors.Is(err, domain.ErrDuplicateDocument):
		// Lost a race with a concurrent sync of the same record
		stats.RecordsUpdated++
	default:
		r.logger.Warn("failed to write record",
			"user_id", userID,
			"external_id", record.ExternalID,
			"error", err,
		)
		stats.Errors++
	}
}

// failSync records the failure for observability, then returns the error
// so the queue's retry policy consumes an attempt. The bookkeeping write
// is diagnostics only: its own failure is logged, never propagated.
func (r *SyncRunner) failSync(ctx context.Context, result *domain.SyncResult, startTime time.Time, err error) (*domain.SyncResult, error) {
	result.Success = false
	result.Error = err.Error()
	result.Duration = time.Since(startTime).Seconds()

	if markErr := r.syncStore.MarkSyncFailed(ctx, result.UserID, result.Source, err.Error()); markErr != nil {
		r.logger.Warn("failed to record sync failure",
			"user_id", result.UserID,
			"source", result.Source,
			"error", markErr,
		)
	}

	r.logger.Error("sync failed",
		"user_id", result.UserID,
		"source", result.Source,
		"duration_seconds", result.Duration,
		"error", err,
	)
	return result, err
}

// recordHash derives the dedup key for a pulled record from its
// normalised content. The external ID participates so two records with
// identical text stay distinct; a content edit under the same external
// ID hashes to a new document, while formatting-only churn in what the
// provider ships does not.
func recordHash(source domain.SyncSource, externalID, content string) string {
	return validator.CalculateFileHash([]byte(string(source) + ":" + externalID + "\n" + content))
}

func recordTitle(record *domain.SyncRecord) string {
	if title := record.Attributes["title"]; title != "" {
		return title
	}
	return record.Kind + " " + record.ExternalID
}

func recordMetadata(record *domain.SyncRecord) map[string]string {
	metadata := map[string]string{
		"external_id": record.ExternalID,
		"kind":        record.Kind,
	}
	if record.OccurredAt != nil {
		metadata["occurred_at"] = record.OccurredAt.Format(time.RFC3339)
	}
	for k, v := range record.Attributes {
		if _, reserved := metadata[k]; !reserved {
			metadata[k] = v
		}
	}
	return metadata
}
