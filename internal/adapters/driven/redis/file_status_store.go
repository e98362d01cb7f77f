package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FileStatusStore = (*FileStatusStore)(nil)

const (
	// Key prefixes for Redis
	uploadPrefix     = "engram:upload:"
	uploadUserPrefix = "engram:upload:user:"

	// Upload records are transient; once processing settles the document
	// store is the source of truth
	uploadTTL = 24 * time.Hour

	// The per-user index outlives individual records so late readers can
	// still clean it up
	uploadIndexTTL = 48 * time.Hour
)

// FileStatusStore implements driven.FileStatusStore using Redis.
// Records expire via TTL; the per-user index is cleaned up lazily when
// listed.
type FileStatusStore struct {
	client *redis.Client
}

// NewFileStatusStore creates a new Redis-backed FileStatusStore
func NewFileStatusStore(client *redis.Client) *FileStatusStore {
	return &FileStatusStore{client: client}
}

// Save stores or replaces an upload record with a fresh TTL
func (s *FileStatusStore) Save(ctx context.Context, file *domain.UploadedFile) error {
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal upload record: %w", err)
	}

	// Use pipeline for atomic operations
	pipe := s.client.Pipeline()

	// Store record by ID
	pipe.Set(ctx, uploadPrefix+file.ID, data, uploadTTL)

	// Add to user's upload set
	pipe.SAdd(ctx, uploadUserPrefix+file.UserID, file.ID)
	pipe.Expire(ctx, uploadUserPrefix+file.UserID, uploadIndexTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save upload record: %w", err)
	}

	return nil
}

// Get retrieves an upload record by ID
func (s *FileStatusStore) Get(ctx context.Context, id string) (*domain.UploadedFile, error) {
	data, err := s.client.Get(ctx, uploadPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload record: %w", err)
	}

	var file domain.UploadedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload record: %w", err)
	}

	return &file, nil
}

// ListByUser lists a user's live upload records
func (s *FileStatusStore) ListByUser(ctx context.Context, userID string) ([]*domain.UploadedFile, error) {
	ids, err := s.client.SMembers(ctx, uploadUserPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user uploads: %w", err)
	}

	var files []*domain.UploadedFile
	var expiredIDs []string

	for _, id := range ids {
		file, err := s.Get(ctx, id)
		if err == domain.ErrNotFound {
			// Record expired, track for cleanup
			expiredIDs = append(expiredIDs, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	// Clean up expired IDs from the user's set
	if len(expiredIDs) > 0 {
		s.client.SRem(ctx, uploadUserPrefix+userID, expiredIDs)
	}

	return files, nil
}

// Delete removes an upload record and its index entry
func (s *FileStatusStore) Delete(ctx context.Context, id string) error {
	// Get record first to clean up the user index
	file, err := s.Get(ctx, id)
	if err == domain.ErrNotFound {
		return nil // Already gone
	}
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, uploadPrefix+id)
	pipe.SRem(ctx, uploadUserPrefix+file.UserID, id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete upload record: %w", err)
	}

	return nil
}
