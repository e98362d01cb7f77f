package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FileStatusStore = (*FileStatusStore)(nil)

// defaultStatusTTL matches the Redis implementation's key expiry.
const defaultStatusTTL = 24 * time.Hour

// FileStatusStore implements driven.FileStatusStore using PostgreSQL.
// It is the fallback for deployments without Redis: rows carry an
// explicit expiry, reads treat expired rows as gone, and writes prune
// whatever has lapsed so the table stays small without a reaper process.
type FileStatusStore struct {
	db  *DB
	ttl time.Duration
}

// NewFileStatusStore creates a new FileStatusStore
func NewFileStatusStore(db *DB) *FileStatusStore {
	return &FileStatusStore{db: db, ttl: defaultStatusTTL}
}

// Save stores or replaces the upload record and prunes expired rows
func (s *FileStatusStore) Save(ctx context.Context, file *domain.UploadedFile) error {
	payload, err := json.Marshal(file)
	if err != nil {
		return err
	}

	// Opportunistic prune; losing the race with another writer is fine.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM upload_status WHERE expires_at < NOW()`); err != nil {
		return err
	}

	query := `
		INSERT INTO upload_status (id, user_id, payload, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at
	`

	_, err = s.db.ExecContext(ctx, query,
		file.ID,
		file.UserID,
		payload,
		time.Now().Add(s.ttl),
		file.CreatedAt,
	)
	return err
}

// Get retrieves an upload record by ID
func (s *FileStatusStore) Get(ctx context.Context, id string) (*domain.UploadedFile, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM upload_status WHERE id = $1 AND expires_at >= NOW()`,
		id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var file domain.UploadedFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// ListByUser lists a user's live upload records, newest first
func (s *FileStatusStore) ListByUser(ctx context.Context, userID string) ([]*domain.UploadedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM upload_status WHERE user_id = $1 AND expires_at >= NOW() ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*domain.UploadedFile
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var file domain.UploadedFile
		if err := json.Unmarshal(payload, &file); err != nil {
			return nil, err
		}
		files = append(files, &file)
	}
	return files, rows.Err()
}

// Delete removes an upload record
func (s *FileStatusStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM upload_status WHERE id = $1`, id)
	return err
}
