package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncStateStore = (*SyncStateStore)(nil)

// SyncStateStore implements driven.SyncStateStore using PostgreSQL.
// One row per (user, source); completion and failure writes are upserts
// so the first sync for a pair needs no prior provisioning.
type SyncStateStore struct {
	db *DB
}

// NewSyncStateStore creates a new SyncStateStore
func NewSyncStateStore(db *DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

// GetUsersNeedingSync returns IDs of active users whose last successful
// sync of the source is missing or older than the threshold. Ordering is
// stable (account creation) so fan-out stagger assigns consistent slots.
func (s *SyncStateStore) GetUsersNeedingSync(ctx context.Context, source domain.SyncSource, threshold time.Duration) ([]string, error) {
	query := `
		SELECT u.id
		FROM users u
		LEFT JOIN sync_states ss ON ss.user_id = u.id AND ss.source = $1
		WHERE u.active = TRUE
		  AND (ss.last_synced_at IS NULL OR ss.last_synced_at < NOW() - make_interval(secs => $2))
		ORDER BY u.created_at, u.id
	`

	rows, err := s.db.QueryContext(ctx, query, string(source), threshold.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

// MarkSyncCompleted upserts a fresh last_synced_at and clears failure fields
func (s *SyncStateStore) MarkSyncCompleted(ctx context.Context, userID string, source domain.SyncSource) error {
	query := `
		INSERT INTO sync_states (user_id, source, last_synced_at, last_failure_at, last_failure_reason, updated_at)
		VALUES ($1, $2, NOW(), NULL, '', NOW())
		ON CONFLICT (user_id, source) DO UPDATE SET
			last_synced_at = NOW(),
			last_failure_at = NULL,
			last_failure_reason = '',
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, userID, string(source))
	return err
}

// MarkSyncFailed upserts the failure timestamp and reason, leaving any
// earlier success timestamp intact.
func (s *SyncStateStore) MarkSyncFailed(ctx context.Context, userID string, source domain.SyncSource, reason string) error {
	query := `
		INSERT INTO sync_states (user_id, source, last_failure_at, last_failure_reason, updated_at)
		VALUES ($1, $2, NOW(), $3, NOW())
		ON CONFLICT (user_id, source) DO UPDATE SET
			last_failure_at = NOW(),
			last_failure_reason = EXCLUDED.last_failure_reason,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, userID, string(source), reason)
	return err
}

// Get retrieves the state for one (user, source) pair
func (s *SyncStateStore) Get(ctx context.Context, userID string, source domain.SyncSource) (*domain.SyncState, error) {
	query := `
		SELECT user_id, source, last_synced_at, last_failure_at, last_failure_reason, updated_at
		FROM sync_states
		WHERE user_id = $1 AND source = $2
	`

	return scanSyncState(s.db.QueryRowContext(ctx, query, userID, string(source)))
}

// ListByUser retrieves all states for one user
func (s *SyncStateStore) ListByUser(ctx context.Context, userID string) ([]*domain.SyncState, error) {
	query := `
		SELECT user_id, source, last_synced_at, last_failure_at, last_failure_reason, updated_at
		FROM sync_states
		WHERE user_id = $1
		ORDER BY source
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSyncStates(rows)
}

// ListBySource retrieves all states for one source
func (s *SyncStateStore) ListBySource(ctx context.Context, source domain.SyncSource) ([]*domain.SyncState, error) {
	query := `
		SELECT user_id, source, last_synced_at, last_failure_at, last_failure_reason, updated_at
		FROM sync_states
		WHERE source = $1
		ORDER BY user_id
	`

	rows, err := s.db.QueryContext(ctx, query, string(source))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSyncStates(rows)
}

// Delete removes the state for one (user, source) pair
func (s *SyncStateStore) Delete(ctx context.Context, userID string, source domain.SyncSource) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_states WHERE user_id = $1 AND source = $2`,
		userID, string(source),
	)
	return err
}

// scanner abstracts sql.Row and sql.Rows for shared scan helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanSyncState(row scanner) (*domain.SyncState, error) {
	var (
		state    domain.SyncState
		source   string
		synced   sql.NullTime
		failedAt sql.NullTime
	)

	err := row.Scan(
		&state.UserID,
		&source,
		&synced,
		&failedAt,
		&state.LastFailureReason,
		&state.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	state.Source = domain.SyncSource(source)
	state.LastSyncedAt = TimePtr(synced)
	state.LastFailureAt = TimePtr(failedAt)
	return &state, nil
}

func collectSyncStates(rows *sql.Rows) ([]*domain.SyncState, error) {
	var states []*domain.SyncState
	for rows.Next() {
		state, err := scanSyncState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}
