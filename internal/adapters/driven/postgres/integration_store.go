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
var _ driven.IntegrationStore = (*IntegrationStore)(nil)

// IntegrationStore implements driven.IntegrationStore using PostgreSQL.
// Credentials are sealed by the CredentialCipher on the way in and opened
// on the way out; the secrets column only ever holds ciphertext.
type IntegrationStore struct {
	db     *DB
	cipher *CredentialCipher
}

// NewIntegrationStore creates a new IntegrationStore
func NewIntegrationStore(db *DB, cipher *CredentialCipher) *IntegrationStore {
	return &IntegrationStore{db: db, cipher: cipher}
}

// Save stores a new integration or replaces a user's existing one for
// the same source.
func (s *IntegrationStore) Save(ctx context.Context, integration *domain.Integration) error {
	var secrets []byte
	if integration.Secrets != nil {
		blob, err := s.cipher.Encrypt(integration.Secrets)
		if err != nil {
			return err
		}
		secrets = blob
	}

	query := `
		INSERT INTO integrations (id, user_id, source, secrets, endpoint, account_id, enabled, token_expiry, created_at, updated_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, source) DO UPDATE SET
			secrets = EXCLUDED.secrets,
			endpoint = EXCLUDED.endpoint,
			account_id = EXCLUDED.account_id,
			enabled = EXCLUDED.enabled,
			token_expiry = EXCLUDED.token_expiry,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		integration.ID,
		integration.UserID,
		string(integration.Source),
		secrets,
		integration.Endpoint,
		integration.AccountID,
		integration.Enabled,
		NullTime(integration.TokenExpiry),
		integration.CreatedAt,
		integration.UpdatedAt,
		NullTime(integration.LastUsedAt),
	)
	return err
}

// Get retrieves a user's integration for a source with decrypted secrets
func (s *IntegrationStore) Get(ctx context.Context, userID string, source domain.SyncSource) (*domain.Integration, error) {
	query := `
		SELECT id, user_id, source, secrets, endpoint, account_id, enabled, token_expiry, created_at, updated_at, last_used_at
		FROM integrations
		WHERE user_id = $1 AND source = $2
	`

	var (
		integration domain.Integration
		srcName     string
		secrets     []byte
		tokenExpiry sql.NullTime
		lastUsed    sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, query, userID, string(source)).Scan(
		&integration.ID,
		&integration.UserID,
		&srcName,
		&secrets,
		&integration.Endpoint,
		&integration.AccountID,
		&integration.Enabled,
		&tokenExpiry,
		&integration.CreatedAt,
		&integration.UpdatedAt,
		&lastUsed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	integration.Source = domain.SyncSource(srcName)
	integration.TokenExpiry = TimePtr(tokenExpiry)
	integration.LastUsedAt = TimePtr(lastUsed)

	if len(secrets) > 0 {
		var decrypted domain.IntegrationSecrets
		if err := s.cipher.Decrypt(secrets, &decrypted); err != nil {
			return nil, err
		}
		integration.Secrets = &decrypted
	}

	return &integration, nil
}

// ListByUser retrieves a user's integrations as secret-free summaries
func (s *IntegrationStore) ListByUser(ctx context.Context, userID string) ([]*domain.IntegrationSummary, error) {
	query := `
		SELECT id, user_id, source, account_id, enabled, token_expiry, created_at, last_used_at
		FROM integrations
		WHERE user_id = $1
		ORDER BY source
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*domain.IntegrationSummary
	for rows.Next() {
		var (
			summary     domain.IntegrationSummary
			srcName     string
			tokenExpiry sql.NullTime
			lastUsed    sql.NullTime
		)
		err := rows.Scan(
			&summary.ID,
			&summary.UserID,
			&srcName,
			&summary.AccountID,
			&summary.Enabled,
			&tokenExpiry,
			&summary.CreatedAt,
			&lastUsed,
		)
		if err != nil {
			return nil, err
		}
		summary.Source = domain.SyncSource(srcName)
		summary.TokenExpiry = TimePtr(tokenExpiry)
		summary.LastUsedAt = TimePtr(lastUsed)
		summaries = append(summaries, &summary)
	}
	return summaries, rows.Err()
}

// UpdateSecrets replaces the encrypted secrets and expiry after a refresh
func (s *IntegrationStore) UpdateSecrets(ctx context.Context, id string, secrets *domain.IntegrationSecrets, expiry *time.Time) error {
	blob, err := s.cipher.Encrypt(secrets)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE integrations SET secrets = $2, token_expiry = $3, updated_at = NOW() WHERE id = $1`,
		id, blob, NullTime(expiry),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TouchLastUsed updates the last_used_at timestamp
func (s *IntegrationStore) TouchLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE integrations SET last_used_at = NOW() WHERE id = $1`,
		id,
	)
	return err
}

// Delete removes an integration by ID
func (s *IntegrationStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM integrations WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
