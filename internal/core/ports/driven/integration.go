package driven

import (
	"context"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// IntegrationClient executes one source-specific sync for one user. A
// client is short-lived: the factory builds it with resolved credentials
// for a single job.
type IntegrationClient interface {
	// Source returns the sync source this client pulls from
	Source() domain.SyncSource

	// FetchRecords pulls records changed since the given time. A nil
	// since means a full pull.
	FetchRecords(ctx context.Context, since *time.Time) ([]*domain.SyncRecord, error)

	// TestConnection verifies the credentials still work
	TestConnection(ctx context.Context) error
}

// IntegrationFactory resolves a user's provisioned integration into a
// usable client. A user with nothing provisioned for the source yields
// domain.ErrNoIntegration, which the sync path treats as a success
// no-op, never a failure.
type IntegrationFactory interface {
	// ClientFor builds a client for the user's integration with the
	// source. Returns domain.ErrNoIntegration when none is provisioned
	// or the integration is disabled.
	ClientFor(ctx context.Context, userID string, source domain.SyncSource) (IntegrationClient, error)

	// SupportedSources returns the sources this factory can build
	SupportedSources() []domain.SyncSource
}

// IntegrationStore persists integrations with encrypted secrets.
type IntegrationStore interface {
	// Save stores a new integration or updates an existing one.
	// Secrets are encrypted before storage.
	Save(ctx context.Context, integration *domain.Integration) error

	// Get retrieves a user's integration for a source with decrypted
	// secrets. Returns domain.ErrNotFound if none exists.
	Get(ctx context.Context, userID string, source domain.SyncSource) (*domain.Integration, error)

	// ListByUser retrieves a user's integrations as summaries (no secrets).
	ListByUser(ctx context.Context, userID string) ([]*domain.IntegrationSummary, error)

	// UpdateSecrets replaces the encrypted secrets and expiry.
	// Used after a token refresh.
	UpdateSecrets(ctx context.Context, id string, secrets *domain.IntegrationSecrets, expiry *time.Time) error

	// TouchLastUsed updates the last_used_at timestamp
	TouchLastUsed(ctx context.Context, id string) error

	// Delete removes an integration by ID
	Delete(ctx context.Context, id string) error
}
