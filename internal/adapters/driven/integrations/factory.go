package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.IntegrationFactory = (*Factory)(nil)

// Default API base URLs per source. Self-hosted deployments and tests
// override these per integration via Integration.Endpoint.
var defaultBaseURLs = map[domain.SyncSource]string{
	domain.SourceCalendar: "https://calendar-api.engram.dev/v1",
	domain.SourceContacts: "https://contacts-api.engram.dev/v1",
	domain.SourceHealth:   "https://health-api.engram.dev/v1",
}

// Factory resolves a user's provisioned integration into a short-lived
// client with decrypted credentials. Clients are built per sync job and
// never cached: credentials may rotate between jobs.
type Factory struct {
	mu         sync.RWMutex
	store      driven.IntegrationStore
	baseURLs   map[domain.SyncSource]string
	httpClient *http.Client
}

// NewFactory creates an integration factory backed by the given store.
func NewFactory(store driven.IntegrationStore) *Factory {
	baseURLs := make(map[domain.SyncSource]string, len(defaultBaseURLs))
	for source, url := range defaultBaseURLs {
		baseURLs[source] = url
	}
	return &Factory{
		store:      store,
		baseURLs:   baseURLs,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL overrides the default API base URL for a source.
func (f *Factory) SetBaseURL(source domain.SyncSource, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseURLs[source] = url
}

// ClientFor builds a client for the user's integration with the source.
// Returns domain.ErrNoIntegration when none is provisioned or the
// integration is disabled; the sync path treats that as a success no-op.
func (f *Factory) ClientFor(ctx context.Context, userID string, source domain.SyncSource) (driven.IntegrationClient, error) {
	integration, err := f.store.Get(ctx, userID, source)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoIntegration
	}
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}

	if !integration.Enabled {
		return nil, domain.ErrNoIntegration
	}
	if integration.TokenExpired() {
		return nil, fmt.Errorf("%w: integration %s", domain.ErrTokenExpired, integration.ID)
	}

	token := integration.Secrets.BearerToken()
	if token == "" {
		return nil, fmt.Errorf("integration %s has no usable credentials", integration.ID)
	}

	baseURL := integration.Endpoint
	if baseURL == "" {
		f.mu.RLock()
		baseURL = f.baseURLs[source]
		f.mu.RUnlock()
	}
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSource, source)
	}

	// Best effort; a stale last_used_at never blocks a sync
	if err := f.store.TouchLastUsed(ctx, integration.ID); err != nil {
		_ = err
	}

	return NewClient(source, baseURL, token, f.httpClient), nil
}

// SupportedSources returns the sources this factory can build.
func (f *Factory) SupportedSources() []domain.SyncSource {
	f.mu.RLock()
	defer f.mu.RUnlock()
	sources := make([]domain.SyncSource, 0, len(f.baseURLs))
	for _, source := range domain.AllSyncSources {
		if _, ok := f.baseURLs[source]; ok {
			sources = append(sources, source)
		}
	}
	return sources
}
