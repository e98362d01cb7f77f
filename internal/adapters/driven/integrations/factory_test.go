package integrations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven/mocks"
)

func testIntegration(userID string, source domain.SyncSource) *domain.Integration {
	return &domain.Integration{
		ID:      "int-" + userID + "-" + string(source),
		UserID:  userID,
		Source:  source,
		Secrets: &domain.IntegrationSecrets{AccessToken: "tok-" + userID},
		Enabled: true,
	}
}

func TestFactory_ClientFor_Unprovisioned(t *testing.T) {
	factory := NewFactory(mocks.NewMockIntegrationStore())

	_, err := factory.ClientFor(context.Background(), "user-1", domain.SourceCalendar)
	if !errors.Is(err, domain.ErrNoIntegration) {
		t.Errorf("expected ErrNoIntegration, got %v", err)
	}
}

func TestFactory_ClientFor_Disabled(t *testing.T) {
	store := mocks.NewMockIntegrationStore()
	integration := testIntegration("user-1", domain.SourceCalendar)
	integration.Enabled = false
	_ = store.Save(context.Background(), integration)

	factory := NewFactory(store)

	_, err := factory.ClientFor(context.Background(), "user-1", domain.SourceCalendar)
	if !errors.Is(err, domain.ErrNoIntegration) {
		t.Errorf("expected ErrNoIntegration for disabled integration, got %v", err)
	}
}

func TestFactory_ClientFor_ExpiredToken(t *testing.T) {
	store := mocks.NewMockIntegrationStore()
	integration := testIntegration("user-1", domain.SourceContacts)
	expiry := time.Now().Add(-time.Hour)
	integration.TokenExpiry = &expiry
	_ = store.Save(context.Background(), integration)

	factory := NewFactory(store)

	_, err := factory.ClientFor(context.Background(), "user-1", domain.SourceContacts)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestFactory_ClientFor_NoCredentials(t *testing.T) {
	store := mocks.NewMockIntegrationStore()
	integration := testIntegration("user-1", domain.SourceCalendar)
	integration.Secrets = nil
	_ = store.Save(context.Background(), integration)

	factory := NewFactory(store)

	_, err := factory.ClientFor(context.Background(), "user-1", domain.SourceCalendar)
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if errors.Is(err, domain.ErrNoIntegration) || errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("missing credentials must not map to a skip sentinel, got %v", err)
	}
}

func TestFactory_ClientFor_Success(t *testing.T) {
	store := mocks.NewMockIntegrationStore()
	integration := testIntegration("user-1", domain.SourceCalendar)
	_ = store.Save(context.Background(), integration)

	factory := NewFactory(store)

	client, err := factory.ClientFor(context.Background(), "user-1", domain.SourceCalendar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Source() != domain.SourceCalendar {
		t.Errorf("expected source calendar, got %s", client.Source())
	}

	impl := client.(*Client)
	if impl.token != "tok-user-1" {
		t.Errorf("expected access token on client, got %q", impl.token)
	}
	if impl.baseURL != defaultBaseURLs[domain.SourceCalendar] {
		t.Errorf("expected default base URL, got %s", impl.baseURL)
	}
	if integration.LastUsedAt == nil {
		t.Error("expected last used timestamp to be touched")
	}
}

func TestFactory_ClientFor_APIKeyFallback(t *testing.T) {
	store := mocks.NewMockIntegrationStore()
	integration := testIntegration("user-1", domain.SourceHealth)
	integration.Secrets = &domain.IntegrationSecrets{APIKey: "key-9"}
	_ = store.Save(context.Background(), integration)

	factory := NewFactory(store)

	client, err := factory.ClientFor(context.Background(), "user-1", domain.SourceHealth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.(*Client).token != "key-9" {
		t.Errorf("expected API key as bearer token, got %q", client.(*Client).token)
	}
}

func TestFactory_ClientFor_EndpointOverride(t *testing.T) {
	store := mocks.NewMockIntegrationStore()
	integration := testIntegration("user-1", domain.SourceCalendar)
	integration.Endpoint = "https://selfhosted.example.com/api"
	_ = store.Save(context.Background(), integration)

	factory := NewFactory(store)

	client, err := factory.ClientFor(context.Background(), "user-1", domain.SourceCalendar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.(*Client).baseURL != "https://selfhosted.example.com/api" {
		t.Errorf("expected endpoint override, got %s", client.(*Client).baseURL)
	}
}

func TestFactory_SetBaseURL(t *testing.T) {
	store := mocks.NewMockIntegrationStore()
	_ = store.Save(context.Background(), testIntegration("user-1", domain.SourceContacts))

	factory := NewFactory(store)
	factory.SetBaseURL(domain.SourceContacts, "http://127.0.0.1:9999/v1")

	client, err := factory.ClientFor(context.Background(), "user-1", domain.SourceContacts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.(*Client).baseURL != "http://127.0.0.1:9999/v1" {
		t.Errorf("expected overridden base URL, got %s", client.(*Client).baseURL)
	}
}

func TestFactory_ClientFor_UnknownSource(t *testing.T) {
	store := mocks.NewMockIntegrationStore()
	integration := testIntegration("user-1", domain.SyncSource("weather"))
	_ = store.Save(context.Background(), integration)

	factory := NewFactory(store)

	_, err := factory.ClientFor(context.Background(), "user-1", domain.SyncSource("weather"))
	if !errors.Is(err, domain.ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}

func TestFactory_SupportedSources(t *testing.T) {
	factory := NewFactory(mocks.NewMockIntegrationStore())

	sources := factory.SupportedSources()
	if len(sources) != len(domain.AllSyncSources) {
		t.Fatalf("expected %d sources, got %d", len(domain.AllSyncSources), len(sources))
	}
	for i, source := range domain.AllSyncSources {
		if sources[i] != source {
			t.Errorf("expected %s at position %d, got %s", source, i, sources[i])
		}
	}
}
