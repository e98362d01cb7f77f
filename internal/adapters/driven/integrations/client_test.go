package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

func TestNewClient_DefaultHTTPClient(t *testing.T) {
	client := NewClient(domain.SourceCalendar, "https://api.example.com/v1", "tok", nil)
	if client.httpClient == nil {
		t.Fatal("expected default http client")
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", client.httpClient.Timeout)
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	client := NewClient(domain.SourceCalendar, "https://api.example.com/v1/", "tok", nil)
	if client.baseURL != "https://api.example.com/v1" {
		t.Errorf("expected trailing slash trimmed, got %s", client.baseURL)
	}
}

func TestClient_Source(t *testing.T) {
	client := NewClient(domain.SourceContacts, "https://api.example.com/v1", "tok", nil)
	if client.Source() != domain.SourceContacts {
		t.Errorf("expected source contacts, got %s", client.Source())
	}
}

func TestClient_FetchRecords_Success(t *testing.T) {
	occurred := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/records" {
			t.Errorf("expected /records, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("per_page") != "100" {
			t.Errorf("expected per_page=100, got %q", r.URL.Query().Get("per_page"))
		}
		if r.URL.Query().Get("since") != "" {
			t.Errorf("expected no since param for full pull, got %q", r.URL.Query().Get("since"))
		}

		resp := recordsResponse{
			Records: []remoteRecord{
				{ID: "evt-1", Kind: "event", Content: "standup", OccurredAt: &occurred, Attributes: map[string]string{"location": "room 4"}},
				{ID: "evt-2", Kind: "event", Content: "retro"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(domain.SourceCalendar, server.URL, "tok-1", nil)

	records, err := client.FetchRecords(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ExternalID != "evt-1" {
		t.Errorf("expected external ID evt-1, got %s", records[0].ExternalID)
	}
	if records[0].Kind != "event" {
		t.Errorf("expected kind event, got %s", records[0].Kind)
	}
	if records[0].Content != "standup" {
		t.Errorf("expected content standup, got %s", records[0].Content)
	}
	if records[0].OccurredAt == nil || !records[0].OccurredAt.Equal(occurred) {
		t.Errorf("expected occurred_at %v, got %v", occurred, records[0].OccurredAt)
	}
	if records[0].Attributes["location"] != "room 4" {
		t.Errorf("expected location attribute, got %v", records[0].Attributes)
	}
	if records[1].OccurredAt != nil {
		t.Error("expected nil occurred_at for second record")
	}
}

func TestClient_FetchRecords_SinceParam(t *testing.T) {
	since := time.Date(2026, 1, 2, 15, 4, 5, 0, time.FixedZone("CET", 3600))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("since")
		if got != "2026-01-02T14:04:05Z" {
			t.Errorf("expected since in UTC RFC3339, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsResponse{})
	}))
	defer server.Close()

	client := NewClient(domain.SourceCalendar, server.URL, "tok", nil)

	records, err := client.FetchRecords(context.Background(), &since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records != nil {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestClient_FetchRecords_Pagination(t *testing.T) {
	var requests int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "application/json")

		switch n {
		case 1:
			if r.URL.Query().Get("cursor") != "" {
				t.Errorf("expected no cursor on first page, got %q", r.URL.Query().Get("cursor"))
			}
			_ = json.NewEncoder(w).Encode(recordsResponse{
				Records:    []remoteRecord{{ID: "c-1", Kind: "contact"}, {ID: "c-2", Kind: "contact"}},
				NextCursor: "page-2",
			})
		case 2:
			if r.URL.Query().Get("cursor") != "page-2" {
				t.Errorf("expected cursor page-2, got %q", r.URL.Query().Get("cursor"))
			}
			_ = json.NewEncoder(w).Encode(recordsResponse{
				Records: []remoteRecord{{ID: "c-3", Kind: "contact"}},
			})
		default:
			t.Errorf("unexpected request %d", n)
		}
	}))
	defer server.Close()

	client := NewClient(domain.SourceContacts, server.URL, "tok", nil)

	records, err := client.FetchRecords(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records across pages, got %d", len(records))
	}
	if records[2].ExternalID != "c-3" {
		t.Errorf("expected last record c-3, got %s", records[2].ExternalID)
	}
	if atomic.LoadInt32(&requests) != 2 {
		t.Errorf("expected 2 requests, got %d", requests)
	}
}

func TestClient_FetchRecords_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(domain.SourceHealth, server.URL, "revoked", nil)

	_, err := client.FetchRecords(context.Background(), nil)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestClient_FetchRecords_BadRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad cursor"}`))
	}))
	defer server.Close()

	client := NewClient(domain.SourceCalendar, server.URL, "tok", nil)

	_, err := client.FetchRecords(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for bad request")
	}
	if errors.Is(err, domain.ErrTokenInvalid) {
		t.Error("bad request must not map to ErrTokenInvalid")
	}
}

func TestClient_FetchRecords_RetriesServerError(t *testing.T) {
	var requests int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsResponse{
			Records: []remoteRecord{{ID: "h-1", Kind: "measurement"}},
		})
	}))
	defer server.Close()

	client := NewClient(domain.SourceHealth, server.URL, "tok", nil)

	records, err := client.FetchRecords(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record after retry, got %d", len(records))
	}
	if atomic.LoadInt32(&requests) != 2 {
		t.Errorf("expected 2 requests, got %d", requests)
	}
}

func TestClient_FetchRecords_HonorsRetryAfter(t *testing.T) {
	var requests int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsResponse{})
	}))
	defer server.Close()

	client := NewClient(domain.SourceCalendar, server.URL, "tok", nil)

	start := time.Now()
	_, err := client.FetchRecords(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("expected at least 1s wait from Retry-After, got %v", elapsed)
	}
	if atomic.LoadInt32(&requests) != 2 {
		t.Errorf("expected 2 requests, got %d", requests)
	}
}

func TestClient_FetchRecords_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(domain.SourceCalendar, server.URL, "tok", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.FetchRecords(ctx, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
}

func TestClient_FetchRecords_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(domain.SourceCalendar, server.URL, "tok", nil)

	_, err := client.FetchRecords(context.Background(), nil)
	if err == nil {
		t.Error("expected error for invalid JSON response")
	}
}

func TestClient_TestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			t.Errorf("expected /ping, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(domain.SourceCalendar, server.URL, "tok", nil)

	if err := client.TestConnection(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_TestConnection_Forbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(domain.SourceCalendar, server.URL, "tok", nil)

	err := client.TestConnection(context.Background())
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}
