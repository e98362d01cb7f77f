package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.IntegrationClient = (*Client)(nil)

// Client pulls records from one source's REST API on behalf of one user.
// All sources speak the same record envelope; only the base URL and
// credentials differ.
type Client struct {
	source     domain.SyncSource
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates an API client for one source. A nil httpClient gets a
// default with a 30 second timeout.
func NewClient(source domain.SyncSource, baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		source:     source,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		maxRetries: 3,
	}
}

// Source returns the sync source this client pulls from.
func (c *Client) Source() domain.SyncSource {
	return c.source
}

// remoteRecord is the wire shape of one record in the provider envelope.
type remoteRecord struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Content    string            `json:"content"`
	OccurredAt *time.Time        `json:"occurred_at,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// recordsResponse is the paginated envelope returned by /records.
type recordsResponse struct {
	Records    []remoteRecord `json:"records"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// FetchRecords pulls records changed since the given time, following the
// provider's cursor until exhausted. A nil since means a full pull.
func (c *Client) FetchRecords(ctx context.Context, since *time.Time) ([]*domain.SyncRecord, error) {
	var records []*domain.SyncRecord
	cursor := ""

	for {
		path := "/records?per_page=100"
		if since != nil {
			path += "&since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
		}
		if cursor != "" {
			path += "&cursor=" + url.QueryEscape(cursor)
		}

		resp, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return nil, err
		}

		var page recordsResponse
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}

		for _, r := range page.Records {
			records = append(records, &domain.SyncRecord{
				ExternalID: r.ID,
				Kind:       r.Kind,
				Content:    r.Content,
				OccurredAt: r.OccurredAt,
				Attributes: r.Attributes,
			})
		}

		if page.NextCursor == "" {
			return records, nil
		}
		cursor = page.NextCursor
	}
}

// TestConnection verifies the credentials still work.
func (c *Client) TestConnection(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/ping")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// doRequest performs an authenticated request with retry logic. Rate limit
// responses honor Retry-After; server errors back off per attempt.
func (c *Client) doRequest(ctx context.Context, method, path string) (*http.Response, error) {
	var resp *http.Response
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait <= 0 || wait > 5*time.Minute {
				wait = time.Duration(attempt+1) * time.Second
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		// Success or non-retryable error
		if resp.StatusCode < 500 {
			break
		}

		// Server error - retry with backoff
		resp.Body.Close()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s API returned %d", domain.ErrTokenInvalid, c.source, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("%s API error %d: %s", c.source, resp.StatusCode, string(body))
	}

	return resp, nil
}

func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
