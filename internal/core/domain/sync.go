package domain

import "time"

// SyncSource identifies an external data source the engine pulls from.
// The set is closed: unknown sources are rejected at the API boundary.
type SyncSource string

const (
	SourceCalendar SyncSource = "calendar"
	SourceContacts SyncSource = "contacts"
	SourceHealth   SyncSource = "health"
)

// AllSyncSources lists every supported source in scheduling order.
var AllSyncSources = []SyncSource{SourceCalendar, SourceContacts, SourceHealth}

// ParseSyncSource validates a source name from external input
func ParseSyncSource(s string) (SyncSource, error) {
	switch SyncSource(s) {
	case SourceCalendar, SourceContacts, SourceHealth:
		return SyncSource(s), nil
	}
	return "", ErrUnknownSource
}

// DefaultSyncThreshold is how stale a user's last sync may be before the
// fan-out step considers them eligible again.
const DefaultSyncThreshold = 15 * time.Minute

// SyncState is the durable per-(user, source) sync record. It is mutated
// only by the worker on job completion or failure and read by the fan-out
// step to select eligible users.
type SyncState struct {
	UserID            string     `json:"user_id"`
	Source            SyncSource `json:"source"`
	LastSyncedAt      *time.Time `json:"last_synced_at,omitempty"`
	LastFailureAt     *time.Time `json:"last_failure_at,omitempty"`
	LastFailureReason string     `json:"last_failure_reason,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NeedsSync reports whether this state is stale against the threshold.
// A state that has never completed a sync is always eligible.
func (s *SyncState) NeedsSync(threshold time.Duration) bool {
	if s.LastSyncedAt == nil {
		return true
	}
	return time.Since(*s.LastSyncedAt) > threshold
}

// SyncStats holds counters for one sync run
type SyncStats struct {
	RecordsAdded   int `json:"records_added"`
	RecordsUpdated int `json:"records_updated"`
	RecordsDeleted int `json:"records_deleted"`
	Errors         int `json:"errors"`
}

// Total returns the number of records touched
func (s SyncStats) Total() int {
	return s.RecordsAdded + s.RecordsUpdated + s.RecordsDeleted
}

// SyncResult is the outcome of one per-user sync execution.
// NoOp marks runs that did no work and are still successes: the user has
// no integration provisioned for the source, or another worker already
// held the sync lease.
type SyncResult struct {
	UserID   string     `json:"user_id"`
	Source   SyncSource `json:"source"`
	Success  bool       `json:"success"`
	NoOp     bool       `json:"no_op,omitempty"`
	Stats    SyncStats  `json:"stats"`
	Error    string     `json:"error,omitempty"`
	Duration float64    `json:"duration_seconds"`
}

// SyncRecord is one item pulled from an external source during a sync
type SyncRecord struct {
	ExternalID string            `json:"external_id"`
	Kind       string            `json:"kind"`
	Content    string            `json:"content"`
	OccurredAt *time.Time        `json:"occurred_at,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ContentType returns the MIME type the provider declared for Content.
// Providers that declare nothing get plain text, which is what most
// calendar and contact payloads actually are.
func (r *SyncRecord) ContentType() string {
	if ct := r.Attributes["content_type"]; ct != "" {
		return ct
	}
	return "text/plain"
}
