package domain

import "time"

// Integration is a user's authenticated connection to one sync source.
// Absence of an integration is an expected state: a per-user sync for an
// unprovisioned source completes as a no-op, not a failure.
type Integration struct {
	ID     string     `json:"id"`
	UserID string     `json:"user_id"`
	Source SyncSource `json:"source"`

	// Secrets holds decrypted credentials. Populated only when fetched
	// for use; nil when listing.
	Secrets *IntegrationSecrets `json:"-"`

	// Endpoint overrides the provider's default API base URL (tests,
	// self-hosted deployments).
	Endpoint string `json:"endpoint,omitempty"`

	// AccountID is the provider-side account identifier, for display
	AccountID string `json:"account_id,omitempty"`

	Enabled     bool       `json:"enabled"`
	TokenExpiry *time.Time `json:"token_expiry,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// IntegrationSecrets carries decrypted credential material. Values are
// encrypted at rest and decrypted on retrieval, never logged.
type IntegrationSecrets struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
}

// BearerToken returns whichever credential should go on the wire
func (s *IntegrationSecrets) BearerToken() string {
	if s == nil {
		return ""
	}
	if s.AccessToken != "" {
		return s.AccessToken
	}
	return s.APIKey
}

// IntegrationSummary is the secret-free view used for listing
type IntegrationSummary struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Source      SyncSource `json:"source"`
	AccountID   string     `json:"account_id,omitempty"`
	Enabled     bool       `json:"enabled"`
	TokenExpiry *time.Time `json:"token_expiry,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// ToSummary strips secrets for listing
func (i *Integration) ToSummary() *IntegrationSummary {
	return &IntegrationSummary{
		ID:          i.ID,
		UserID:      i.UserID,
		Source:      i.Source,
		AccountID:   i.AccountID,
		Enabled:     i.Enabled,
		TokenExpiry: i.TokenExpiry,
		CreatedAt:   i.CreatedAt,
		LastUsedAt:  i.LastUsedAt,
	}
}

// TokenExpired reports whether the stored token is past its expiry
func (i *Integration) TokenExpired() bool {
	if i.TokenExpiry == nil {
		return false
	}
	return time.Now().After(*i.TokenExpiry)
}

// HasSecrets reports whether credentials are loaded
func (i *Integration) HasSecrets() bool {
	return i.Secrets != nil
}
