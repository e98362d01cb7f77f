package domain

import "time"

// Role defines caller permission level
type Role string

const (
	RoleOperator Role = "operator" // sync triggers, scheduler status, review queue
	RoleUser     Role = "user"     // own uploads and sync state only
)

// User is an account whose knowledge graph the engine keeps current
type User struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Role       Role       `json:"role"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// IsOperator checks if the user holds the operator role
func (u *User) IsOperator() bool {
	return u.Role == RoleOperator
}

// CanSync reports whether background syncs should run for this account
func (u *User) CanSync() bool {
	return u.Active
}
