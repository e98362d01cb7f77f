package driven

import (
	"github.com/engram-labs/engram-core/internal/core/domain"
)

// AuthAdapter handles token issuance and verification for the HTTP surface,
// plus one-way hashing for stored device keys.
type AuthAdapter interface {
	// GenerateToken creates a signed token for the given user.
	GenerateToken(user *domain.User) (string, error)

	// ParseToken validates a token and returns its claims.
	// Returns domain.ErrTokenInvalid if the token is malformed and
	// domain.ErrTokenExpired if it is past its expiry.
	ParseToken(token string) (*domain.TokenClaims, error)

	// HashKey hashes a device key for storage.
	HashKey(key string) (string, error)

	// VerifyKey checks a plaintext key against a stored hash.
	VerifyKey(key, hash string) bool
}
