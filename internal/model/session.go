package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table. The raw token
// is returned to the client once and only its SHA-256 hash is stored.
type RefreshToken struct {
	ID        uint64
	AccountID uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
