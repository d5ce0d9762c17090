package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConsumedStore records redeemed tokens in Redis so that a still-unexpired
// token cannot be replayed. Keys are SHA-256 digests of the raw token with a
// TTL matching the token's remaining validity; after expiry the codec itself
// rejects the token, so the record is no longer needed.
//
// When no Redis client is configured the store is a no-op and every token is
// treated as fresh; the lifecycle flows then fall back to state-transition
// idempotence (a confirmed flag only flips once).
type ConsumedStore struct {
	rdb    *redis.Client
	prefix string
}

func NewConsumedStore(rdb *redis.Client) *ConsumedStore {
	return &ConsumedStore{rdb: rdb, prefix: "tok:used:"}
}

// Consume marks raw as used and reports whether this call was the first to
// do so. Returns true (fresh) when Redis is unavailable.
func (s *ConsumedStore) Consume(ctx context.Context, raw string, ttl time.Duration) bool {
	if s == nil || s.rdb == nil {
		return true
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := s.rdb.SetNX(ctx, s.key(raw), 1, ttl).Result()
	if err != nil {
		// Redis being down must not lock users out of their own flows.
		return true
	}
	return ok
}

// Release forgets a consumed record so the token can be presented again.
// Used when the state change behind a redemption fails and the token should
// stay valid for a retry.
func (s *ConsumedStore) Release(ctx context.Context, raw string) {
	if s == nil || s.rdb == nil {
		return
	}
	s.rdb.Del(ctx, s.key(raw))
}

func (s *ConsumedStore) key(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return s.prefix + hex.EncodeToString(sum[:])
}
