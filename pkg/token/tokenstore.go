package tokenstore

import (
	"sync"
	"time"
)

// in-memory token revocation store. For production use Redis or DB.
// Entries expire alongside the token itself so the map stays bounded.
var (
	mu            sync.RWMutex
	revokedTokens = map[string]time.Time{}
)

// Revoke marks a jti as revoked until expiry. A zero expiry revokes for
// 24h, matching the access-token lifetime.
func Revoke(jti string, expiry time.Time) {
	if jti == "" {
		return
	}
	if expiry.IsZero() {
		expiry = time.Now().Add(24 * time.Hour)
	}
	mu.Lock()
	defer mu.Unlock()
	revokedTokens[jti] = expiry
	// lazy sweep while we hold the write lock
	now := time.Now()
	for k, exp := range revokedTokens {
		if exp.Before(now) {
			delete(revokedTokens, k)
		}
	}
}

func IsRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	mu.RLock()
	defer mu.RUnlock()
	exp, ok := revokedTokens[jti]
	return ok && exp.After(time.Now())
}
