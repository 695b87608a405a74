// Package kvstore abstracts the small key-value surface the site needs:
// string counters with optional expiry. Production uses Redis; tests use
// the in-memory implementation.
package kvstore

import (
	"context"
	"time"
)

// Store is the minimal KV contract shared by the rate limiter and the
// usage counters. A zero TTL means the key never expires.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put writes value under key with the given TTL (0 = no expiry).
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
