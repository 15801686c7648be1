package driven

import (
	"context"
	"time"
)

// KVStore is a key-value store with per-entry expiry, used for transient
// cross-request hand-off (pending OAuth state, exchanged credentials).
// Each operation is atomic per key; concurrent writers are last-writer-wins.
type KVStore interface {
	// Set stores value under key, replacing any previous value.
	// The entry expires after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value stored under key.
	// Returns domain.ErrNotFound if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}

// GetDeleter is implemented by stores that can read and remove a key in one
// atomic step. Consumers fall back to Get followed by Delete otherwise.
type GetDeleter interface {
	// GetDel returns the value stored under key and removes it.
	// Returns domain.ErrNotFound if the key is absent or expired.
	GetDel(ctx context.Context, key string) ([]byte, error)
}

// Sweepable is implemented by stores that do not expire entries on their own
// and need expired rows removed periodically.
type Sweepable interface {
	// Cleanup removes expired entries and returns how many were removed.
	Cleanup(ctx context.Context) (int64, error)
}
