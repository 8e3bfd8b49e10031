package repositories

import (
	"context"
	"time"
)

// KVStore is the persisted string key/value store backing sessions, role records and
// idempotent responses. Get reports found=false for a missing or expired key rather than
// an error. A zero ttl keeps the value until it is removed.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}
