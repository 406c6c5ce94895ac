// Package kv defines the small key-value capability session state is persisted in.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is a string key-value store. Implementations must be safe for concurrent use.
//
// ttl is a retention hint only: a zero ttl keeps the value until it is deleted, and
// backends without native expiry may ignore it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Purger is implemented by backends that keep values past their ttl and need
// an explicit sweep.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
