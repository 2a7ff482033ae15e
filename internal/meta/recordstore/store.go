// Package recordstore keeps serialized metanode records outside the scene so
// they can be copied between scenes and sessions.
package recordstore

import (
	"context"
	"errors"
	"time"
)

// Store is a keyed blob store for encoded records
type Store interface {
	// Get retrieves a record
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a record with a TTL. Zero uses the default TTL and a
	// negative TTL never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a record
	Delete(ctx context.Context, key string) error

	// Clear removes every record under the store's prefix
	Clear(ctx context.Context) error

	// Exists checks if a record is present
	Exists(ctx context.Context, key string) (bool, error)

	// Keys lists stored keys without the prefix, sorted
	Keys(ctx context.Context) ([]string, error)
}

// Config holds settings shared by all backends
type Config struct {
	// DefaultTTL applies when Set is called with a zero TTL
	DefaultTTL time.Duration
	// Prefix is prepended to every key
	Prefix string
}

// DefaultConfig returns the default store configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 24 * time.Hour,
		Prefix:     "metanode:",
	}
}

// ErrMiss is returned when a key is not stored
type ErrMiss struct {
	Key string
}

func (e ErrMiss) Error() string {
	return "record not found: " + e.Key
}

// IsMiss checks if an error is a miss
func IsMiss(err error) bool {
	var miss ErrMiss
	return errors.As(err, &miss)
}
