// Package cache stores routing results so that an unchanged board routed
// with an unchanged configuration is not routed twice.
//
// Backends:
//   - file: one JSON file per entry, for the command line tool
//   - redis: shared storage for several routing service instances
//   - null: caching disabled
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with optional expiry
type Cache interface {
	// Get returns the value of key; the bool is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend
	Close() error
}
