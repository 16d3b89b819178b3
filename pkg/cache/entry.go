package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router"
)

// Entry is a cached routing outcome
type Entry struct {
	Stack     string         `json:"stack"`
	Fragment  string         `json:"fragment"` // KiCad records of every route
	Result    *router.Result `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
}

// Lookup returns the entry stored under key
func Lookup(ctx context.Context, c Cache, key string) (*Entry, bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// Entries written by another version are misses
		_ = c.Delete(ctx, key)
		return nil, false, nil
	}
	return &e, true, nil
}

// Store saves e under key
func Store(ctx context.Context, c Cache, key string, e *Entry, ttl time.Duration) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encoding cache entry")
	}
	return c.Set(ctx, key, data, ttl)
}
