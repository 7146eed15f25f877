// Package cache provides byte-level caching for rendered and processed frames.
//
// Rendering a measure range through an external engraver dominates the cost
// of a run, so the pipeline caches two things:
//   - the raw PNG raster for a (score, measure range) pair
//   - the cropped and enhanced frame for a (raster, processing options) pair
//
// Keys are produced by a [Keyer] so callers never build them by hand.
//
// # Backends
//
//   - [FileCache]: JSON entries under a local directory (CLI default)
//   - [RedisCache]: a shared Redis instance for multiple hosts
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"time"
)

// Default TTLs for cached entries.
const (
	RasterTTL = 7 * 24 * time.Hour
	FrameTTL  = 7 * 24 * time.Hour
)

// Cache stores opaque byte values by key.
//
// Get reports a miss with (nil, false, nil). A ttl of zero means the entry
// never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}
