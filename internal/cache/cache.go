package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kazunetakeda25/feedstream/internal/provider"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache closed")

// MaxAgeOverride marks a cached response as always fresh: readers must
// treat the entry as just written regardless of its age, until the
// storage-level TTL evicts it.
const MaxAgeOverride = -1

// Envelope wraps a normalized response for cache storage.
type Envelope struct {
	Response  provider.Response `json:"response"`
	MaxAge    int64             `json:"maxAge"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Fresh wraps a response in an always-fresh envelope.
func Fresh(resp provider.Response) Envelope {
	return Envelope{
		Response:  resp,
		MaxAge:    MaxAgeOverride,
		UpdatedAt: time.Now().UTC(),
	}
}

// Cache stores normalized responses keyed by input cache key.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Set stores an envelope under key for ttl. A ttl of zero means no
	// storage-level expiry.
	Set(ctx context.Context, key string, env Envelope, ttl time.Duration) error

	// Get retrieves the envelope for key. The second return is false on
	// a miss.
	Get(ctx context.Context, key string) (Envelope, bool, error)

	// Delete removes the entry for key.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
