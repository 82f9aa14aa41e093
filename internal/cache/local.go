package cache

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process Cache backed by a map with per-entry expiry.
// Suitable for single-instance adapters and tests.
type Local struct {
	mu      sync.RWMutex
	entries map[string]localEntry
	closed  bool
}

type localEntry struct {
	env       Envelope
	expiresAt time.Time // zero means no expiry
}

// NewLocal creates an empty local cache.
func NewLocal() *Local {
	return &Local{
		entries: make(map[string]localEntry),
	}
}

// Set stores an envelope under key.
func (l *Local) Set(ctx context.Context, key string, env Envelope, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	e := localEntry{env: env}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	l.entries[key] = e
	return nil
}

// Get retrieves the envelope for key. Expired entries are evicted lazily.
func (l *Local) Get(ctx context.Context, key string) (Envelope, bool, error) {
	l.mu.RLock()
	e, ok := l.entries[key]
	closed := l.closed
	l.mu.RUnlock()

	if closed {
		return Envelope{}, false, ErrClosed
	}
	if !ok {
		return Envelope{}, false, nil
	}

	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		l.mu.Lock()
		// Re-check under write lock; a Set may have replaced the entry.
		if cur, ok := l.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(l.entries, key)
		}
		l.mu.Unlock()
		return Envelope{}, false, nil
	}

	return e.env, true, nil
}

// Delete removes the entry for key.
func (l *Local) Delete(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	delete(l.entries, key)
	return nil
}

// Len returns the number of stored entries, including not-yet-evicted
// expired ones.
func (l *Local) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Close marks the cache closed and drops all entries.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.entries = nil
	return nil
}
