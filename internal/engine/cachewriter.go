package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kazunetakeda25/feedstream/internal/cache"
	"github.com/kazunetakeda25/feedstream/internal/provider"
)

// cacheWriteTimeout bounds a single backend write.
const cacheWriteTimeout = 5 * time.Second

// cacheWrite is one pending response write.
type cacheWrite struct {
	key  string
	resp provider.Response
}

// cacheWriter drains response writes off the event loop. A single
// writer goroutine preserves per-key write order; failures are logged,
// reported through onError and swallowed so message delivery is never
// blocked.
type cacheWriter struct {
	store   cache.Cache
	ttl     time.Duration
	logger  *slog.Logger
	queue   *queue[cacheWrite]
	wg      sync.WaitGroup
	onError func(key string, err error)
}

func newCacheWriter(store cache.Cache, ttl time.Duration, logger *slog.Logger) *cacheWriter {
	return &cacheWriter{
		store:  store,
		ttl:    ttl,
		logger: logger,
		queue:  newQueue[cacheWrite](256),
	}
}

func (w *cacheWriter) start() {
	w.wg.Add(1)
	go w.loop()
}

func (w *cacheWriter) loop() {
	defer w.wg.Done()

	for {
		item, ok := w.queue.Receive()
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		err := w.store.Set(ctx, item.key, cache.Fresh(item.resp), w.ttl)
		cancel()

		if err != nil {
			w.logger.Warn("cache write failed",
				"cache_key", item.key,
				"error", err,
			)
			if w.onError != nil {
				w.onError(item.key, err)
			}
		}
	}
}

// write enqueues a response write. Never blocks.
func (w *cacheWriter) write(key string, resp provider.Response) {
	w.queue.Send(cacheWrite{key: key, resp: resp})
}

// close drains pending writes and stops the writer.
func (w *cacheWriter) close() {
	w.queue.Close()
	w.wg.Wait()
}
