package metrics

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kazunetakeda25/feedstream/internal/engine"
)

// Reporter observes engine lifecycle events and maintains Prometheus
// collectors. It is a pure tap: it never feeds anything back into the
// engine.
type Reporter struct {
	logger *slog.Logger

	connectionsActive   *prometheus.GaugeVec
	connectionErrors    *prometheus.CounterVec
	subscriptionsActive *prometheus.GaugeVec
	subscriptionsTotal  *prometheus.CounterVec
	messagesTotal       *prometheus.CounterVec
	cacheWriteErrors    *prometheus.CounterVec

	// Subscribed keys currently counted in the active gauge. An
	// unsubscribed event for a subscription that never resolved must
	// not drive the gauge negative.
	mu     sync.Mutex
	active map[string]struct{}
}

// NewReporter creates a Reporter and registers its collectors with reg.
func NewReporter(reg prometheus.Registerer, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Reporter{
		logger: logger,
		active: make(map[string]struct{}),
		connectionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ws_connection_active",
				Help: "Number of open WebSocket connections.",
			},
			[]string{"conn_key", "url"},
		),
		connectionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ws_connection_errors_total",
				Help: "Total WebSocket connection errors.",
			},
			[]string{"conn_key", "url"},
		),
		subscriptionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ws_subscription_active",
				Help: "Number of resolved subscriptions.",
			},
			[]string{"conn_key", "feed_id"},
		),
		subscriptionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ws_subscription_total",
				Help: "Total subscriptions resolved.",
			},
			[]string{"conn_key", "feed_id"},
		),
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ws_message_total",
				Help: "Total messages attributed to a subscription.",
			},
			[]string{"feed_id"},
		),
		cacheWriteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ws_cache_write_errors_total",
				Help: "Total failed cache writes.",
			},
			[]string{"feed_id"},
		),
	}

	reg.MustRegister(
		r.connectionsActive,
		r.connectionErrors,
		r.subscriptionsActive,
		r.subscriptionsTotal,
		r.messagesTotal,
		r.cacheWriteErrors,
	)

	return r
}

// Observe implements engine.Observer.
func (r *Reporter) Observe(ev engine.Event) {
	switch ev.Type {
	case engine.EventConnected:
		r.connectionsActive.WithLabelValues(ev.ConnKey, ev.URL).Inc()
		r.logger.Info("ws connected", "conn_key", ev.ConnKey, "url", ev.URL)

	case engine.EventDisconnected:
		r.connectionsActive.WithLabelValues(ev.ConnKey, ev.URL).Dec()
		r.logger.Info("ws disconnected", "conn_key", ev.ConnKey, "url", ev.URL)

	case engine.EventConnectionError:
		r.connectionErrors.WithLabelValues(ev.ConnKey, ev.URL).Inc()
		r.logger.Warn("ws connection error",
			"conn_key", ev.ConnKey,
			"url", ev.URL,
			"error", ev.Err,
		)

	case engine.EventSubscribed:
		r.mu.Lock()
		r.active[ev.SubKey] = struct{}{}
		r.mu.Unlock()
		r.subscriptionsActive.WithLabelValues(ev.ConnKey, ev.FeedID).Inc()
		r.subscriptionsTotal.WithLabelValues(ev.ConnKey, ev.FeedID).Inc()
		r.logger.Info("ws subscribed", "conn_key", ev.ConnKey, "feed_id", ev.FeedID)

	case engine.EventUnsubscribed:
		r.mu.Lock()
		_, wasActive := r.active[ev.SubKey]
		delete(r.active, ev.SubKey)
		r.mu.Unlock()
		if wasActive {
			r.subscriptionsActive.WithLabelValues(ev.ConnKey, ev.FeedID).Dec()
		}
		r.logger.Info("ws unsubscribed", "conn_key", ev.ConnKey, "feed_id", ev.FeedID)

	case engine.EventMessageReceived:
		r.messagesTotal.WithLabelValues(ev.FeedID).Inc()

	case engine.EventCacheWriteError:
		r.cacheWriteErrors.WithLabelValues(ev.FeedID).Inc()
		r.logger.Warn("cache write error", "feed_id", ev.FeedID, "error", ev.Err)
	}
}
