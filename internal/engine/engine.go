package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/kazunetakeda25/feedstream/internal/cache"
	"github.com/kazunetakeda25/feedstream/internal/provider"
	"github.com/kazunetakeda25/feedstream/internal/socket"
)

// DialFunc creates a socket client for a connection attempt. Tests
// substitute fakes here.
type DialFunc func(cfg socket.Config, logger *slog.Logger) socket.Client

// Option customizes an Engine.
type Option func(*Engine)

// WithObserver registers a lifecycle event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithDialFunc overrides how socket clients are created.
func WithDialFunc(dial DialFunc) Option {
	return func(e *Engine) {
		e.dial = dial
	}
}

// Engine multiplexes many logical subscriptions over few physical
// WebSocket connections. A single event loop owns all connection and
// subscription state; socket readers, timers and callers communicate
// with it only through the action queue, so events for a given key are
// processed in arrival order without locks.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	observers []Observer
	events    chan Event

	actions *queue[action]
	writer  *cacheWriter
	dial    DialFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started bool
	stopped bool

	// Loop-owned state. Never touched outside the event loop; released
	// by the loop's own shutdown once the queue drains.
	conns map[string]*conn
	subs  map[string]*subscription

	// Stats counters, updated by the loop, read anywhere.
	statConnsActive atomic.Int64
	statSubsActive  atomic.Int64
	statSubsTotal   atomic.Int64
}

// New creates an Engine writing responses to store.
func New(cfg Config, store cache.Cache, logger *slog.Logger, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		events:  make(chan Event, cfg.EventBufferSize),
		actions: newQueue[action](cfg.QueueSize),
		writer:  newCacheWriter(store, cfg.CacheTTL, logger.With("component", "cache_writer")),
		dial:    defaultDial,
		conns:   make(map[string]*conn),
		subs:    make(map[string]*subscription),
	}

	// Failed writes come back through the loop so observers see them.
	e.writer.onError = func(key string, err error) {
		e.actions.Send(action{typ: actCacheWriteError, feedID: key, err: err})
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func defaultDial(cfg socket.Config, logger *slog.Logger) socket.Client {
	return socket.NewClient(cfg, logger)
}

// Start launches the event loop.
func (e *Engine) Start(ctx context.Context) error {
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.writer.start()

	e.wg.Add(1)
	go e.run()

	// Parent cancellation stops the loop even without an explicit Stop.
	go func() {
		<-e.ctx.Done()
		e.actions.Close()
	}()

	e.logger.Info("engine started",
		"subscription_ttl", e.cfg.SubscriptionTTL,
		"unresponsive_ttl", e.cfg.SubscriptionUnresponsiveTTL,
	)

	return nil
}

// Stop gracefully shuts down the engine: the loop drains its queue,
// closes sockets, flushes pending cache writes and closes the event
// channel. Loop-owned state is only ever released by the loop itself;
// if ctx expires first, Stop returns the context error and the loop
// finishes tearing down in the background.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.started {
		return ErrNotStarted
	}
	if e.stopped {
		return nil
	}
	e.stopped = true

	e.logger.Info("stopping engine")

	e.cancel()
	e.actions.Close()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn("shutdown timeout, loop still draining", "queue_depth", e.actions.Len())
		return ctx.Err()
	}

	e.logger.Info("engine stopped")
	return nil
}

// Events returns the lifecycle event channel. Events are dropped with a
// log line if the channel buffer is full; rely on observers for
// loss-free accounting.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Stats returns a snapshot of engine state.
func (e *Engine) Stats() Stats {
	return Stats{
		ActiveConnections:   int(e.statConnsActive.Load()),
		ActiveSubscriptions: int(e.statSubsActive.Load()),
		TotalSubscriptions:  int(e.statSubsTotal.Load()),
		QueueDepth:          e.actions.Len(),
	}
}

// Connect opens the connection for the handler's endpoint if no active
// or in-progress connection exists for its key.
func (e *Engine) Connect(h provider.Handler) error {
	if h == nil {
		return ErrNilInput
	}
	return e.enqueue(action{typ: actConnect, handler: h})
}

// Disconnect closes the connection for connKey and terminates all
// subscriptions multiplexed over it.
func (e *Engine) Disconnect(connKey string) error {
	return e.enqueue(action{typ: actDisconnect, connKey: connKey})
}

// Subscribe requests a subscription for input over the handler's
// connection, opening the connection on first use. Repeated subscribes
// for the same derived key refresh the idle timeout.
func (e *Engine) Subscribe(h provider.Handler, input provider.Input) error {
	if h == nil || input == nil {
		return ErrNilInput
	}
	return e.enqueue(action{typ: actSubscribe, handler: h, input: input})
}

// Unsubscribe tears down the subscription for input.
func (e *Engine) Unsubscribe(h provider.Handler, input provider.Input) error {
	if h == nil || input == nil {
		return ErrNilInput
	}
	return e.enqueue(action{typ: actUnsubscribe, handler: h, input: input})
}

func (e *Engine) enqueue(a action) error {
	if !e.started {
		return ErrNotStarted
	}
	if !e.actions.Send(a) {
		return ErrStopped
	}
	return nil
}

// run is the event loop. It is the sole owner of conns and subs, and
// the only goroutine that sends on the event channel, so it also owns
// teardown: sockets, timers, the cache writer and the event channel are
// released here once the queue is drained.
func (e *Engine) run() {
	defer e.wg.Done()
	defer e.shutdown()

	for {
		a, ok := e.actions.Receive()
		if !ok {
			return
		}
		e.handle(a)
	}
}

func (e *Engine) shutdown() {
	for _, c := range e.conns {
		if c.client != nil {
			c.client.Close()
			c.client = nil
		}
	}
	for _, s := range e.subs {
		s.stopTimers()
	}

	e.writer.close()
	close(e.events)
}

func (e *Engine) handle(a action) {
	switch a.typ {
	case actConnect:
		e.handleConnect(a)
	case actDisconnect:
		e.handleDisconnect(a)
	case actSubscribe:
		e.handleSubscribe(a)
	case actUnsubscribe:
		e.handleUnsubscribe(a)
	case actDialResult:
		e.handleDialResult(a)
	case actSocketMessage:
		e.handleSocketMessage(a)
	case actSocketError:
		e.handleSocketError(a)
	case actIdleTimeout:
		e.handleIdleTimeout(a)
	case actUnresponsiveTimeout:
		e.handleUnresponsiveTimeout(a)
	case actCacheWriteError:
		e.emit(Event{Type: EventCacheWriteError, FeedID: a.feedID, Err: a.err})
	}
}

// emit delivers an event to observers and the event channel.
func (e *Engine) emit(ev Event) {
	ev.At = time.Now()

	for _, o := range e.observers {
		o.Observe(ev)
	}

	select {
	case e.events <- ev:
	default:
		e.logger.Debug("event channel full, dropping event", "type", ev.Type)
	}
}

// ensureConn returns the connection for connKey, creating and dialing
// it if none is active or in progress.
func (e *Engine) ensureConn(connKey string, h provider.Handler) *conn {
	if c, ok := e.conns[connKey]; ok && c.status != connClosed {
		return c
	}

	info := h.Connection()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = e.cfg.ReconnectBaseDelay
	retry.MaxInterval = e.cfg.ReconnectMaxDelay
	retry.MaxElapsedTime = 0 // retry until told otherwise

	c := &conn{
		key:     connKey,
		url:     info.URL,
		handler: h,
		status:  connConnecting,
		subs:    make(map[string]struct{}),
		retry:   retry,
	}
	e.conns[connKey] = c
	e.dialConn(c)
	return c
}

// dialConn starts a dial attempt for c. The result comes back as an
// actDialResult tagged with the attempt id.
func (e *Engine) dialConn(c *conn) {
	c.id = uuid.NewString()

	info := c.handler.Connection()
	client := e.dial(socket.Config{
		URL:              info.URL,
		Protocol:         info.Protocol,
		APIKey:           info.APIKey,
		HandshakeTimeout: e.cfg.HandshakeTimeout,
		PingTimeout:      e.cfg.PingTimeout,
		PingInterval:     e.cfg.PingInterval,
		WriteTimeout:     e.cfg.WriteTimeout,
		BufferSize:       e.cfg.SocketBufferSize,
	}, e.logger.With("conn_key", c.key, "conn_id", c.id))

	connKey, connID := c.key, c.id
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := client.Connect(e.ctx)
		e.actions.Send(action{
			typ:     actDialResult,
			connKey: connKey,
			connID:  connID,
			client:  client,
			err:     err,
		})
	}()
}

func (e *Engine) handleConnect(a action) {
	if a.handler != nil {
		e.ensureConn(provider.ConnectionKey(a.handler.Connection()), a.handler)
		return
	}

	// Retry attempt scheduled after a failure.
	c, ok := e.conns[a.connKey]
	if !ok || c.status != connConnecting || c.id != a.connID {
		return
	}
	e.dialConn(c)
}

func (e *Engine) handleDialResult(a action) {
	c, ok := e.conns[a.connKey]
	if !ok || c.id != a.connID || c.status != connConnecting {
		// Stale attempt; release its socket if it actually opened.
		if a.err == nil {
			a.client.Close()
		}
		return
	}

	if a.err != nil {
		e.logger.Warn("connection failed",
			"conn_key", c.key,
			"url", c.url,
			"error", a.err,
		)
		e.emit(Event{Type: EventConnectionError, ConnKey: c.key, URL: c.url, Err: a.err})
		e.retryOrClose(c, a.err)
		return
	}

	c.client = a.client
	c.status = connActive
	c.retry.Reset()
	e.statConnsActive.Add(1)

	e.logger.Info("connected", "conn_key", c.key, "url", c.url)
	e.emit(Event{Type: EventConnected, ConnKey: c.key, URL: c.url})

	e.wg.Add(1)
	go e.readPump(c.key, c.id, a.client)

	// Flush subscribe messages queued while connecting, then replay
	// subscriptions that were live before a reconnect.
	for key := range c.subs {
		s := e.subs[key]
		if s == nil || s.state == subUnsubscribed || s.sent {
			continue
		}
		e.sendSubscribe(c, s)
	}

	if len(c.resub) > 0 {
		inputs := c.resub
		c.resub = nil
		for _, input := range inputs {
			e.handleSubscribe(action{typ: actSubscribe, handler: c.handler, input: input})
		}
	}
}

// retryOrClose schedules a redial after a connection failure, or closes
// the connection permanently when retries are disabled or the provider
// marks the error permanent.
func (e *Engine) retryOrClose(c *conn, err error) {
	if e.cfg.ReconnectEnabled && !c.handler.ShouldNotRetryConnection(err) {
		delay := c.retry.NextBackOff()
		e.logger.Info("scheduling reconnect",
			"conn_key", c.key,
			"delay", delay,
		)

		connKey, connID := c.key, c.id
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			select {
			case <-e.ctx.Done():
			case <-time.After(delay):
				e.actions.Send(action{typ: actConnect, connKey: connKey, connID: connID})
			}
		}()
		return
	}

	e.logger.Error("connection abandoned",
		"conn_key", c.key,
		"url", c.url,
		"error", err,
	)
	c.status = connClosed
	c.resub = nil
	e.terminateConnSubs(c)
}

// readPump forwards one socket's messages and errors into the loop.
func (e *Engine) readPump(connKey, connID string, client socket.Client) {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return

		case err := <-client.Errors():
			e.actions.Send(action{typ: actSocketError, connKey: connKey, connID: connID, err: err})
			return

		case msg, ok := <-client.Messages():
			if !ok {
				e.actions.Send(action{typ: actSocketError, connKey: connKey, connID: connID, err: socket.ErrNotConnected})
				return
			}
			e.actions.Send(action{typ: actSocketMessage, connKey: connKey, connID: connID, data: msg.Data})
		}
	}
}

func (e *Engine) handleSocketError(a action) {
	c, ok := e.conns[a.connKey]
	if !ok || c.id != a.connID || c.status != connActive {
		return
	}

	e.logger.Warn("connection error",
		"conn_key", c.key,
		"url", c.url,
		"error", a.err,
	)
	e.emit(Event{Type: EventConnectionError, ConnKey: c.key, URL: c.url, Err: a.err})

	c.client.Close()
	c.client = nil
	c.status = connClosed
	e.statConnsActive.Add(-1)

	// Remember live inputs for replay, then terminate this key's
	// subscriptions. Other connections are untouched.
	var retained []provider.Input
	for key := range c.subs {
		if s := e.subs[key]; s != nil && s.state != subUnsubscribed {
			retained = append(retained, s.input)
		}
	}
	e.terminateConnSubs(c)
	e.emit(Event{Type: EventDisconnected, ConnKey: c.key, URL: c.url})

	if e.cfg.ReconnectEnabled && !c.handler.ShouldNotRetryConnection(a.err) {
		c.status = connConnecting
		c.resub = retained
		e.retryOrClose(c, a.err)
	}
}

func (e *Engine) handleDisconnect(a action) {
	c, ok := e.conns[a.connKey]
	if !ok || c.status == connClosed {
		return
	}

	e.logger.Info("disconnecting", "conn_key", c.key, "url", c.url)

	wasOpen := c.status == connActive
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	if wasOpen {
		e.statConnsActive.Add(-1)
	}
	c.status = connClosed
	c.resub = nil

	e.terminateConnSubs(c)
	if wasOpen {
		e.emit(Event{Type: EventDisconnected, ConnKey: c.key, URL: c.url})
	}
}

// terminateConnSubs flags every subscription on c unsubscribed and
// emits their terminal events. Inputs are retained.
func (e *Engine) terminateConnSubs(c *conn) {
	for key := range c.subs {
		if s := e.subs[key]; s != nil && s.state != subUnsubscribed {
			e.markUnsubscribed(s)
		}
		delete(c.subs, key)
	}
}

func (e *Engine) handleSubscribe(a action) {
	connKey := provider.ConnectionKey(a.handler.Connection())
	c := e.ensureConn(connKey, a.handler)

	payload, err := a.handler.SubscribeMessage(a.input)
	if err != nil {
		e.logger.Error("build subscribe message",
			"conn_key", connKey,
			"feed_id", a.input.CacheKey(),
			"error", err,
		)
		return
	}
	subKey := provider.SubscriptionKey(payload)

	s, ok := e.subs[subKey]
	switch {
	case !ok:
		s = &subscription{
			key:     subKey,
			connKey: connKey,
			input:   a.input,
			payload: payload,
			state:   subSubscribing,
		}
		e.subs[subKey] = s
		c.subs[subKey] = struct{}{}
		e.statSubsTotal.Add(1)
		e.statSubsActive.Add(1)
		e.logger.Debug("subscription created", "sub_key", subKey, "feed_id", a.input.CacheKey())

	case s.state == subUnsubscribed:
		// Re-enter the terminal state with the retained input.
		s.connKey = connKey
		s.input = a.input
		s.payload = payload
		s.state = subSubscribing
		s.sent = false
		c.subs[subKey] = struct{}{}
		e.statSubsActive.Add(1)
		e.logger.Debug("subscription re-created", "sub_key", subKey, "feed_id", a.input.CacheKey())
	}

	if !s.sent && c.status == connActive {
		e.sendSubscribe(c, s)
	}

	// Every subscribe request restarts the idle race.
	e.armIdleTimer(s)
}

func (e *Engine) sendSubscribe(c *conn, s *subscription) {
	if err := c.client.Send(s.payload); err != nil {
		e.logger.Warn("send subscribe message",
			"conn_key", c.key,
			"sub_key", s.key,
			"error", err,
		)
		return
	}
	s.sent = true
}

func (e *Engine) handleUnsubscribe(a action) {
	payload, err := a.handler.SubscribeMessage(a.input)
	if err != nil {
		e.logger.Error("build subscribe message", "error", err)
		return
	}

	s, ok := e.subs[provider.SubscriptionKey(payload)]
	if !ok || s.state == subUnsubscribed {
		return
	}
	e.teardown(s, true)
}

// teardown unsubscribes s, optionally sending the provider unsubscribe
// message over the shared socket.
func (e *Engine) teardown(s *subscription, sendMessage bool) {
	c := e.conns[s.connKey]

	if sendMessage && c != nil && c.status == connActive && s.sent {
		if msg, err := c.handler.UnsubscribeMessage(s.input); err != nil {
			e.logger.Warn("build unsubscribe message", "sub_key", s.key, "error", err)
		} else if err := c.client.Send(msg); err != nil {
			e.logger.Warn("send unsubscribe message", "sub_key", s.key, "error", err)
		}
	}

	if c != nil {
		delete(c.subs, s.key)
	}
	e.markUnsubscribed(s)
}

// markUnsubscribed flags s terminal and emits the unsubscribed event.
func (e *Engine) markUnsubscribed(s *subscription) {
	s.stopTimers()
	s.state = subUnsubscribed
	s.sent = false
	e.statSubsActive.Add(-1)

	var url string
	if c := e.conns[s.connKey]; c != nil {
		url = c.url
	}
	e.emit(Event{
		Type:    EventUnsubscribed,
		ConnKey: s.connKey,
		URL:     url,
		SubKey:  s.key,
		FeedID:  s.input.CacheKey(),
	})
}

func (e *Engine) handleSocketMessage(a action) {
	c, ok := e.conns[a.connKey]
	if !ok || c.id != a.connID || c.status != connActive {
		return
	}
	h := c.handler

	if h.IsError(a.data) {
		// Provider-flagged errors never resolve a subscription and are
		// excluded from caching.
		e.logger.Warn("provider error message",
			"conn_key", c.key,
			"message", string(a.data),
		)
		return
	}

	payload, ok := h.SubscriptionFromMessage(a.data)
	if !ok {
		e.logger.Debug("unattributable message", "conn_key", c.key)
		return
	}

	s, ok := e.subs[provider.SubscriptionKey(payload)]
	if !ok || s.connKey != a.connKey || s.state == subUnsubscribed {
		e.logger.Debug("message for inactive subscription", "conn_key", c.key)
		return
	}

	if s.state == subSubscribing {
		s.state = subSubscribed
		e.logger.Debug("subscription resolved", "sub_key", s.key, "feed_id", s.input.CacheKey())
		e.emit(Event{
			Type:    EventSubscribed,
			ConnKey: s.connKey,
			URL:     c.url,
			SubKey:  s.key,
			FeedID:  s.input.CacheKey(),
		})
	}

	e.emit(Event{
		Type:    EventMessageReceived,
		ConnKey: s.connKey,
		URL:     c.url,
		SubKey:  s.key,
		FeedID:  s.input.CacheKey(),
	})

	// Every attributed message restarts the unresponsive race.
	e.armUnresponsiveTimer(s)

	if h.Filter(a.data) {
		resp, err := h.ToResponse(a.data, s.input)
		if err != nil {
			e.logger.Warn("response transform failed",
				"sub_key", s.key,
				"feed_id", s.input.CacheKey(),
				"error", err,
			)
			return
		}
		e.writer.write(s.input.CacheKey(), resp)
	}
}

// armIdleTimer restarts the idle-unsubscribe race for s.
func (e *Engine) armIdleTimer(s *subscription) {
	s.idleGen++
	gen := s.idleGen
	subKey := s.key

	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(e.cfg.SubscriptionTTL, func() {
		e.actions.Send(action{typ: actIdleTimeout, subKey: subKey, gen: gen})
	})
}

// armUnresponsiveTimer restarts the unresponsive-recovery race for s.
func (e *Engine) armUnresponsiveTimer(s *subscription) {
	s.unrespGen++
	gen := s.unrespGen
	subKey := s.key

	if s.unrespTimer != nil {
		s.unrespTimer.Stop()
	}
	s.unrespTimer = time.AfterFunc(e.cfg.SubscriptionUnresponsiveTTL, func() {
		e.actions.Send(action{typ: actUnresponsiveTimeout, subKey: subKey, gen: gen})
	})
}

func (e *Engine) handleIdleTimeout(a action) {
	s, ok := e.subs[a.subKey]
	if !ok || a.gen != s.idleGen || s.state == subUnsubscribed {
		// Lost the race: a newer subscribe reset the timer.
		return
	}

	e.logger.Info("subscription idle, unsubscribing",
		"sub_key", s.key,
		"feed_id", s.input.CacheKey(),
		"ttl", e.cfg.SubscriptionTTL,
	)
	e.teardown(s, true)
}

func (e *Engine) handleUnresponsiveTimeout(a action) {
	s, ok := e.subs[a.subKey]
	if !ok || a.gen != s.unrespGen || s.state != subSubscribed {
		return
	}

	e.logger.Warn("subscription unresponsive, recycling",
		"sub_key", s.key,
		"feed_id", s.input.CacheKey(),
		"ttl", e.cfg.SubscriptionUnresponsiveTTL,
	)

	c := e.conns[s.connKey]

	// Unsubscribe immediately followed by a fresh subscribe for the
	// same logical input.
	e.teardown(s, true)

	if c == nil || c.status == connClosed {
		return
	}

	s.state = subSubscribing
	c.subs[s.key] = struct{}{}
	e.statSubsActive.Add(1)

	if c.status == connActive {
		e.sendSubscribe(c, s)
	}
	e.armIdleTimer(s)
}
