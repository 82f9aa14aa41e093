package engine

import "time"

// EventType identifies a lifecycle transition.
type EventType string

// Lifecycle event types.
const (
	EventConnected       EventType = "connected"
	EventConnectionError EventType = "connection_error"
	EventDisconnected    EventType = "disconnected"
	EventSubscribed      EventType = "subscribed"
	EventUnsubscribed    EventType = "unsubscribed"
	EventMessageReceived EventType = "message_received"
	EventCacheWriteError EventType = "cache_write_error"
)

// Event is a lifecycle transition emitted by the engine. Connection
// events carry ConnKey/URL; subscription events additionally carry
// SubKey/FeedID. Err is set on connection_error and cache_write_error
// events only.
type Event struct {
	Type    EventType
	ConnKey string
	URL     string
	SubKey  string
	FeedID  string
	Err     error
	At      time.Time
}

// Observer is a pure tap over the engine's lifecycle events. Observers
// are invoked synchronously from the event loop and must not block;
// they never alter control flow.
type Observer interface {
	Observe(Event)
}
