package provider

import "encoding/json"

// Input identifies the originating adapter request behind a
// subscription. Inputs are retained for the life of the subscription so
// a recycled subscription can be re-issued and cached responses keyed.
type Input interface {
	// CacheKey returns the cache key responses for this input are
	// stored under. Must be deterministic.
	CacheKey() string
}

// ConnectionInfo describes the provider WebSocket endpoint.
type ConnectionInfo struct {
	URL      string
	Protocol string // optional subprotocol
	APIKey   string // optional bearer credential for the handshake
}

// Response is the normalized shape written to the cache for every
// accepted provider message.
type Response struct {
	Result float64         `json:"result"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Handler is the capability set a provider supplies to the engine.
// Implementations must be safe for concurrent use; the engine calls
// them from its event loop and from socket read goroutines.
type Handler interface {
	// Connection returns endpoint details for dialing.
	Connection() ConnectionInfo

	// SubscribeMessage builds the outbound subscribe payload for an
	// input. The payload also determines the subscription key.
	SubscribeMessage(input Input) ([]byte, error)

	// UnsubscribeMessage builds the outbound unsubscribe payload.
	UnsubscribeMessage(input Input) ([]byte, error)

	// SubscriptionFromMessage maps a raw provider message back to the
	// subscribe payload it answers. Returns ok=false when the message
	// cannot be attributed to any subscription.
	SubscriptionFromMessage(msg []byte) (payload []byte, ok bool)

	// IsError reports whether the provider flagged this message as an
	// error. Error messages never resolve or feed a subscription.
	IsError(msg []byte) bool

	// Filter reports whether this message carries data worth caching.
	Filter(msg []byte) bool

	// ToResponse shapes an accepted message into the normalized
	// response for the originating input.
	ToResponse(msg []byte, input Input) (Response, error)

	// ShouldNotRetryConnection reports whether a connection error is
	// permanent, suppressing automatic reconnection.
	ShouldNotRetryConnection(err error) bool
}
