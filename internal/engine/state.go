package engine

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kazunetakeda25/feedstream/internal/provider"
	"github.com/kazunetakeda25/feedstream/internal/socket"
)

// connStatus is the lifecycle state of a physical connection.
type connStatus int

const (
	connConnecting connStatus = iota
	connActive
	connClosed
)

func (s connStatus) String() string {
	switch s {
	case connConnecting:
		return "connecting"
	case connActive:
		return "active"
	case connClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// conn holds engine-side state for one physical socket. Owned
// exclusively by the event loop.
type conn struct {
	key     string
	id      string // per-dial instance id for log correlation
	url     string
	handler provider.Handler
	client  socket.Client
	status  connStatus

	// Subscription keys multiplexed over this socket.
	subs map[string]struct{}

	// Inputs live at the moment of a failure, replayed after redial.
	resub []provider.Input

	// Redial backoff, reset on every successful dial.
	retry *backoff.ExponentialBackOff
}

// subState is the lifecycle state of a logical subscription.
type subState int

const (
	// subSubscribing: subscribe request accepted, not yet resolved by a
	// matching message.
	subSubscribing subState = iota
	// subSubscribed: at least one matching non-error message received.
	subSubscribed
	// subUnsubscribed: terminal but re-enterable; input retained.
	subUnsubscribed
)

func (s subState) String() string {
	switch s {
	case subSubscribing:
		return "subscribing"
	case subSubscribed:
		return "subscribed"
	case subUnsubscribed:
		return "unsubscribed"
	default:
		return "unknown"
	}
}

// subscription holds engine-side state for one logical subscription.
// Subscriptions are never deleted, only flagged unsubscribed, so the
// originating input stays available for re-subscription. Owned
// exclusively by the event loop.
type subscription struct {
	key     string
	connKey string
	input   provider.Input
	payload []byte // outbound subscribe message
	state   subState
	sent    bool // subscribe payload written to the socket

	// Timer generations implement the first-event-wins races: a timer
	// fire carrying a stale generation is discarded, whichever order
	// the fire and its reset arrive in.
	idleGen     uint64
	idleTimer   *time.Timer
	unrespGen   uint64
	unrespTimer *time.Timer
}

// stopTimers cancels both pending races.
func (s *subscription) stopTimers() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
	if s.unrespTimer != nil {
		s.unrespTimer.Stop()
		s.unrespTimer = nil
	}
	s.idleGen++
	s.unrespGen++
}
