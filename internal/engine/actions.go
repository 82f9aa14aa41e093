package engine

import (
	"github.com/kazunetakeda25/feedstream/internal/provider"
	"github.com/kazunetakeda25/feedstream/internal/socket"
)

// actionType identifies an event-loop action.
type actionType int

const (
	actConnect actionType = iota
	actDisconnect
	actSubscribe
	actUnsubscribe
	actDialResult
	actSocketMessage
	actSocketError
	actIdleTimeout
	actUnresponsiveTimeout
	actCacheWriteError
)

// action is one unit of work for the event loop. All engine state is
// mutated by the loop alone; everything else only enqueues actions.
type action struct {
	typ     actionType
	connKey string
	connID  string // dial instance correlation; stale results are dropped
	handler provider.Handler
	input   provider.Input
	subKey  string
	feedID  string
	gen     uint64 // timer generation for the first-event-wins races
	data    []byte
	client  socket.Client
	err     error
}
