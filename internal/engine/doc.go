// Package engine implements the WebSocket subscription multiplexing
// engine.
//
// The engine coordinates many logical subscriptions over few physical
// socket connections:
//   - one socket per connection key, opened on first subscribe
//   - subscription keys derived from outbound subscribe payloads
//     demultiplex incoming messages
//   - an idle-unsubscribe race tears down subscriptions nobody asks
//     for anymore
//   - an unresponsive-recovery race recycles silent subscriptions with
//     an unsubscribe + resubscribe cycle
//   - every accepted message is written to the response cache and
//     surfaced as a lifecycle event for metrics
//
// All state is owned by a single event loop fed through a growable
// action queue, so events for a given key are handled in arrival order
// and no locks guard connection or subscription state. Transport
// failures become connection_error events in the same stream as
// successes; nothing crosses component boundaries as a panic.
package engine
