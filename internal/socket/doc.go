// Package socket wraps a single provider WebSocket connection.
//
// A Client owns one physical connection: it serializes writes, fans
// inbound frames out on a buffered channel, answers server pings, sends
// keepalive pings, and surfaces transport failures on an error channel
// instead of crashing callers.
package socket
