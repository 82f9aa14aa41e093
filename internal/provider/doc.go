// Package provider defines the capability set a data provider supplies
// to the subscription engine.
//
// A Handler describes one provider WebSocket endpoint:
//   - how to build subscribe/unsubscribe messages for an input
//   - how to map an incoming message back to its subscription
//   - how to recognize provider error messages
//   - how to shape accepted messages into normalized responses
//
// The engine is provider-agnostic; everything provider-specific lives
// behind this contract.
package provider
