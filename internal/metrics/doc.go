// Package metrics provides Prometheus metrics for the subscription
// engine.
//
// Key metrics:
//   - ws_connection_active / ws_connection_errors_total
//   - ws_subscription_active / ws_subscription_total
//   - ws_message_total
//
// The Reporter is registered with the engine as an event observer and
// deliberately produces no output back into the engine.
package metrics
