package provider

import (
	"crypto/sha256"
	"encoding/hex"
)

// SubscriptionKey derives the subscription key for an outbound
// subscribe payload. The same payload always yields the same key, so a
// message mapped back to its subscribe payload lands on the same key as
// the request that opened the subscription.
func SubscriptionKey(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:16])
}

// ConnectionKey derives the connection key grouping all subscriptions
// that share one physical socket.
func ConnectionKey(info ConnectionInfo) string {
	if info.Protocol == "" {
		return info.URL
	}
	return info.URL + "|" + info.Protocol
}
