package provider

import (
	"encoding/json"
	"testing"
)

func TestPairInput_CacheKey(t *testing.T) {
	tests := []struct {
		base, quote string
		want        string
	}{
		{"BTC", "USD", "BTC/USD"},
		{"eth", "usd", "ETH/USD"},
		{"Link", "Eth", "LINK/ETH"},
	}

	for _, tt := range tests {
		got := PairInput{Base: tt.base, Quote: tt.quote}.CacheKey()
		if got != tt.want {
			t.Errorf("CacheKey(%q, %q) = %q, want %q", tt.base, tt.quote, got, tt.want)
		}
	}
}

func TestFeedHandler_SubscribeMessage(t *testing.T) {
	h := NewFeedHandler(ConnectionInfo{URL: "wss://feed.example.com/ws"})

	payload, err := h.SubscribeMessage(PairInput{Base: "BTC", Quote: "USD"})
	if err != nil {
		t.Fatalf("SubscribeMessage failed: %v", err)
	}

	var cmd feedCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if cmd.Action != "subscribe" {
		t.Errorf("Action = %q, want %q", cmd.Action, "subscribe")
	}
	if cmd.Pair != "BTC/USD" {
		t.Errorf("Pair = %q, want %q", cmd.Pair, "BTC/USD")
	}
}

func TestFeedHandler_SubscriptionRoundTrip(t *testing.T) {
	// A data message must map back to the same subscription key as the
	// subscribe payload that opened it.
	h := NewFeedHandler(ConnectionInfo{URL: "wss://feed.example.com/ws"})
	input := PairInput{Base: "ETH", Quote: "USD"}

	sub, err := h.SubscribeMessage(input)
	if err != nil {
		t.Fatalf("SubscribeMessage failed: %v", err)
	}

	msg := []byte(`{"pair":"ETH/USD","price":3021.4,"ts":1712000000}`)
	payload, ok := h.SubscriptionFromMessage(msg)
	if !ok {
		t.Fatal("SubscriptionFromMessage returned ok=false")
	}

	if SubscriptionKey(sub) != SubscriptionKey(payload) {
		t.Errorf("derived keys differ: subscribe=%q message=%q",
			SubscriptionKey(sub), SubscriptionKey(payload))
	}
}

func TestFeedHandler_IsError(t *testing.T) {
	h := NewFeedHandler(ConnectionInfo{})

	tests := []struct {
		name string
		msg  string
		want bool
	}{
		{"data message", `{"pair":"BTC/USD","price":64000}`, false},
		{"error message", `{"error":"unknown pair"}`, true},
		{"garbage", `not json`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.IsError([]byte(tt.msg)); got != tt.want {
				t.Errorf("IsError(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestFeedHandler_Filter(t *testing.T) {
	h := NewFeedHandler(ConnectionInfo{})

	if h.Filter([]byte(`{"pair":"BTC/USD","ts":1712000000}`)) {
		t.Error("Filter accepted a message without a price")
	}
	if !h.Filter([]byte(`{"pair":"BTC/USD","price":0}`)) {
		t.Error("Filter rejected a message with a zero price")
	}
}

func TestFeedHandler_ToResponse(t *testing.T) {
	h := NewFeedHandler(ConnectionInfo{})
	input := PairInput{Base: "BTC", Quote: "USD"}

	resp, err := h.ToResponse([]byte(`{"pair":"BTC/USD","price":64123.5}`), input)
	if err != nil {
		t.Fatalf("ToResponse failed: %v", err)
	}
	if resp.Result != 64123.5 {
		t.Errorf("Result = %v, want %v", resp.Result, 64123.5)
	}

	if _, err := h.ToResponse([]byte(`{"pair":"BTC/USD"}`), input); err == nil {
		t.Error("ToResponse accepted a message without a price")
	}
}
