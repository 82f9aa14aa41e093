package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

// PairInput is a price-feed request for a base/quote pair.
type PairInput struct {
	Base  string
	Quote string
}

// CacheKey returns the cache key for this pair.
func (p PairInput) CacheKey() string {
	return strings.ToUpper(p.Base) + "/" + strings.ToUpper(p.Quote)
}

// FeedHandler is a Handler for providers speaking a plain
// subscribe/unsubscribe JSON envelope for pair price feeds:
//
//	-> {"action":"subscribe","pair":"BTC/USD"}
//	<- {"pair":"BTC/USD","price":64123.5,"ts":1712000000}
//	<- {"error":"unknown pair"}
type FeedHandler struct {
	Info ConnectionInfo
}

// NewFeedHandler creates a FeedHandler for the given endpoint.
func NewFeedHandler(info ConnectionInfo) *FeedHandler {
	return &FeedHandler{Info: info}
}

type feedCommand struct {
	Action string `json:"action"`
	Pair   string `json:"pair"`
}

type feedMessage struct {
	Pair  string   `json:"pair"`
	Price *float64 `json:"price"`
	Ts    int64    `json:"ts"`
	Error string   `json:"error"`
}

// Connection returns endpoint details.
func (h *FeedHandler) Connection() ConnectionInfo {
	return h.Info
}

// SubscribeMessage builds the subscribe payload for a pair input.
func (h *FeedHandler) SubscribeMessage(input Input) ([]byte, error) {
	pair, ok := input.(PairInput)
	if !ok {
		return nil, fmt.Errorf("feed handler: unsupported input type %T", input)
	}
	return json.Marshal(feedCommand{Action: "subscribe", Pair: pair.CacheKey()})
}

// UnsubscribeMessage builds the unsubscribe payload for a pair input.
func (h *FeedHandler) UnsubscribeMessage(input Input) ([]byte, error) {
	pair, ok := input.(PairInput)
	if !ok {
		return nil, fmt.Errorf("feed handler: unsupported input type %T", input)
	}
	return json.Marshal(feedCommand{Action: "unsubscribe", Pair: pair.CacheKey()})
}

// SubscriptionFromMessage rebuilds the subscribe payload a message
// belongs to from its pair field.
func (h *FeedHandler) SubscriptionFromMessage(msg []byte) ([]byte, bool) {
	var m feedMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, false
	}
	if m.Pair == "" {
		return nil, false
	}
	payload, err := json.Marshal(feedCommand{Action: "subscribe", Pair: m.Pair})
	if err != nil {
		return nil, false
	}
	return payload, true
}

// IsError reports whether the provider flagged the message as an error.
func (h *FeedHandler) IsError(msg []byte) bool {
	var m feedMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		// Unparseable frames are treated as provider errors.
		return true
	}
	return m.Error != ""
}

// Filter accepts messages that carry a price.
func (h *FeedHandler) Filter(msg []byte) bool {
	var m feedMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return false
	}
	return m.Price != nil
}

// ToResponse shapes a price message into the normalized response.
func (h *FeedHandler) ToResponse(msg []byte, input Input) (Response, error) {
	var m feedMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return Response{}, fmt.Errorf("parse feed message: %w", err)
	}
	if m.Price == nil {
		return Response{}, errors.New("feed message has no price")
	}
	return Response{Result: *m.Price, Data: json.RawMessage(msg)}, nil
}

// ShouldNotRetryConnection reports permanent connection failures:
// policy-level close codes and handshake rejections.
func (h *FeedHandler) ShouldNotRetryConnection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, websocket.ErrBadHandshake) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.ClosePolicyViolation, websocket.CloseUnsupportedData, websocket.CloseMandatoryExtension:
			return true
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound
	}
	return false
}
