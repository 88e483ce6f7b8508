// Package room implements the multiplayer room channel and client lifecycle.
package room

import "context"

// Transport is a connect/subscribe/publish primitive delivering messages in
// publish order per destination.
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, handler func([]byte)) (Subscription, error)
	Publish(destination string, body []byte) error
	// Close tears the transport down. It must be safe to call from inside a
	// message handler.
	Close() error
	// OnClose registers fn to run once when the connection drops without
	// Close having been called.
	OnClose(fn func(error))
}

// Subscription is one registered topic handler.
type Subscription interface {
	Unsubscribe() error
}

// Transport kinds accepted by the configuration.
const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)
