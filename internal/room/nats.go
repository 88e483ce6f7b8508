package room

import (
	"context"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/verte-zerg/typerace/internal/bus"
	"github.com/verte-zerg/typerace/internal/model"
)

// NATSTransport maps room destinations onto NATS subjects:
// "/topic/room/AB12/chat" becomes "topic.room.AB12.chat".
type NATSTransport struct {
	url string

	mu     sync.Mutex
	nc     *nats.Conn
	owned  bool
	subs    []*nats.Subscription
	closed  bool
	onClose func(error)
}

// NewNATSTransport dials url on Connect and drains the connection on Close.
func NewNATSTransport(url string) *NATSTransport {
	return &NATSTransport{url: url, owned: true}
}

// NewNATSTransportConn reuses an existing connection, which Close leaves open.
func NewNATSTransportConn(nc *nats.Conn) *NATSTransport {
	return &NATSTransport{nc: nc}
}

// Subject converts a STOMP-style destination path to a NATS subject.
func Subject(path string) string {
	return strings.ReplaceAll(strings.Trim(path, "/"), "/", ".")
}

// Connect dials the server unless a connection was supplied.
func (t *NATSTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return model.ErrChannelClosed
	}
	if t.nc != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	nc, err := bus.Connect(t.url)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed || t.nc != nil {
		closed := t.closed
		t.mu.Unlock()
		nc.Close()
		if closed {
			return model.ErrChannelClosed
		}
		return nil
	}
	t.nc = nc
	t.mu.Unlock()

	// Only an owned connection reports its final close; a shared one outlives
	// the room.
	prev := nc.ClosedHandler()
	nc.SetClosedHandler(func(c *nats.Conn) {
		if prev != nil {
			prev(c)
		}
		t.lost(c.LastError())
	})
	return nil
}

// OnClose registers fn for the final close of an owned connection, after
// reconnects are exhausted.
func (t *NATSTransport) OnClose(fn func(error)) {
	t.mu.Lock()
	t.onClose = fn
	t.mu.Unlock()
}

func (t *NATSTransport) lost(err error) {
	t.mu.Lock()
	fn := t.onClose
	t.onClose = nil
	closed := t.closed
	t.mu.Unlock()
	if closed || fn == nil {
		return
	}
	if err == nil {
		err = nats.ErrConnectionClosed
	}
	fn(err)
}

func (t *NATSTransport) conn() (*nats.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, model.ErrChannelClosed
	}
	if t.nc == nil {
		return nil, model.ErrNotConnected
	}
	return t.nc, nil
}

// Subscribe registers handler for topic.
func (t *NATSTransport) Subscribe(topic string, handler func([]byte)) (Subscription, error) {
	nc, err := t.conn()
	if err != nil {
		return nil, err
	}
	sub, err := nc.Subscribe(Subject(topic), func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()
	return natsSubscription{sub: sub}, nil
}

// Publish sends body to destination.
func (t *NATSTransport) Publish(destination string, body []byte) error {
	nc, err := t.conn()
	if err != nil {
		return err
	}
	return nc.Publish(Subject(destination), body)
}

// Close unsubscribes every handler and drains an owned connection.
func (t *NATSTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	subs := t.subs
	t.subs = nil
	nc, owned := t.nc, t.owned
	t.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed && err != nats.ErrBadSubscription {
			log.Warn().Err(err).Str("subject", sub.Subject).Msg("failed to unsubscribe")
		}
	}
	if nc == nil || !owned {
		return nil
	}
	return nc.Drain()
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s natsSubscription) Unsubscribe() error {
	err := s.sub.Unsubscribe()
	if err == nats.ErrBadSubscription || err == nats.ErrConnectionClosed {
		return nil
	}
	return err
}
