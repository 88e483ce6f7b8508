package room

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/wire"
)

// Channel is the pub/sub view of one room over a Transport it owns.
type Channel struct {
	roomID    string
	transport Transport

	// connectMu serializes Connect; mu is never held across the handshake.
	connectMu sync.Mutex

	mu        sync.Mutex
	connected bool
	closed    bool
	lostErr   error
	subs      []Subscription
}

// NewChannel binds a transport to roomID.
func NewChannel(roomID string, t Transport) *Channel {
	return &Channel{roomID: roomID, transport: t}
}

// RoomID returns the bound room.
func (c *Channel) RoomID() string {
	return c.roomID
}

// TopicPath returns the subscription path for topic.
func (c *Channel) TopicPath(topic Topic) string {
	return fmt.Sprintf("/topic/room/%s/%s", c.roomID, topic)
}

// KickedPath returns the per-player kick notification path.
func (c *Channel) KickedPath(playerID string) string {
	return fmt.Sprintf("/topic/room/%s/kicked/%s", c.roomID, playerID)
}

// DestinationPath returns the publish path for dest.
func (c *Channel) DestinationPath(dest Destination) string {
	return fmt.Sprintf("/app/room/%s/%s", c.roomID, dest)
}

// Connect completes the transport handshake. Calling it again once connected
// is a no-op.
func (c *Channel) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	closed, connected := c.closed, c.connected
	c.mu.Unlock()
	if closed {
		return &model.ConnectionError{Op: "connect", Err: model.ErrChannelClosed}
	}
	if connected {
		return nil
	}

	if err := c.transport.Connect(ctx); err != nil {
		return &model.ConnectionError{Op: "connect", Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &model.ConnectionError{Op: "connect", Err: model.ErrChannelClosed}
	}
	if c.lostErr != nil {
		return &model.ConnectionError{Op: "connect", Err: c.lostErr}
	}
	c.connected = true
	log.Debug().Str("room_id", c.roomID).Msg("room channel connected")
	return nil
}

// Connected reports whether Connect succeeded and Disconnect has not run.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.closed
}

// OnLost registers handler to receive a Disconnected event if the transport
// drops on its own. It never fires after Disconnect.
func (c *Channel) OnLost(handler func(Event)) {
	c.transport.OnClose(func(err error) {
		c.mu.Lock()
		closed := c.closed
		c.connected = false
		c.lostErr = err
		c.mu.Unlock()
		if closed {
			return
		}
		log.Warn().Err(err).Str("room_id", c.roomID).Msg("room connection lost")
		handler(Disconnected{Err: err})
	})
}

// Subscribe invokes handler once per decoded message on topic, in arrival order.
// Undecodable payloads are logged and dropped.
func (c *Channel) Subscribe(topic Topic, handler func(Event)) error {
	return c.subscribe(c.TopicPath(topic), func(data []byte) {
		ev, err := DecodeEvent(topic, data)
		if err != nil {
			log.Warn().Err(err).Str("room_id", c.roomID).Str("topic", string(topic)).Msg("dropping room message")
			return
		}
		handler(ev)
	})
}

// SubscribeKicked watches the kick notification addressed to playerID.
func (c *Channel) SubscribeKicked(playerID string, handler func(Event)) error {
	return c.subscribe(c.KickedPath(playerID), func(data []byte) {
		handler(Kicked{PlayerID: playerID, Message: string(data)})
	})
}

func (c *Channel) subscribe(path string, handler func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.connected {
		return model.ErrNotConnected
	}
	sub, err := c.transport.Subscribe(path, handler)
	if err != nil {
		return &model.ConnectionError{Op: "subscribe " + path, Err: err}
	}
	c.subs = append(c.subs, sub)
	return nil
}

// Publish sends payload as JSON without waiting for acknowledgement.
func (c *Channel) Publish(dest Destination, payload any) error {
	body, err := wire.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", dest, err)
	}
	c.mu.Lock()
	ready := c.connected && !c.closed
	c.mu.Unlock()
	if !ready {
		return model.ErrNotConnected
	}
	if err := c.transport.Publish(c.DestinationPath(dest), body); err != nil {
		return &model.ConnectionError{Op: "publish " + string(dest), Err: err}
	}
	return nil
}

// Disconnect unsubscribes every handler registered through this channel and
// closes the transport. Later calls are no-ops.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Debug().Err(err).Str("room_id", c.roomID).Msg("unsubscribe failed")
		}
	}
	if err := c.transport.Close(); err != nil {
		return &model.ConnectionError{Op: "disconnect", Err: err}
	}
	log.Debug().Str("room_id", c.roomID).Msg("room channel disconnected")
	return nil
}
