package room

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/verte-zerg/typerace/internal/model"
)

const (
	wsWriteTimeout     = 10 * time.Second
	wsHandshakeTimeout = 10 * time.Second
	wsMaxMessageSize   = 64 * 1024
)

// WebSocketTransport speaks STOMP 1.2 over a single WebSocket connection.
type WebSocketTransport struct {
	url    string
	dialer *websocket.Dialer

	writeMu sync.Mutex

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]func([]byte)
	closed   bool
	onClose  func(error)
}

// NewWebSocketTransport returns an unconnected transport for the broker at rawURL.
func NewWebSocketTransport(rawURL string) *WebSocketTransport {
	return &WebSocketTransport{
		url: rawURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: wsHandshakeTimeout,
		},
		handlers: make(map[string]func([]byte)),
	}
}

// Connect dials the broker and completes the STOMP handshake.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return model.ErrChannelClosed
	}
	if t.conn != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	host := "/"
	if u, err := url.Parse(t.url); err == nil && u.Host != "" {
		host = u.Hostname()
	}

	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", t.url, err)
	}
	conn.SetReadLimit(wsMaxMessageSize)

	if err := t.handshake(ctx, conn, host); err != nil {
		_ = conn.Close()
		return err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return model.ErrChannelClosed
	}
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn)
	log.Info().Str("url", t.url).Msg("room transport connected")
	return nil
}

func (t *WebSocketTransport) handshake(ctx context.Context, conn *websocket.Conn, host string) error {
	connect := newFrame(cmdConnect,
		"accept-version", "1.2",
		"host", host,
		"heart-beat", "0,0",
	)
	if err := writeFrame(conn, connect); err != nil {
		return fmt.Errorf("failed to send CONNECT: %w", err)
	}

	deadline := time.Now().Add(wsHandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read CONNECTED: %w", err)
		}
		frames, err := decodeFrames(data)
		if err != nil {
			return err
		}
		if len(frames) == 0 {
			continue
		}
		switch f := frames[0]; f.command {
		case cmdConnected:
			return nil
		case cmdError:
			return fmt.Errorf("broker rejected connection: %s", f.get("message"))
		default:
			return fmt.Errorf("unexpected %s frame during handshake", f.command)
		}
	}
}

func writeFrame(conn *websocket.Conn, f frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, f.encode())
}

func (t *WebSocketTransport) send(f frame) error {
	t.mu.Lock()
	conn := t.conn
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return model.ErrChannelClosed
	}
	if conn == nil {
		return model.ErrNotConnected
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return writeFrame(conn, f)
}

// OnClose registers fn for a broker-side drop.
func (t *WebSocketTransport) OnClose(fn func(error)) {
	t.mu.Lock()
	t.onClose = fn
	t.mu.Unlock()
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			onClose := t.onClose
			t.onClose = nil
			t.mu.Unlock()
			if closed {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Str("url", t.url).Msg("room transport read failed")
			}
			if onClose != nil {
				onClose(err)
			}
			return
		}
		frames, err := decodeFrames(data)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed STOMP frame")
		}
		for _, f := range frames {
			t.dispatch(f)
		}
	}
}

func (t *WebSocketTransport) dispatch(f frame) {
	switch f.command {
	case cmdMessage:
		t.mu.Lock()
		handler := t.handlers[f.get("subscription")]
		t.mu.Unlock()
		if handler != nil {
			handler(f.body)
		}
	case cmdError:
		log.Error().Str("message", f.get("message")).Bytes("body", f.body).Msg("broker error")
	}
}

// Subscribe registers handler for topic.
func (t *WebSocketTransport) Subscribe(topic string, handler func([]byte)) (Subscription, error) {
	id := uuid.NewString()
	t.mu.Lock()
	t.handlers[id] = handler
	t.mu.Unlock()

	if err := t.send(newFrame(cmdSubscribe, "id", id, "destination", topic, "ack", "auto")); err != nil {
		t.mu.Lock()
		delete(t.handlers, id)
		t.mu.Unlock()
		return nil, err
	}
	return &wsSubscription{transport: t, id: id}, nil
}

// Publish sends body to destination.
func (t *WebSocketTransport) Publish(destination string, body []byte) error {
	f := newFrame(cmdSend, "destination", destination, "content-type", "application/json")
	f.body = body
	return t.send(f)
}

// Close sends DISCONNECT and closes the socket without waiting for the reader.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.handlers = make(map[string]func([]byte))
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	err := writeFrame(conn, newFrame(cmdDisconnect, "receipt", uuid.NewString()))
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()

	cerr := conn.Close()
	log.Info().Str("url", t.url).Msg("room transport closed")
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("failed to send DISCONNECT: %w", err)
	}
	return cerr
}

type wsSubscription struct {
	transport *WebSocketTransport
	id        string
	once      sync.Once
}

func (s *wsSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.transport.mu.Lock()
		delete(s.transport.handlers, s.id)
		s.transport.mu.Unlock()
		err = s.transport.send(newFrame(cmdUnsubscribe, "id", s.id))
		if errors.Is(err, model.ErrChannelClosed) {
			err = nil
		}
	})
	return err
}
