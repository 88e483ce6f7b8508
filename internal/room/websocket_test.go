package room

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verte-zerg/typerace/internal/model"
)

// stompBroker is a minimal STOMP server routing /app/X sends to /topic/X subscribers.
type stompBroker struct {
	t      *testing.T
	reject bool
	// hangUp closes the socket right after CONNECTED.
	hangUp bool

	mu       sync.Mutex
	subs     map[string]string // subscription id -> destination
	unsubbed []string
	disconn  bool
}

func newStompServer(t *testing.T, b *stompBroker) (*httptest.Server, string) {
	b.t = t
	b.subs = make(map[string]string)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		b.serve(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func (b *stompBroker) serve(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frames, err := decodeFrames(data)
		if err != nil {
			return
		}
		for _, f := range frames {
			switch f.command {
			case cmdConnect:
				reply := newFrame(cmdConnected, "version", "1.2")
				if b.reject {
					reply = newFrame(cmdError, "message", "bad credentials")
				}
				_ = conn.WriteMessage(websocket.TextMessage, reply.encode())
				if b.hangUp {
					return
				}
			case cmdSubscribe:
				b.mu.Lock()
				b.subs[f.get("id")] = f.get("destination")
				b.mu.Unlock()
			case cmdUnsubscribe:
				b.mu.Lock()
				delete(b.subs, f.get("id"))
				b.unsubbed = append(b.unsubbed, f.get("id"))
				b.mu.Unlock()
			case cmdSend:
				topic := "/topic" + strings.TrimPrefix(f.get("destination"), "/app")
				b.mu.Lock()
				var ids []string
				for id, dest := range b.subs {
					if dest == topic {
						ids = append(ids, id)
					}
				}
				b.mu.Unlock()
				for _, id := range ids {
					msg := newFrame(cmdMessage, "subscription", id, "destination", topic, "message-id", "1")
					msg.body = f.body
					_ = conn.WriteMessage(websocket.TextMessage, msg.encode())
				}
			case cmdDisconnect:
				b.mu.Lock()
				b.disconn = true
				b.mu.Unlock()
			}
		}
	}
}

func (b *stompBroker) subscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *stompBroker) disconnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disconn
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketTransportRoundTrip(t *testing.T) {
	broker := &stompBroker{}
	_, url := newStompServer(t, broker)

	tr := NewWebSocketTransport(url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	tr.OnClose(func(err error) { t.Errorf("unexpected close callback: %v", err) })

	got := make(chan string, 4)
	sub, err := tr.Subscribe("/topic/room/AB/chat", func(b []byte) { got <- string(b) })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	eventually(t, func() bool { return broker.subscriptions() == 1 }, "subscription registered")

	for _, body := range []string{"one", "two", "three"} {
		if err := tr.Publish("/app/room/AB/chat", []byte(body)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	for _, want := range []string{"one", "two", "three"} {
		select {
		case body := <-got:
			if body != want {
				t.Fatalf("expected %q in order, got %q", want, body)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	eventually(t, func() bool { return broker.subscriptions() == 0 }, "unsubscribe delivered")

	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	eventually(t, broker.disconnected, "DISCONNECT delivered")
	if err := tr.Publish("/app/room/AB/chat", nil); !errors.Is(err, model.ErrChannelClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestWebSocketTransportRejected(t *testing.T) {
	_, url := newStompServer(t, &stompBroker{reject: true})
	err := NewWebSocketTransport(url).Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad credentials") {
		t.Fatalf("expected broker rejection, got %v", err)
	}
}

func TestChannelOverWebSocketClosesFromHandler(t *testing.T) {
	broker := &stompBroker{}
	_, url := newStompServer(t, broker)

	ch := NewChannel("AB", NewWebSocketTransport(url))
	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	done := make(chan Event, 1)
	if err := ch.SubscribeKicked("p1", func(ev Event) {
		_ = ch.Disconnect()
		done <- ev
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	eventually(t, func() bool { return broker.subscriptions() == 1 }, "subscription registered")

	if err := ch.transport.Publish("/app/room/AB/kicked/p1", []byte("bye")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case ev := <-done:
		kicked, ok := ev.(Kicked)
		if !ok || kicked.PlayerID != "p1" || kicked.Message != "bye" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler never ran")
	}
	if ch.Connected() {
		t.Fatalf("expected channel disconnected")
	}
}

func TestWebSocketTransportDialFailure(t *testing.T) {
	err := NewWebSocketTransport("ws://127.0.0.1:1/ws").Connect(context.Background())
	if err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestWebSocketTransportReportsBrokerHangUp(t *testing.T) {
	_, url := newStompServer(t, &stompBroker{hangUp: true})

	ch := NewChannel("AB", NewWebSocketTransport(url))
	lost := make(chan Event, 1)
	ch.OnLost(func(ev Event) { lost <- ev })
	// The hang-up may land before or after the handshake returns.
	if err := ch.Connect(context.Background()); err != nil {
		var cerr *model.ConnectionError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected connection error, got %v", err)
		}
	}
	select {
	case ev := <-lost:
		if d, ok := ev.(Disconnected); !ok || d.Err == nil {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("connection loss never reported")
	}
	if ch.Connected() {
		t.Fatalf("expected channel marked disconnected")
	}
	if err := ch.Disconnect(); err != nil {
		t.Logf("disconnect after loss: %v", err)
	}
}
