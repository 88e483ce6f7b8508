package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/wire"
)

func TestChannelRequiresConnect(t *testing.T) {
	b := &memoryBroker{}
	ch := NewChannel("AB", b.newTransport())
	if err := ch.Subscribe(TopicChat, func(Event) {}); !errors.Is(err, model.ErrNotConnected) {
		t.Fatalf("expected not connected, got %v", err)
	}
	if err := ch.Publish(DestChat, wire.ChatMessage{}); !errors.Is(err, model.ErrNotConnected) {
		t.Fatalf("expected not connected, got %v", err)
	}
}

func TestChannelDeliversTypedEventsInOrder(t *testing.T) {
	b := &memoryBroker{}
	ch := NewChannel("AB", b.newTransport())
	ctx := context.Background()
	if err := ch.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := ch.Connect(ctx); err != nil {
		t.Fatalf("connect must be idempotent: %v", err)
	}

	var got []Event
	collect := func(ev Event) { got = append(got, ev) }
	for _, topic := range []Topic{TopicPlayers, TopicCountdown, TopicTimerConfig} {
		if err := ch.Subscribe(topic, collect); err != nil {
			t.Fatalf("subscribe %s: %v", topic, err)
		}
	}

	b.emit(ch.TopicPath(TopicPlayers), `[{"id":"p1","name":"ann","owner":true}]`)
	b.emit(ch.TopicPath(TopicCountdown), `3`)
	b.emit(ch.TopicPath(TopicCountdown), `{"count":2}`)
	b.emit(ch.TopicPath(TopicTimerConfig), `{"duration":45}`)
	b.emit(ch.TopicPath(TopicCountdown), `"soon"`)

	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(got), got)
	}
	roster, ok := got[0].(RosterUpdated)
	if !ok || len(roster.Players) != 1 || !roster.Players[0].IsOwner {
		t.Fatalf("unexpected roster event %+v", got[0])
	}
	if got[1].(CountdownTick).Count != 3 || got[2].(CountdownTick).Count != 2 {
		t.Fatalf("unexpected countdown order %+v", got[1:3])
	}
	if got[3].(TimerConfigChanged).Duration != 45 {
		t.Fatalf("unexpected timer config %+v", got[3])
	}
}

func TestChannelDisconnectIsIdempotent(t *testing.T) {
	b := &memoryBroker{}
	ch := NewChannel("AB", b.newTransport())
	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	for _, topic := range roomTopics {
		if err := ch.Subscribe(topic, func(Event) {}); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	if b.activeSubs() != len(roomTopics) {
		t.Fatalf("expected %d subs, got %d", len(roomTopics), b.activeSubs())
	}
	if err := ch.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := ch.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
	if b.activeSubs() != 0 || !b.allClosed() {
		t.Fatalf("expected all handlers removed and transport closed")
	}
	var cerr *model.ConnectionError
	if err := ch.Connect(context.Background()); !errors.As(err, &cerr) {
		t.Fatalf("expected connection error after disconnect, got %v", err)
	}
}

func TestChannelConnectError(t *testing.T) {
	b := &memoryBroker{connectErr: errors.New("refused")}
	ch := NewChannel("AB", b.newTransport())
	var cerr *model.ConnectionError
	if err := ch.Connect(context.Background()); !errors.As(err, &cerr) || cerr.Op != "connect" {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestDecodeRosterFromRoom(t *testing.T) {
	ev, err := DecodeEvent(TopicPlayers, []byte(`{"roomId":"AB","ownerId":"p2","players":[{"id":"p1"},{"id":"p2"}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	players := ev.(RosterUpdated).Players
	if len(players) != 2 || !players[1].IsOwner {
		t.Fatalf("unexpected players %+v", players)
	}
}

func TestNATSSubject(t *testing.T) {
	if got := Subject("/topic/room/AB12/kicked/p1"); got != "topic.room.AB12.kicked.p1" {
		t.Fatalf("unexpected subject %q", got)
	}
}

// gatedTransport blocks Connect until release is closed.
type gatedTransport struct {
	*memoryTransport
	entered chan struct{}
	release chan struct{}
}

func (g *gatedTransport) Connect(ctx context.Context) error {
	close(g.entered)
	<-g.release
	return g.memoryTransport.Connect(ctx)
}

func TestChannelDisconnectDuringConnect(t *testing.T) {
	b := &memoryBroker{}
	gated := &gatedTransport{
		memoryTransport: b.newTransport().(*memoryTransport),
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	ch := NewChannel("AB", gated)

	result := make(chan error, 1)
	go func() { result <- ch.Connect(context.Background()) }()
	<-gated.entered

	done := make(chan struct{})
	go func() {
		_ = ch.Disconnect()
		_ = ch.Connected()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("disconnect blocked behind the handshake")
	}

	close(gated.release)
	err := <-result
	var cerr *model.ConnectionError
	if !errors.As(err, &cerr) || !errors.Is(err, model.ErrChannelClosed) {
		t.Fatalf("expected closed connection error, got %v", err)
	}
	if ch.Connected() {
		t.Fatalf("channel must stay disconnected")
	}
}

func TestChannelOnLost(t *testing.T) {
	b := &memoryBroker{}
	ch := NewChannel("AB", b.newTransport())
	var got []Event
	ch.OnLost(func(ev Event) { got = append(got, ev) })
	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	b.drop(errors.New("broker gone"))
	if len(got) != 1 {
		t.Fatalf("expected one loss event, got %+v", got)
	}
	if d, ok := got[0].(Disconnected); !ok || d.Err == nil {
		t.Fatalf("unexpected event %+v", got[0])
	}
	if ch.Connected() {
		t.Fatalf("expected channel marked disconnected")
	}

	other := NewChannel("CD", b.newTransport())
	other.OnLost(func(ev Event) { t.Fatalf("loss reported after disconnect: %+v", ev) })
	if err := other.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := other.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	b.drop(errors.New("late"))
}
