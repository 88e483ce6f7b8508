package room

import (
	"context"
	"sync"
)

type publishedMsg struct {
	dest string
	body []byte
}

// memoryBroker delivers messages synchronously to transports created from it.
type memoryBroker struct {
	mu         sync.Mutex
	subs       []*memorySub
	published  []publishedMsg
	transports []*memoryTransport
	connectErr error
}

type memorySub struct {
	broker  *memoryBroker
	topic   string
	handler func([]byte)
	owner   *memoryTransport
	active  bool
}

func (s *memorySub) Unsubscribe() error {
	s.broker.mu.Lock()
	s.active = false
	s.broker.mu.Unlock()
	return nil
}

type memoryTransport struct {
	broker    *memoryBroker
	connected bool
	closed    bool
	onClose   func(error)
}

func (b *memoryBroker) newTransport() Transport {
	t := &memoryTransport{broker: b}
	b.mu.Lock()
	b.transports = append(b.transports, t)
	b.mu.Unlock()
	return t
}

func (t *memoryTransport) Connect(context.Context) error {
	t.broker.mu.Lock()
	defer t.broker.mu.Unlock()
	if t.broker.connectErr != nil {
		return t.broker.connectErr
	}
	t.connected = true
	return nil
}

func (t *memoryTransport) Subscribe(topic string, handler func([]byte)) (Subscription, error) {
	t.broker.mu.Lock()
	defer t.broker.mu.Unlock()
	sub := &memorySub{broker: t.broker, topic: topic, handler: handler, owner: t, active: true}
	t.broker.subs = append(t.broker.subs, sub)
	return sub, nil
}

func (t *memoryTransport) Publish(dest string, body []byte) error {
	t.broker.mu.Lock()
	defer t.broker.mu.Unlock()
	t.broker.published = append(t.broker.published, publishedMsg{dest: dest, body: body})
	return nil
}

func (t *memoryTransport) OnClose(fn func(error)) {
	t.broker.mu.Lock()
	t.onClose = fn
	t.broker.mu.Unlock()
}

// drop simulates the broker closing every open transport.
func (b *memoryBroker) drop(err error) {
	b.mu.Lock()
	var fns []func(error)
	for _, t := range b.transports {
		if !t.closed && t.onClose != nil {
			fns = append(fns, t.onClose)
			t.onClose = nil
		}
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (t *memoryTransport) Close() error {
	t.broker.mu.Lock()
	defer t.broker.mu.Unlock()
	t.closed = true
	for _, s := range t.broker.subs {
		if s.owner == t {
			s.active = false
		}
	}
	return nil
}

// emit delivers payload to every active subscriber of topic.
func (b *memoryBroker) emit(topic, payload string) {
	b.mu.Lock()
	var handlers []func([]byte)
	for _, s := range b.subs {
		if s.active && s.topic == topic {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h([]byte(payload))
	}
}

func (b *memoryBroker) activeSubs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.subs {
		if s.active {
			n++
		}
	}
	return n
}

func (b *memoryBroker) publishedTo(dest string) []publishedMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedMsg
	for _, p := range b.published {
		if p.dest == dest {
			out = append(out, p)
		}
	}
	return out
}

func (b *memoryBroker) allClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.transports {
		if !t.closed {
			return false
		}
	}
	return true
}
