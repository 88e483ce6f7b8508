package words

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/verte-zerg/typerace/internal/model"
)

const (
	defaultBufferSize   = 30
	defaultThreshold    = 10
	defaultFetchTimeout = 5 * time.Second
)

// BufferOption configures a Buffer.
type BufferOption func(*Buffer)

// WithSize sets the capacity the buffer tops up to.
func WithSize(n int) BufferOption {
	return func(b *Buffer) {
		if n > 0 {
			b.size = n
		}
	}
}

// WithThreshold sets the pending-word count below which a refill starts.
func WithThreshold(n int) BufferOption {
	return func(b *Buffer) {
		if n >= 0 {
			b.threshold = n
		}
	}
}

// WithTimeout bounds each supplier call.
func WithTimeout(d time.Duration) BufferOption {
	return func(b *Buffer) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLimit caps the total number of words the buffer requests over its
// lifetime. Failed or short fetches return their unused share.
func WithLimit(n int) BufferOption {
	return func(b *Buffer) {
		if n >= 0 {
			b.limit = n
			b.limited = true
		}
	}
}

// WithClock replaces the clock used for fetch timeouts.
func WithClock(c clockwork.Clock) BufferOption {
	return func(b *Buffer) {
		if c != nil {
			b.clock = c
		}
	}
}

// Buffer keeps a FIFO pool of pre-fetched words. At most one fetch is in
// flight at any time.
type Buffer struct {
	supplier  Supplier
	flags     model.ContentFlags
	size      int
	threshold int
	timeout   time.Duration
	clock     clockwork.Clock

	refilling atomic.Bool

	mu       sync.Mutex
	pending  []string
	err      error
	onRefill func()
	closed   bool
	limit    int
	limited  bool
	asked    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBuffer returns an empty buffer. Call Fill or RequestRefill to populate it.
func NewBuffer(s Supplier, flags model.ContentFlags, opts ...BufferOption) *Buffer {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Buffer{
		supplier:  s,
		flags:     flags,
		size:      defaultBufferSize,
		threshold: defaultThreshold,
		timeout:   defaultFetchTimeout,
		clock:     clockwork.NewRealClock(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnRefill registers a hook invoked after every completed fetch, successful or not.
func (b *Buffer) OnRefill(fn func()) {
	b.mu.Lock()
	b.onRefill = fn
	b.mu.Unlock()
}

// Fill requests a top-up to the configured size, bounded by the limit.
func (b *Buffer) Fill() bool {
	return b.RequestRefill(b.size - b.Len())
}

// RequestRefill starts an asynchronous fetch of count words, trimmed to what
// remains of the limit. It returns false when a fetch is already in flight,
// the limit is spent or the buffer is closed.
func (b *Buffer) RequestRefill(count int) bool {
	if count <= 0 {
		return false
	}
	if !b.refilling.CompareAndSwap(false, true) {
		return false
	}
	b.mu.Lock()
	if b.limited {
		count = min(count, b.limit-b.asked)
	}
	if b.closed || count <= 0 {
		b.mu.Unlock()
		b.refilling.Store(false)
		return false
	}
	b.asked += count
	b.wg.Add(1)
	b.mu.Unlock()

	go b.fetch(count)
	return true
}

// Refilling reports whether a fetch is in flight.
func (b *Buffer) Refilling() bool {
	return b.refilling.Load()
}

func (b *Buffer) fetch(count int) {
	words, err := b.fetchWithTimeout(count)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.refilling.Store(false)
		b.wg.Done()
		return
	}
	if err != nil {
		b.asked -= count
		b.err = &model.FetchError{Op: "next words", Err: err}
		log.Warn().Err(err).Int("count", count).Msg("word refill failed")
	} else {
		if b.limited && len(words) > count {
			words = words[:count]
		}
		b.asked -= max(0, count-len(words))
		b.pending = append(b.pending, words...)
		b.err = nil
	}
	hook := b.onRefill
	b.mu.Unlock()

	b.refilling.Store(false)
	b.wg.Done()
	if hook != nil {
		hook()
	}
}

func (b *Buffer) fetchWithTimeout(count int) ([]string, error) {
	ctx, cancel := context.WithCancel(b.ctx)
	defer cancel()

	timer := b.clock.NewTimer(b.timeout)
	defer stopAndDrainTimer(timer)
	go func() {
		select {
		case <-timer.Chan():
			cancel()
		case <-ctx.Done():
		}
	}()

	return b.supplier.NextWords(ctx, count, b.flags)
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// Take removes and returns up to n words from the front of the pool. A refill
// is requested once the pool drops under the threshold.
func (b *Buffer) Take(n int) []string {
	b.mu.Lock()
	if n > len(b.pending) {
		n = len(b.pending)
	}
	if n < 0 {
		n = 0
	}
	out := make([]string, n)
	copy(out, b.pending[:n])
	b.pending = b.pending[n:]
	remaining := len(b.pending)
	b.mu.Unlock()

	if remaining < b.threshold {
		b.RequestRefill(b.size - remaining)
	}
	return out
}

// Len returns the number of pending words.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Err returns the last fetch error, if any.
func (b *Buffer) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// ClearErr dismisses the last fetch error.
func (b *Buffer) ClearErr() {
	b.mu.Lock()
	b.err = nil
	b.mu.Unlock()
}

// Close cancels any in-flight fetch and discards its result.
func (b *Buffer) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}
