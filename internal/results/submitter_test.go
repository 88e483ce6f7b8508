package results

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/verte-zerg/typerace/internal/model"
)

type countingPoster struct {
	calls atomic.Int32
	err   error
	gate  chan struct{}
}

func (p *countingPoster) SubmitResult(context.Context, model.SessionResult) error {
	p.calls.Add(1)
	if p.gate != nil {
		<-p.gate
	}
	return p.err
}

type memoryRecorder struct {
	mu   sync.Mutex
	rows []model.SessionResult
	err  error
}

func (m *memoryRecorder) InsertSession(_ context.Context, r model.SessionResult) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.rows = append(m.rows, r)
	return int64(len(m.rows)), nil
}

func TestSubmitConcurrentCallsPostOnce(t *testing.T) {
	poster := &countingPoster{gate: make(chan struct{})}
	rec := &memoryRecorder{}
	s := NewSubmitter(poster, rec)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Submit(context.Background(), model.SessionResult{SessionID: "s1"}); err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
	}
	close(poster.gate)
	wg.Wait()

	if got := poster.calls.Load(); got != 1 {
		t.Fatalf("expected one post, got %d", got)
	}
	if len(rec.rows) != 1 {
		t.Fatalf("expected one recorded row, got %d", len(rec.rows))
	}
}

func TestSubmitFailureIsNotRetried(t *testing.T) {
	boom := &model.FetchError{Op: "submit result", Status: 500, Err: errors.New("down")}
	poster := &countingPoster{err: boom}
	s := NewSubmitter(poster, nil)

	first := s.Submit(context.Background(), model.SessionResult{SessionID: "s1"})
	second := s.Submit(context.Background(), model.SessionResult{SessionID: "s1"})
	var fetchErr *model.FetchError
	if !errors.As(first, &fetchErr) || first != second {
		t.Fatalf("expected the same fetch error twice, got %v / %v", first, second)
	}
	if got := poster.calls.Load(); got != 1 {
		t.Fatalf("expected no retry, got %d posts", got)
	}
}

func TestRecorderFailureStillPosts(t *testing.T) {
	poster := &countingPoster{}
	s := NewSubmitter(poster, &memoryRecorder{err: errors.New("disk full")})
	if err := s.Submit(context.Background(), model.SessionResult{SessionID: "s1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if poster.calls.Load() != 1 {
		t.Fatalf("expected post despite recorder failure")
	}
}

func TestLocalOnly(t *testing.T) {
	rec := &memoryRecorder{}
	s := NewSubmitter(nil, rec)
	if err := s.Submit(context.Background(), model.SessionResult{SessionID: "s1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(rec.rows) != 1 {
		t.Fatalf("expected local record")
	}
}
