// Package results reports finished single-player sessions.
package results

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/verte-zerg/typerace/internal/model"
)

// Poster sends a finished session to the results endpoint.
type Poster interface {
	SubmitResult(ctx context.Context, r model.SessionResult) error
}

// Recorder keeps a local copy of finished sessions.
type Recorder interface {
	InsertSession(ctx context.Context, r model.SessionResult) (int64, error)
}

// Submitter reports one session exactly once. Every Submit after the first
// returns the first call's outcome without touching the network again.
type Submitter struct {
	poster   Poster
	recorder Recorder

	once sync.Once
	err  error
}

// NewSubmitter returns a submitter for a single session. Either dependency may be nil.
func NewSubmitter(poster Poster, recorder Recorder) *Submitter {
	return &Submitter{poster: poster, recorder: recorder}
}

// Submit records r locally and posts it. A failed post is not retried.
func (s *Submitter) Submit(ctx context.Context, r model.SessionResult) error {
	s.once.Do(func() {
		s.err = s.submit(ctx, r)
	})
	return s.err
}

func (s *Submitter) submit(ctx context.Context, r model.SessionResult) error {
	if s.recorder != nil {
		if _, err := s.recorder.InsertSession(ctx, r); err != nil {
			// Local history is best-effort; the post still goes out.
			log.Warn().Err(err).Str("session_id", r.SessionID).Msg("failed to record session")
		}
	}
	if s.poster == nil {
		return nil
	}
	if err := s.poster.SubmitResult(ctx, r); err != nil {
		log.Error().Err(err).Str("session_id", r.SessionID).Msg("result submission failed")
		return err
	}
	log.Info().
		Str("session_id", r.SessionID).
		Int("correct", r.Correct).
		Int("incorrect", r.Incorrect).
		Msg("result submitted")
	return nil
}
