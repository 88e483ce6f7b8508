package words

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/wire"
)

const (
	// NextWordsSubject is the request subject served by the quote service.
	NextWordsSubject = "quote.next"

	natsRequestTimeout = 5 * time.Second
)

// Requester is the request/reply half of *nats.Conn.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// NATSSupplier asks the quote service for words over NATS request/reply.
type NATSSupplier struct {
	conn    Requester
	subject string
	timeout time.Duration
}

// NewNATSSupplier returns a supplier using conn.
func NewNATSSupplier(conn Requester) *NATSSupplier {
	return &NATSSupplier{conn: conn, subject: NextWordsSubject, timeout: natsRequestTimeout}
}

// NextWords implements Supplier.
func (s *NATSSupplier) NextWords(ctx context.Context, count int, flags model.ContentFlags) ([]string, error) {
	payload, err := wire.Marshal(wire.NextWordsRequest{
		WordCount:   count,
		Punctuation: flags.Punctuation,
		Numbers:     flags.Numbers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode words request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	msg, err := s.conn.RequestWithContext(ctx, s.subject, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to request words: %w", err)
	}

	var resp wire.NextWordsResponse
	if err := wire.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode words reply: %w", err)
	}
	return wire.SplitWords(resp.Text), nil
}
