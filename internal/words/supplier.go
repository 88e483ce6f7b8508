// Package words supplies race text and keeps a pre-fetched pool of words.
package words

import (
	"context"
	"fmt"
	"strings"

	"github.com/verte-zerg/typerace/internal/model"
)

// Supplier returns count words generated with the given content flags.
type Supplier interface {
	NextWords(ctx context.Context, count int, flags model.ContentFlags) ([]string, error)
}

// Supplier kinds accepted by the configuration.
const (
	SupplierLocal = "local"
	SupplierHTTP  = "http"
	SupplierNATS  = "nats"
)

// Text fetches count words and joins them with single spaces.
func Text(ctx context.Context, s Supplier, count int, flags model.ContentFlags) (string, error) {
	words, err := s.NextWords(ctx, count, flags)
	if err != nil {
		return "", err
	}
	if len(words) == 0 {
		return "", fmt.Errorf("supplier returned no words")
	}
	return strings.Join(words, " "), nil
}
