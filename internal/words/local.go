package words

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"
	"unicode"

	"github.com/verte-zerg/typerace/internal/model"
)

const (
	capsPct    = 0.15
	punctPct   = 0.25
	numbersPct = 0.15
)

var punctSet = []rune{',', '.', '?', '!', ';', ':'}

// LocalSupplier generates words offline from a word list.
type LocalSupplier struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	words []string
}

// NewLocalSupplier returns a supplier seeded with the current time.
func NewLocalSupplier(words []string) *LocalSupplier {
	return NewSeededSupplier(words, time.Now().UnixNano())
}

// NewSeededSupplier returns a deterministic supplier.
func NewSeededSupplier(words []string, seed int64) *LocalSupplier {
	return &LocalSupplier{rnd: rand.New(rand.NewSource(seed)), words: words}
}

// NextWords selects words uniformly and decorates them according to flags.
func (s *LocalSupplier) NextWords(ctx context.Context, count int, flags model.ContentFlags) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 || len(s.words) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if flags.Numbers && s.rnd.Float64() < numbersPct {
			result = append(result, randomNumber(s.rnd))
			continue
		}
		word := s.words[s.rnd.Intn(len(s.words))]
		if flags.Punctuation {
			word = applyCaps(s.rnd, word, capsPct)
			word = applyPunct(s.rnd, word, punctPct, punctSet)
		}
		result = append(result, word)
	}
	return result, nil
}

func randomNumber(rnd *rand.Rand) string {
	digits := 1 + rnd.Intn(4)
	n := rnd.Intn(9) + 1
	for i := 1; i < digits; i++ {
		n = n*10 + rnd.Intn(10)
	}
	return strconv.Itoa(n)
}

func applyCaps(rnd *rand.Rand, word string, pct float64) string {
	if pct <= 0 || rnd.Float64() > pct {
		return word
	}
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func applyPunct(rnd *rand.Rand, word string, pct float64, set []rune) string {
	if pct <= 0 || len(set) == 0 || rnd.Float64() > pct {
		return word
	}
	return word + string(set[rnd.Intn(len(set))])
}
