// Package session implements the typing session state machine.
package session

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/verte-zerg/typerace/internal/model"
)

// State is the lifecycle phase of a Session.
type State int

const (
	Idle State = iota
	Running
	Over
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Over:
		return "over"
	default:
		return "unknown"
	}
}

const (
	defaultLowWater      = 20
	defaultPrefetchWords = 10
)

// WordSource is the pool a Session draws additional quote text from.
// Implementations must not invoke the refill hook synchronously from Take or
// RequestRefill.
type WordSource interface {
	Take(n int) []string
	RequestRefill(n int) bool
	Err() error
	ClearErr()
	OnRefill(fn func())
}

// Options configures a Session.
type Options struct {
	SessionID string
	Quote     string
	Mode      model.Mode
	Target    int
	Flags     model.ContentFlags

	// Multiplayer sessions ignore keystrokes until Activate and take their
	// clock from SetServerTime.
	Multiplayer bool

	Words         WordSource
	LowWater      int
	PrefetchWords int

	OnStart    func()
	OnGameOver func(correct, incorrect int)
	// OnChange is invoked after state changes that did not come from HandleKey.
	OnChange func()

	Clock clockwork.Clock
}

// Session tracks typed input against the race quote.
type Session struct {
	opts  Options
	clock clockwork.Clock

	mu             sync.Mutex
	state          State
	active         bool
	quote          []rune
	typed          []rune
	correct        int
	incorrect      int
	wordsCompleted int
	timeLeft       int
	fetchPending   bool
	fetchErr       error
	startedAt      time.Time
	endedAt        time.Time
	stop           chan struct{}
	closed         bool

	overOnce sync.Once
}

// Snapshot is a consistent copy of a Session's observable state.
type Snapshot struct {
	State          State
	Quote          []rune
	Typed          []rune
	Correct        int
	Incorrect      int
	WordsCompleted int
	TimeLeft       int
	FetchErr       error
}

type effects struct {
	started   bool
	over      bool
	correct   int
	incorrect int
}

// New initializes a Session in the Idle state.
func New(opts Options) *Session {
	if opts.LowWater <= 0 {
		opts.LowWater = defaultLowWater
	}
	if opts.PrefetchWords <= 0 {
		opts.PrefetchWords = defaultPrefetchWords
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Session{
		opts:  opts,
		clock: clock,
		state: Idle,
		quote: []rune(opts.Quote),
	}
	if opts.Mode == model.ModeTimer {
		s.timeLeft = opts.Target
	}
	if opts.Words != nil {
		opts.Words.OnRefill(s.WordsAvailable)
	}
	return s
}

// HandleKey applies one keystroke as a single transition: mutate the typed
// text, recompute counts, prefetch, then check completion. It reports whether
// the key was accepted.
func (s *Session) HandleKey(k Key) bool {
	s.mu.Lock()
	fx, ok := s.applyKey(k)
	s.mu.Unlock()
	s.run(fx)
	return ok
}

func (s *Session) applyKey(k Key) (effects, bool) {
	var fx effects
	if s.closed || s.state == Over || k.InInput || k.Kind == KeyModifier {
		return fx, false
	}
	if s.opts.Multiplayer && !s.active {
		return fx, false
	}

	switch k.Kind {
	case KeyBackspace:
		if len(s.typed) == 0 {
			return fx, false
		}
		s.typed = s.typed[:len(s.typed)-1]
	case KeyRune:
		if !unicode.IsPrint(k.Rune) || !s.accepts(k.Rune) {
			return fx, false
		}
		s.typed = append(s.typed, k.Rune)
		if s.state == Idle && !s.opts.Multiplayer {
			s.begin(&fx)
		}
	default:
		return fx, false
	}

	s.recompute()
	s.prefetch()
	if s.completed() {
		s.finish(&fx)
	}
	return fx, true
}

// accepts is the positional type-ahead guard. Past the end of the quote only a
// single separating space is allowed, so the next appended word lines up.
func (s *Session) accepts(r rune) bool {
	pos := len(s.typed)
	if pos < len(s.quote) {
		if r == ' ' {
			return s.quote[pos] == ' '
		}
		return s.quote[pos] != ' '
	}
	if r != ' ' || pos == 0 {
		return false
	}
	return s.typed[pos-1] != ' '
}

func (s *Session) recompute() {
	n := min(len(s.typed), len(s.quote))
	s.correct, s.incorrect = 0, 0
	for i := 0; i < n; i++ {
		if s.quote[i] == ' ' {
			continue
		}
		if s.typed[i] == s.quote[i] {
			s.correct++
		} else {
			s.incorrect++
		}
	}
	s.wordsCompleted = len(strings.Fields(string(s.typed[:n])))
}

func (s *Session) completed() bool {
	if s.opts.Mode != model.ModeWords || s.state != Running || len(s.typed) == 0 {
		return false
	}
	return s.typed[len(s.typed)-1] == ' ' && s.wordsCompleted >= s.opts.Target
}

func (s *Session) prefetch() {
	if s.opts.Words == nil || s.fetchPending || s.state == Over {
		return
	}
	if len(s.quote)-len(s.typed) >= s.opts.LowWater {
		return
	}
	count := s.opts.PrefetchWords
	if s.opts.Mode == model.ModeWords {
		need := s.opts.Target - len(strings.Fields(string(s.quote)))
		if need <= 0 {
			return
		}
		count = min(count, need)
	}

	words := s.opts.Words.Take(count)
	if len(words) == 0 {
		s.fetchPending = true
		s.opts.Words.RequestRefill(count)
		return
	}
	text := strings.Join(words, " ")
	if len(s.quote) > 0 {
		text = " " + text
	}
	s.quote = append(s.quote, []rune(text)...)
}

// WordsAvailable is called when the word source finishes a fetch. A failed
// fetch is recorded and retried on the next keystroke.
func (s *Session) WordsAvailable() {
	s.mu.Lock()
	if s.closed || s.state == Over {
		s.mu.Unlock()
		return
	}
	s.fetchPending = false
	if err := s.opts.Words.Err(); err != nil {
		s.fetchErr = err
		log.Warn().Err(err).Str("session_id", s.opts.SessionID).Msg("word supply failed")
	} else {
		s.fetchErr = nil
		s.prefetch()
	}
	s.mu.Unlock()
	s.changed()
}

func (s *Session) begin(fx *effects) {
	s.state = Running
	s.startedAt = s.clock.Now()
	fx.started = true
	if !s.opts.Multiplayer && s.opts.Mode == model.ModeTimer {
		s.stop = make(chan struct{})
		go s.runCountdown(s.stop)
	}
}

func (s *Session) finish(fx *effects) {
	if s.state == Over {
		return
	}
	s.state = Over
	s.endedAt = s.clock.Now()
	fx.over = true
	fx.correct, fx.incorrect = s.correct, s.incorrect
	s.stopCountdown()
}

func (s *Session) stopCountdown() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Session) run(fx effects) {
	if fx.started && s.opts.OnStart != nil {
		s.opts.OnStart()
	}
	if fx.over {
		s.overOnce.Do(func() {
			if s.opts.OnGameOver != nil {
				s.opts.OnGameOver(fx.correct, fx.incorrect)
			}
		})
	}
}

func (s *Session) changed() {
	if s.opts.OnChange != nil {
		s.opts.OnChange()
	}
}

func (s *Session) runCountdown(stop <-chan struct{}) {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if !s.Tick() {
				return
			}
		}
	}
}

// Tick advances the single-player countdown by one second. It returns false
// once the countdown no longer runs.
func (s *Session) Tick() bool {
	s.mu.Lock()
	if s.closed || s.state != Running || s.opts.Multiplayer || s.opts.Mode != model.ModeTimer {
		s.mu.Unlock()
		return false
	}
	var fx effects
	s.timeLeft--
	if s.timeLeft <= 0 {
		s.timeLeft = 0
		s.finish(&fx)
	}
	running := s.state == Running
	s.mu.Unlock()

	s.run(fx)
	s.changed()
	return running
}

// Activate starts a multiplayer session once the server signals the race. A
// short or empty room quote is topped up from the word source.
func (s *Session) Activate() {
	s.mu.Lock()
	var fx effects
	if s.opts.Multiplayer && !s.active && s.state == Idle && !s.closed {
		s.active = true
		s.begin(&fx)
		s.prefetch()
	}
	s.mu.Unlock()
	s.run(fx)
	s.changed()
}

// SetServerTime applies the authoritative remaining seconds. Zero or below
// ends the session.
func (s *Session) SetServerTime(remaining int) {
	s.mu.Lock()
	var fx effects
	if !s.closed {
		s.timeLeft = max(remaining, 0)
		if remaining <= 0 {
			s.finish(&fx)
		}
	}
	s.mu.Unlock()
	s.run(fx)
	s.changed()
}

// ForceOver ends the session on an external game-over signal.
func (s *Session) ForceOver() {
	s.mu.Lock()
	var fx effects
	if !s.closed {
		s.finish(&fx)
	}
	s.mu.Unlock()
	s.run(fx)
}

// Close stops the countdown and releases the word source. No callbacks fire afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopCountdown()
	s.mu.Unlock()

	if c, ok := s.opts.Words.(interface{ Close() }); ok {
		c.Close()
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Counts returns the current correct and incorrect character counts.
func (s *Session) Counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.correct, s.incorrect
}

// TimeLeft returns the remaining seconds of a timed session.
func (s *Session) TimeLeft() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeLeft
}

// Quote returns the race text accumulated so far.
func (s *Session) Quote() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.quote)
}

// Typed returns the typed text.
func (s *Session) Typed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.typed)
}

// WordsCompleted returns the number of typed words.
func (s *Session) WordsCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wordsCompleted
}

// FetchErr returns the last word supply error, if any.
func (s *Session) FetchErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchErr
}

// ClearFetchErr dismisses the word supply error.
func (s *Session) ClearFetchErr() {
	s.mu.Lock()
	s.fetchErr = nil
	s.mu.Unlock()
	if s.opts.Words != nil {
		s.opts.Words.ClearErr()
	}
}

// Snapshot returns a copy of the observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:          s.state,
		Quote:          append([]rune(nil), s.quote...),
		Typed:          append([]rune(nil), s.typed...),
		Correct:        s.correct,
		Incorrect:      s.incorrect,
		WordsCompleted: s.wordsCompleted,
		TimeLeft:       s.timeLeft,
		FetchErr:       s.fetchErr,
	}
}

// Result returns the outcome of the session for reporting.
func (s *Session) Result() model.SessionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.SessionResult{
		SessionID: s.opts.SessionID,
		Quote:     string(s.quote),
		Mode:      s.opts.Mode,
		Target:    s.opts.Target,
		Flags:     s.opts.Flags,
		Correct:   s.correct,
		Incorrect: s.incorrect,
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
	}
}
