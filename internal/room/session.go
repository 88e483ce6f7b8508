package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/session"
	"github.com/verte-zerg/typerace/internal/wire"
)

// DefaultRaceDuration applies when the room does not report one.
const DefaultRaceDuration = 30

var (
	// ErrStale is returned when a create or join resolves after the caller
	// navigated away.
	ErrStale = errors.New("room request superseded")
	// ErrAlreadyInRoom is returned by create or join outside the lobby.
	ErrAlreadyInRoom = errors.New("already in a room")
	// ErrChatDisabled is returned by SendChat during a race.
	ErrChatDisabled = errors.New("chat is disabled during the race")
	// ErrPlayerNotFound is returned when the server's room lacks the caller.
	ErrPlayerNotFound = errors.New("player not found in room")
)

// API is the REST surface used to create and join rooms.
type API interface {
	CreateRoom(ctx context.Context, playerName string) (model.Room, error)
	JoinRoom(ctx context.Context, roomID, playerName string) (model.Room, error)
}

// Config wires a Session to its collaborators.
type Config struct {
	API API
	// NewTransport returns a fresh transport for each joined room.
	NewTransport func() Transport
	// NewWords optionally supplies extra race text during a game.
	NewWords func() session.WordSource
	Clock    clockwork.Clock

	OnChange   func(State)
	OnGameOver func(model.SessionResult)
}

type createForm struct {
	PlayerName string `validate:"required,max=32"`
}

type joinForm struct {
	RoomID     string `validate:"required,max=64"`
	PlayerName string `validate:"required,max=32"`
}

// Session drives the room lifecycle: Lobby, Room, Countdown, Game, Results.
// Channel events are folded through Reduce; side effects run outside the lock.
type Session struct {
	cfg Config

	mu      sync.Mutex
	state   State
	channel *Channel
	typing  *session.Session
	// gen invalidates in-flight requests and handlers of a previous room.
	gen    uint64
	closed bool
}

// NewSession returns a Session in the lobby.
func NewSession(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Session{cfg: cfg}
}

// State returns a copy of the current room state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Typing returns the race's typing session, or nil outside a game.
func (s *Session) Typing() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// CreateRoom creates a room owned by name and enters it.
func (s *Session) CreateRoom(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := model.Validate(createForm{PlayerName: name}); err != nil {
		return err
	}
	gen, err := s.beginNavigation()
	if err != nil {
		return err
	}
	r, err := s.cfg.API.CreateRoom(ctx, name)
	if err != nil {
		return err
	}
	self, ok := ownerNamed(r, name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, name)
	}
	return s.enter(ctx, gen, r, self)
}

// JoinRoom joins roomID as name. Room ids are compared case-insensitively.
func (s *Session) JoinRoom(ctx context.Context, roomID, name string) error {
	roomID = strings.ToUpper(strings.TrimSpace(roomID))
	name = strings.TrimSpace(name)
	if err := model.Validate(joinForm{RoomID: roomID, PlayerName: name}); err != nil {
		return err
	}
	gen, err := s.beginNavigation()
	if err != nil {
		return err
	}
	r, err := s.cfg.API.JoinRoom(ctx, roomID, name)
	if err != nil {
		return err
	}
	self, ok := lastNamed(r, name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, name)
	}
	return s.enter(ctx, gen, r, self)
}

func (s *Session) beginNavigation() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, model.ErrChannelClosed
	}
	if s.state.Phase != PhaseLobby {
		return 0, ErrAlreadyInRoom
	}
	s.gen++
	return s.gen, nil
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.gen == gen
}

func (s *Session) enter(ctx context.Context, gen uint64, r model.Room, self model.Player) error {
	if !s.current(gen) {
		return ErrStale
	}
	ch := NewChannel(r.ID, s.cfg.NewTransport())
	ch.OnLost(func(ev Event) { s.dispatch(gen, ev) })
	if err := ch.Connect(ctx); err != nil {
		_ = ch.Disconnect()
		return err
	}

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		_ = ch.Disconnect()
		return ErrStale
	}
	s.channel = ch
	s.state = Reduce(s.state, Joined{Room: r, Self: self})
	st := s.state
	s.mu.Unlock()
	s.notify(st)

	if err := s.subscribeAll(ch, gen, self.ID); err != nil {
		s.leave(gen)
		return err
	}
	if err := ch.Publish(DestTrack, wire.TrackSession{PlayerID: self.ID}); err != nil {
		log.Warn().Err(err).Str("room_id", r.ID).Msg("failed to track session")
	}
	log.Info().Str("room_id", r.ID).Str("player_id", self.ID).Msg("entered room")
	return nil
}

var roomTopics = []Topic{
	TopicPlayers,
	TopicChat,
	TopicTimerConfig,
	TopicGameStart,
	TopicCountdown,
	TopicGameStarted,
	TopicGameTimer,
	TopicGameEnded,
}

func (s *Session) subscribeAll(ch *Channel, gen uint64, selfID string) error {
	handler := func(ev Event) { s.dispatch(gen, ev) }
	if err := ch.SubscribeKicked(selfID, handler); err != nil {
		return err
	}
	for _, topic := range roomTopics {
		if err := ch.Subscribe(topic, handler); err != nil {
			return err
		}
	}
	return nil
}

// dispatch folds one channel event into the state and runs its effects.
func (s *Session) dispatch(gen uint64, ev Event) {
	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return
	}
	prev := s.state
	next := Reduce(prev, ev)
	s.state = next

	typing := s.typing
	var (
		started   *session.Session
		oldCh     *Channel
		oldTyping *session.Session
	)
	switch {
	case prev.Phase != PhaseLobby && next.Phase == PhaseLobby:
		s.gen++
		oldCh, oldTyping = s.channel, s.typing
		s.channel, s.typing = nil, nil
		typing = nil
	case prev.Phase != PhaseGame && next.Phase == PhaseGame:
		oldTyping = s.typing
		started = s.newTyping(next)
		s.typing = started
		typing = started
	}
	s.mu.Unlock()

	if oldCh != nil || oldTyping != nil {
		s.teardown(oldCh, oldTyping)
	}
	if prev.Phase != PhaseLobby && next.Phase == PhaseLobby && next.Notice != "" {
		log.Info().Str("room_id", prev.Room.ID).Str("reason", next.Notice).Msg("returned to lobby")
	}
	if started != nil {
		started.Activate()
	}
	if typing != nil {
		switch e := ev.(type) {
		case GameTimerTick:
			if next.Phase == PhaseGame {
				typing.SetServerTime(e.Remaining)
			}
		case GameEnded:
			if prev.Phase == PhaseGame {
				typing.ForceOver()
			}
		}
	}
	s.notify(next)
}

func (s *Session) newTyping(st State) *session.Session {
	duration := st.Room.Duration
	if duration <= 0 {
		duration = DefaultRaceDuration
	}
	var words session.WordSource
	if s.cfg.NewWords != nil {
		words = s.cfg.NewWords()
	}
	var ts *session.Session
	ts = session.New(session.Options{
		SessionID:   st.Room.ID,
		Quote:       st.Room.Quote,
		Mode:        model.ModeTimer,
		Target:      duration,
		Multiplayer: true,
		Words:       words,
		Clock:       s.cfg.Clock,
		OnGameOver: func(int, int) {
			if s.cfg.OnGameOver != nil {
				s.cfg.OnGameOver(ts.Result())
			}
		},
		OnChange: s.notifyCurrent,
	})
	return ts
}

// HandleKey forwards a keystroke to the race. It reports whether it was accepted.
func (s *Session) HandleKey(k session.Key) bool {
	s.mu.Lock()
	typing := s.typing
	inGame := s.state.Phase == PhaseGame
	s.mu.Unlock()
	if typing == nil || !inGame {
		return false
	}
	accepted := typing.HandleKey(k)
	if accepted {
		s.notifyCurrent()
	}
	return accepted
}

// SendChat publishes a trimmed chat message. Chat is unavailable during a race.
func (s *Session) SendChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &model.ValidationError{Field: "message", Reason: "must not be empty"}
	}
	s.mu.Lock()
	st, ch := s.state, s.channel
	s.mu.Unlock()
	if ch == nil {
		return model.ErrNotConnected
	}
	if st.Phase == PhaseGame {
		return ErrChatDisabled
	}
	return ch.Publish(DestChat, wire.ChatMessage{
		PlayerID:   st.Self.ID,
		PlayerName: st.Self.Name,
		Message:    text,
		Type:       string(model.ChatKindChat),
	})
}

func (s *Session) ownerAction() (State, *Channel, error) {
	s.mu.Lock()
	st, ch := s.state, s.channel
	s.mu.Unlock()
	if ch == nil || st.Phase == PhaseLobby {
		return st, nil, model.ErrNotConnected
	}
	if !st.Self.IsOwner {
		return st, nil, model.ErrNotOwner
	}
	return st, ch, nil
}

// StartGame asks the server to start the race. Owner only, two players minimum.
func (s *Session) StartGame() error {
	st, ch, err := s.ownerAction()
	if err != nil {
		return err
	}
	if st.Phase != PhaseRoom {
		return fmt.Errorf("cannot start from %s", st.Phase)
	}
	if len(st.Room.Players) < 2 {
		return model.ErrNotEnoughPlayers
	}
	return ch.Publish(DestStart, wire.StartGame{PlayerName: st.Self.Name})
}

// SetTimerDuration changes the race duration. Owner only.
func (s *Session) SetTimerDuration(seconds int) error {
	if err := model.ValidateTarget(model.ModeTimer, seconds); err != nil {
		return err
	}
	st, ch, err := s.ownerAction()
	if err != nil {
		return err
	}
	if st.Phase != PhaseRoom {
		return fmt.Errorf("cannot change duration during %s", st.Phase)
	}
	return ch.Publish(DestTimer, wire.SetTimerDuration{OwnerName: st.Self.Name, Duration: seconds})
}

// KickPlayer removes playerID from the room. Owner only; the owner cannot kick
// themselves.
func (s *Session) KickPlayer(playerID string) error {
	st, ch, err := s.ownerAction()
	if err != nil {
		return err
	}
	if playerID == st.Self.ID {
		return &model.ValidationError{Field: "player", Reason: "cannot kick yourself"}
	}
	if !st.Room.HasPlayer(playerID) {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	return ch.Publish(DestKick, wire.KickPlayer{OwnerName: st.Self.Name, PlayerIDToKick: playerID})
}

// Leave returns to the lobby, disconnecting the channel and discarding the race.
// In-flight create or join requests are invalidated.
func (s *Session) Leave() {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	s.leave(gen)
}

func (s *Session) leave(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.gen++
	ch, typing := s.channel, s.typing
	s.channel, s.typing = nil, nil
	wasLobby := s.state.Phase == PhaseLobby
	s.state = Reduce(s.state, Left{})
	st := s.state
	closed := s.closed
	s.mu.Unlock()

	s.teardown(ch, typing)
	if !wasLobby && !closed {
		s.notify(st)
	}
}

// Close leaves the room and rejects further operations. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	gen := s.gen
	s.mu.Unlock()
	s.leave(gen)
}

func (s *Session) teardown(ch *Channel, typing *session.Session) {
	if typing != nil {
		typing.Close()
	}
	if ch != nil {
		if err := ch.Disconnect(); err != nil {
			log.Warn().Err(err).Str("room_id", ch.RoomID()).Msg("room disconnect failed")
		}
	}
}

func (s *Session) notify(st State) {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(st)
	}
}

func (s *Session) notifyCurrent() {
	s.notify(s.State())
}

func ownerNamed(r model.Room, name string) (model.Player, bool) {
	if p, ok := r.Player(r.OwnerID); ok {
		return p, true
	}
	for _, p := range r.Players {
		if p.IsOwner {
			return p, true
		}
	}
	return lastNamed(r, name)
}

// lastNamed picks the most recent roster entry with name; duplicate names
// resolve to the newest joiner.
func lastNamed(r model.Room, name string) (model.Player, bool) {
	for i := len(r.Players) - 1; i >= 0; i-- {
		if strings.EqualFold(r.Players[i].Name, name) {
			return r.Players[i], true
		}
	}
	return model.Player{}, false
}
