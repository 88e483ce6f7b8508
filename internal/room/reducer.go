package room

import (
	"slices"

	"github.com/verte-zerg/typerace/internal/model"
)

// Phase is the client-side room lifecycle stage.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseRoom
	PhaseCountdown
	PhaseGame
	PhaseResults
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseRoom:
		return "room"
	case PhaseCountdown:
		return "countdown"
	case PhaseGame:
		return "game"
	case PhaseResults:
		return "results"
	default:
		return "unknown"
	}
}

// Notices shown after an involuntary return to the lobby.
const (
	NoticeKicked       = "You were kicked from the room."
	NoticeRemoved      = "You are no longer in the room."
	NoticeDisconnected = "Connection to the room was lost."
)

// State is the client mirror of one room. The zero value is the lobby.
type State struct {
	Phase     Phase
	Room      model.Room
	Self      model.Player
	Chat      []model.ChatMessage
	Countdown int
	TimeLeft  int
	// Results is the final room snapshot captured at game end.
	Results *model.Room
	// Notice explains the last forced return to the lobby.
	Notice string
}

// IsOwner reports whether the local player owns the room.
func (s State) IsOwner() bool {
	return s.Self.IsOwner
}

// CanStart reports whether the local player may start the race.
func (s State) CanStart() bool {
	return s.Phase == PhaseRoom && s.Self.IsOwner && len(s.Room.Players) >= 2
}

// Reduce applies ev to st and returns the next state. It never mutates st.
func Reduce(st State, ev Event) State {
	switch e := ev.(type) {
	case Joined:
		return State{
			Phase:    PhaseRoom,
			Room:     e.Room,
			Self:     e.Self,
			TimeLeft: e.Room.Duration,
		}
	case Left:
		return State{}
	}

	if st.Phase == PhaseLobby {
		return st
	}

	switch e := ev.(type) {
	case ChatReceived:
		st.Chat = append(slices.Clip(st.Chat), e.Message)
	case RosterUpdated:
		return applyRoster(st, e.Players)
	case Kicked:
		if e.PlayerID == st.Self.ID {
			return State{Notice: NoticeKicked}
		}
	case Disconnected:
		return State{Notice: NoticeDisconnected}
	case TimerConfigChanged:
		st.Room.Duration = e.Duration
		if st.Phase == PhaseRoom {
			st.TimeLeft = e.Duration
		}
	case GameStarting:
		if st.Phase == PhaseRoom {
			st = applySnapshot(st, e.Room)
		}
	case CountdownTick:
		switch {
		case st.Phase == PhaseRoom && e.Count > 0:
			st.Phase = PhaseCountdown
			st.Countdown = e.Count
		case st.Phase == PhaseCountdown && e.Count > 0:
			st.Countdown = e.Count
		case st.Phase == PhaseCountdown:
			st = enterGame(st)
		}
	case GameStarted:
		if st.Phase == PhaseRoom || st.Phase == PhaseCountdown {
			if e.Room != nil {
				st = applySnapshot(st, *e.Room)
			}
			st = enterGame(st)
		}
	case GameTimerTick:
		if st.Phase == PhaseGame {
			st.TimeLeft = max(e.Remaining, 0)
		}
	case GameEnded:
		if st.Phase == PhaseGame || st.Phase == PhaseCountdown {
			final := st.Room
			if e.Room != nil {
				st = applySnapshot(st, *e.Room)
				final = st.Room
			}
			final.Players = slices.Clone(final.Players)
			st.Phase = PhaseResults
			st.Results = &final
			st.TimeLeft = 0
		}
	}
	return st
}

func enterGame(st State) State {
	st.Phase = PhaseGame
	st.Countdown = 0
	st.TimeLeft = st.Room.Duration
	st.Room.GameStarted = true
	return st
}

// applySnapshot replaces server-owned room fields, keeping the room id when the
// snapshot omits it.
func applySnapshot(st State, r model.Room) State {
	if r.ID == "" {
		r.ID = st.Room.ID
	}
	if r.Duration == 0 {
		r.Duration = st.Room.Duration
	}
	if r.Quote == "" {
		r.Quote = st.Room.Quote
	}
	if len(r.Players) == 0 {
		r.Players = st.Room.Players
		r.OwnerID = st.Room.OwnerID
	}
	st.Room = r
	if self, ok := r.Player(st.Self.ID); ok {
		st.Self = self
	}
	return st
}

// A roster without the local player means the server dropped us.
func applyRoster(st State, players []model.Player) State {
	self, ok := findByID(players, st.Self.ID)
	if !ok {
		return State{Notice: NoticeRemoved}
	}
	st.Room.Players = players
	for _, p := range players {
		if p.IsOwner {
			st.Room.OwnerID = p.ID
			break
		}
	}
	st.Self = self
	return st
}

func findByID(players []model.Player, id string) (model.Player, bool) {
	for _, p := range players {
		if p.ID == id {
			return p, true
		}
	}
	return model.Player{}, false
}
