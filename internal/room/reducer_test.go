package room

import (
	"testing"

	"github.com/verte-zerg/typerace/internal/model"
)

func joinedState() State {
	room := model.Room{
		ID:      "ABCD",
		OwnerID: "p1",
		Players: []model.Player{
			{ID: "p1", Name: "ann", IsOwner: true},
			{ID: "p2", Name: "bob"},
		},
		Quote:    "race text",
		Duration: 30,
	}
	return Reduce(State{}, Joined{Room: room, Self: room.Players[1]})
}

func TestReduceJoined(t *testing.T) {
	st := joinedState()
	if st.Phase != PhaseRoom || st.Self.ID != "p2" || st.TimeLeft != 30 {
		t.Fatalf("unexpected joined state: %+v", st)
	}
	if st.CanStart() {
		t.Fatalf("non-owner must not be able to start")
	}
}

func TestReduceKickClearsFromAnyPhase(t *testing.T) {
	room := joinedState()
	countdown := Reduce(room, CountdownTick{Count: 3})
	game := Reduce(countdown, CountdownTick{Count: 0})
	game = Reduce(game, ChatReceived{Message: model.ChatMessage{Text: "hi"}})

	for _, st := range []State{room, countdown, game} {
		if st.Phase == PhaseLobby {
			t.Fatalf("setup reached lobby early")
		}
		next := Reduce(st, Kicked{PlayerID: "p2"})
		if next.Phase != PhaseLobby || next.Notice != NoticeKicked {
			t.Fatalf("expected lobby after kick from %s, got %+v", st.Phase, next)
		}
		if len(next.Room.Players) != 0 || len(next.Chat) != 0 || next.Self.ID != "" {
			t.Fatalf("expected cleared state, got %+v", next)
		}
		if lost := Reduce(st, Disconnected{}); lost.Phase != PhaseLobby || lost.Notice != NoticeDisconnected || lost.Room.ID != "" {
			t.Fatalf("expected lobby after connection loss from %s, got %+v", st.Phase, lost)
		}
	}

	other := Reduce(room, Kicked{PlayerID: "p1"})
	if other.Phase != PhaseRoom {
		t.Fatalf("kick for another player must be ignored")
	}
}

func TestReduceCountdownAndStart(t *testing.T) {
	st := joinedState()
	if next := Reduce(st, CountdownTick{Count: 0}); next.Phase != PhaseRoom {
		t.Fatalf("zero tick in room must not start the game")
	}
	st = Reduce(st, CountdownTick{Count: 3})
	if st.Phase != PhaseCountdown || st.Countdown != 3 {
		t.Fatalf("expected countdown 3, got %+v", st)
	}
	st = Reduce(st, CountdownTick{Count: 2})
	if st.Countdown != 2 {
		t.Fatalf("expected countdown 2, got %d", st.Countdown)
	}
	st = Reduce(st, CountdownTick{Count: 0})
	if st.Phase != PhaseGame || st.TimeLeft != 30 || !st.Room.GameStarted {
		t.Fatalf("expected game, got %+v", st)
	}

	direct := Reduce(joinedState(), GameStarted{Room: &model.Room{Quote: "new quote"}})
	if direct.Phase != PhaseGame || direct.Room.Quote != "new quote" || direct.Room.ID != "ABCD" {
		t.Fatalf("expected direct game start, got %+v", direct)
	}
	if len(direct.Room.Players) != 2 {
		t.Fatalf("snapshot without players must keep the roster")
	}
}

func TestReduceTimerAndEnd(t *testing.T) {
	st := Reduce(joinedState(), GameStarted{})
	st = Reduce(st, GameTimerTick{Remaining: 12})
	if st.TimeLeft != 12 {
		t.Fatalf("expected 12s left, got %d", st.TimeLeft)
	}
	st = Reduce(st, GameTimerTick{Remaining: -3})
	if st.TimeLeft != 0 {
		t.Fatalf("expected clamp to zero, got %d", st.TimeLeft)
	}
	final := &model.Room{Players: []model.Player{{ID: "p2", Name: "bob"}, {ID: "p1", Name: "ann", IsOwner: true}}}
	st = Reduce(st, GameEnded{Room: final})
	if st.Phase != PhaseResults || st.Results == nil || st.Results.Players[0].ID != "p2" {
		t.Fatalf("expected results snapshot, got %+v", st)
	}
	if again := Reduce(st, CountdownTick{Count: 3}); again.Phase != PhaseResults {
		t.Fatalf("results must be terminal")
	}
	if lobby := Reduce(st, Left{}); lobby.Phase != PhaseLobby || lobby.Results != nil {
		t.Fatalf("expected clean lobby, got %+v", lobby)
	}
}

func TestReduceRoster(t *testing.T) {
	st := joinedState()
	promoted := Reduce(st, RosterUpdated{Players: []model.Player{{ID: "p2", Name: "bob", IsOwner: true}}})
	if !promoted.Self.IsOwner || promoted.Room.OwnerID != "p2" || len(promoted.Room.Players) != 1 {
		t.Fatalf("expected ownership transfer, got %+v", promoted)
	}
	gone := Reduce(st, RosterUpdated{Players: []model.Player{{ID: "p1", Name: "ann", IsOwner: true}}})
	if gone.Phase != PhaseLobby || gone.Notice != NoticeRemoved {
		t.Fatalf("expected removal, got %+v", gone)
	}
}

func TestReduceIsPure(t *testing.T) {
	st := joinedState()
	st.Chat = make([]model.ChatMessage, 1, 4)
	next := Reduce(st, ChatReceived{Message: model.ChatMessage{Text: "a"}})
	other := Reduce(st, ChatReceived{Message: model.ChatMessage{Text: "b"}})
	if next.Chat[1].Text != "a" || other.Chat[1].Text != "b" {
		t.Fatalf("chat appends must not share backing storage")
	}
	if len(st.Chat) != 1 {
		t.Fatalf("input state mutated")
	}

	lobby := Reduce(State{}, ChatReceived{Message: model.ChatMessage{Text: "x"}})
	if len(lobby.Chat) != 0 {
		t.Fatalf("lobby must ignore room events")
	}
}

func TestReduceTimerConfig(t *testing.T) {
	st := Reduce(joinedState(), TimerConfigChanged{Duration: 60})
	if st.Room.Duration != 60 || st.TimeLeft != 60 {
		t.Fatalf("expected new duration, got %+v", st)
	}
}
