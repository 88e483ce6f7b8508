package room

import (
	"bytes"
	"fmt"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/wire"
)

// Topic names a per-room subscription.
type Topic string

const (
	TopicChat        Topic = "chat"
	TopicPlayers     Topic = "players"
	TopicGameStart   Topic = "gameStart"
	TopicCountdown   Topic = "countdown"
	TopicGameStarted Topic = "gameStarted"
	TopicGameTimer   Topic = "gameTimer"
	TopicGameEnded   Topic = "gameEnded"
	TopicTimerConfig Topic = "timerConfig"
)

// Destination names a per-room publish target.
type Destination string

const (
	DestChat  Destination = "chat"
	DestStart Destination = "start"
	DestTrack Destination = "track"
	DestKick  Destination = "kick"
	DestTimer Destination = "timer"
)

// Event is a typed room message consumed by Reduce.
type Event interface {
	isEvent()
}

// ChatReceived carries one chat or system message.
type ChatReceived struct{ Message model.ChatMessage }

// RosterUpdated replaces the player list.
type RosterUpdated struct{ Players []model.Player }

// GameStarting is the pre-countdown room snapshot.
type GameStarting struct{ Room model.Room }

// CountdownTick carries the remaining pre-race seconds.
type CountdownTick struct{ Count int }

// GameStarted opens the race. Room is nil when the server sent no snapshot.
type GameStarted struct{ Room *model.Room }

// GameTimerTick carries the authoritative remaining race seconds.
type GameTimerTick struct{ Remaining int }

// GameEnded closes the race with the final room snapshot, if any.
type GameEnded struct{ Room *model.Room }

// Kicked notifies that PlayerID was removed by the owner.
type Kicked struct {
	PlayerID string
	Message  string
}

// TimerConfigChanged announces a new race duration.
type TimerConfigChanged struct{ Duration int }

// Joined is emitted locally once a create or join succeeds.
type Joined struct {
	Room model.Room
	Self model.Player
}

// Left is emitted locally when the player returns to the lobby.
type Left struct{}

// Disconnected is emitted locally when the transport drops underneath the room.
type Disconnected struct{ Err error }

func (ChatReceived) isEvent()       {}
func (RosterUpdated) isEvent()      {}
func (GameStarting) isEvent()       {}
func (CountdownTick) isEvent()      {}
func (GameStarted) isEvent()        {}
func (GameTimerTick) isEvent()      {}
func (GameEnded) isEvent()          {}
func (Kicked) isEvent()             {}
func (TimerConfigChanged) isEvent() {}
func (Joined) isEvent()             {}
func (Left) isEvent()               {}
func (Disconnected) isEvent()       {}

// DecodeEvent converts a raw topic payload into an Event.
func DecodeEvent(topic Topic, data []byte) (Event, error) {
	switch topic {
	case TopicChat:
		var msg wire.ChatMessage
		if err := wire.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		return ChatReceived{Message: msg.Model()}, nil
	case TopicPlayers:
		players, err := decodeRoster(data)
		if err != nil {
			return nil, err
		}
		return RosterUpdated{Players: players}, nil
	case TopicGameStart:
		var r wire.Room
		if err := wire.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return GameStarting{Room: r.Model()}, nil
	case TopicCountdown:
		n, err := wire.DecodeInt(data, "count")
		if err != nil {
			return nil, err
		}
		return CountdownTick{Count: n}, nil
	case TopicGameStarted:
		r, err := decodeOptionalRoom(data)
		if err != nil {
			return nil, err
		}
		return GameStarted{Room: r}, nil
	case TopicGameTimer:
		n, err := wire.DecodeInt(data, "timeRemaining")
		if err != nil {
			return nil, err
		}
		return GameTimerTick{Remaining: n}, nil
	case TopicGameEnded:
		r, err := decodeOptionalRoom(data)
		if err != nil {
			return nil, err
		}
		return GameEnded{Room: r}, nil
	case TopicTimerConfig:
		n, err := wire.DecodeInt(data, "duration")
		if err != nil {
			return nil, err
		}
		return TimerConfigChanged{Duration: n}, nil
	default:
		return nil, fmt.Errorf("unknown topic %q", topic)
	}
}

// The roster topic carries a bare player array; some servers send the room.
func decodeRoster(data []byte) ([]model.Player, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var r wire.Room
		if err := wire.Unmarshal(trimmed, &r); err != nil {
			return nil, err
		}
		return r.Model().Players, nil
	}
	var players []wire.Player
	if err := wire.Unmarshal(trimmed, &players); err != nil {
		return nil, err
	}
	return wire.Players(players), nil
}

func decodeOptionalRoom(data []byte) (*model.Room, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || trimmed[0] != '{' {
		return nil, nil
	}
	var r wire.Room
	if err := wire.Unmarshal(trimmed, &r); err != nil {
		return nil, err
	}
	room := r.Model()
	return &room, nil
}
