// Package model defines shared data structures.
package model

import "time"

// Mode selects how a typing session ends.
type Mode string

const (
	// ModeTimer ends the session when the countdown reaches zero.
	ModeTimer Mode = "timer"
	// ModeWords ends the session once the target word count is typed.
	ModeWords Mode = "words"
)

// Target bounds for custom values.
const (
	MinDuration  = 1
	MaxDuration  = 300
	MinWordCount = 1
	MaxWordCount = 500
)

// ContentFlags controls what the word supplier mixes into the text.
type ContentFlags struct {
	Punctuation bool
	Numbers     bool
}

// Config defines practice settings.
type Config struct {
	Mode     Mode `validate:"oneof=timer words"`
	Duration int  `validate:"min=1,max=300"`
	Words    int  `validate:"min=1,max=500"`
	Flags    ContentFlags
	Supplier string `validate:"oneof=local http nats"`
}

// Target returns the active target for the configured mode.
func (c Config) Target() int {
	if c.Mode == ModeWords {
		return c.Words
	}
	return c.Duration
}

// ServerConfig defines remote endpoints.
type ServerConfig struct {
	APIURL         string `validate:"required,url"`
	WSURL          string `validate:"required,url"`
	NATSURL        string `validate:"required,url"`
	Transport      string `validate:"oneof=websocket nats"`
	RequestTimeout time.Duration
}

// Player is a room member. IsOwner is authoritative only on the server.
type Player struct {
	ID      string
	Name    string
	IsOwner bool
}

// Room mirrors the server's view of a multiplayer room.
type Room struct {
	ID          string
	Players     []Player
	OwnerID     string
	GameStarted bool
	Quote       string
	Duration    int
}

// HasPlayer reports whether id is in the roster.
func (r Room) HasPlayer(id string) bool {
	for _, p := range r.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Player returns the roster entry for id.
func (r Room) Player(id string) (Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// ChatKind classifies chat log entries.
type ChatKind string

const (
	ChatKindChat         ChatKind = "CHAT"
	ChatKindPlayerJoined ChatKind = "PLAYER_JOINED"
	ChatKindPlayerLeft   ChatKind = "PLAYER_LEFT"
	ChatKindGameStarted  ChatKind = "GAME_STARTED"
)

// ChatMessage is one entry of a room chat log.
type ChatMessage struct {
	PlayerID   string
	PlayerName string
	Text       string
	Timestamp  time.Time
	Kind       ChatKind
}

// SessionResult captures a finished typing session.
type SessionResult struct {
	SessionID string
	Quote     string
	Mode      Mode
	Target    int
	Flags     ContentFlags
	Correct   int
	Incorrect int
	StartedAt time.Time
	EndedAt   time.Time
}

// Elapsed returns the session's wall-clock duration.
func (r SessionResult) Elapsed() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Mode  Mode `validate:"omitempty,oneof=timer words"`
	Since *time.Time
	Last  int `validate:"min=0"`
}

// SessionAggregate summarizes a stored session for reporting.
type SessionAggregate struct {
	ID         int64
	SessionID  string
	EndedAt    time.Time
	Mode       Mode
	Target     int
	Correct    int
	Incorrect  int
	DurationMs int64
}
