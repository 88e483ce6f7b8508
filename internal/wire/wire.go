// Package wire defines the JSON payloads exchanged with the race server.
package wire

import (
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/verte-zerg/typerace/internal/model"
)

// Player is the server's player encoding. Some server builds emit "owner"
// instead of "isOwner"; either is accepted.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsOwner *bool  `json:"isOwner,omitempty"`
	Owner   *bool  `json:"owner,omitempty"`
}

// Model converts the wire player to the domain type.
func (p Player) Model() model.Player {
	owner := false
	switch {
	case p.IsOwner != nil:
		owner = *p.IsOwner
	case p.Owner != nil:
		owner = *p.Owner
	}
	return model.Player{ID: p.ID, Name: p.Name, IsOwner: owner}
}

// Players converts a roster.
func Players(in []Player) []model.Player {
	out := make([]model.Player, 0, len(in))
	for _, p := range in {
		out = append(out, p.Model())
	}
	return out
}

// Room is the server's room snapshot.
type Room struct {
	RoomID        string   `json:"roomId"`
	Players       []Player `json:"players"`
	OwnerID       string   `json:"ownerId"`
	GameStarted   bool     `json:"gameStarted"`
	Quote         string   `json:"quote,omitempty"`
	TimerDuration int      `json:"timerDuration,omitempty"`
}

// Model converts the wire room to the domain type. The owner flag falls back
// to OwnerID when the roster entries carry neither owner field.
func (r Room) Model() model.Room {
	players := make([]model.Player, 0, len(r.Players))
	for _, wp := range r.Players {
		p := wp.Model()
		if wp.IsOwner == nil && wp.Owner == nil && r.OwnerID != "" {
			p.IsOwner = p.ID == r.OwnerID
		}
		players = append(players, p)
	}
	return model.Room{
		ID:          r.RoomID,
		Players:     players,
		OwnerID:     r.OwnerID,
		GameStarted: r.GameStarted,
		Quote:       r.Quote,
		Duration:    r.TimerDuration,
	}
}

// ChatMessage is the inbound and outbound chat payload.
type ChatMessage struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp,omitempty"`
	Type       string `json:"type"`
}

// Model converts the wire chat message to the domain type.
func (c ChatMessage) Model() model.ChatMessage {
	kind := model.ChatKind(strings.ToUpper(c.Type))
	switch kind {
	case model.ChatKindChat, model.ChatKindPlayerJoined, model.ChatKindPlayerLeft, model.ChatKindGameStarted:
	default:
		kind = model.ChatKindChat
	}
	return model.ChatMessage{
		PlayerID:   c.PlayerID,
		PlayerName: c.PlayerName,
		Text:       c.Message,
		Timestamp:  parseTimestamp(c.Timestamp),
		Kind:       kind,
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

// Countdown is the pre-race tick.
type Countdown struct {
	Count int `json:"count"`
}

// GameTimer is the in-race authoritative clock.
type GameTimer struct {
	TimeRemaining int `json:"timeRemaining"`
}

// TimerConfig announces a new game duration.
type TimerConfig struct {
	Duration int `json:"duration"`
}

// StartGame is published by the owner.
type StartGame struct {
	PlayerName string `json:"playerName"`
}

// TrackSession registers the connection with the server's presence tracking.
type TrackSession struct {
	PlayerID string `json:"playerId"`
}

// KickPlayer is published by the owner.
type KickPlayer struct {
	OwnerName      string `json:"ownerName"`
	PlayerIDToKick string `json:"playerIdToKick"`
}

// SetTimerDuration is published by the owner.
type SetTimerDuration struct {
	OwnerName string `json:"ownerName"`
	Duration  int    `json:"duration"`
}

// CreateRoomRequest is the body of POST /room/create.
type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
}

// JoinRoomRequest is the body of POST /room/join.
type JoinRoomRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

// SessionRequest is the body of POST /session.
type SessionRequest struct {
	Punctuation bool `json:"punctuation"`
	Numbers     bool `json:"numbers"`
	WordCount   int  `json:"wordCount,omitempty"`
}

// SessionResponse carries a fresh session id and its initial text.
type SessionResponse struct {
	SessionID string `json:"sessionId"`
	Quote     string `json:"quote"`
}

// NextWordsRequest asks the supplier for more words.
type NextWordsRequest struct {
	WordCount   int  `json:"wordCount"`
	Punctuation bool `json:"punctuation"`
	Numbers     bool `json:"numbers"`
}

// NextWordsResponse carries space-joined words.
type NextWordsResponse struct {
	Text string `json:"text"`
}

// Result is the body of POST /game/result.
type Result struct {
	SessionID      string `json:"sessionId"`
	Quote          string `json:"quote"`
	CorrectChars   int    `json:"correctChars"`
	IncorrectChars int    `json:"incorrectChars"`
	Timer          int    `json:"timer"`
}

// NewResult converts a finished session. Timer is the configured duration for
// timer sessions and the elapsed whole seconds otherwise.
func NewResult(r model.SessionResult) Result {
	timer := r.Target
	if r.Mode != model.ModeTimer {
		timer = int(r.Elapsed().Round(time.Second) / time.Second)
	}
	return Result{
		SessionID:      r.SessionID,
		Quote:          r.Quote,
		CorrectChars:   r.Correct,
		IncorrectChars: r.Incorrect,
		Timer:          timer,
	}
}

// Marshal encodes v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// DecodeInt accepts either a bare JSON number or an object whose single
// numeric field is named key.
func DecodeInt(data []byte, key string) (int, error) {
	trimmed := strings.TrimSpace(string(data))
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n, nil
	}
	var obj map[string]int
	if err := json.Unmarshal(data, &obj); err != nil {
		return 0, err
	}
	n, ok := obj[key]
	if !ok {
		return 0, &model.ValidationError{Field: key, Reason: "missing from payload"}
	}
	return n, nil
}

// SplitWords splits supplier text into words.
func SplitWords(text string) []string {
	return strings.Fields(text)
}
