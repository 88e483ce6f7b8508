package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/room"
	"github.com/verte-zerg/typerace/internal/session"
)

type fakeDriver struct {
	state    room.State
	onChange func()

	created  []string
	joined   [][2]string
	chats    []string
	kicked   []string
	keys     []session.Key
	duration int
	started  int
	left     int
	closed   bool
	chatErr  error
}

func (d *fakeDriver) State() room.State        { return d.state }
func (d *fakeDriver) Typing() *session.Session { return nil }
func (d *fakeDriver) HandleKey(k session.Key) bool {
	d.keys = append(d.keys, k)
	return true
}

func (d *fakeDriver) CreateRoom(_ context.Context, name string) error {
	d.created = append(d.created, name)
	return nil
}

func (d *fakeDriver) JoinRoom(_ context.Context, roomID, name string) error {
	d.joined = append(d.joined, [2]string{roomID, name})
	return nil
}

func (d *fakeDriver) StartGame() error {
	if !d.state.CanStart() {
		return model.ErrNotEnoughPlayers
	}
	d.started++
	return nil
}

func (d *fakeDriver) SetTimerDuration(seconds int) error {
	if err := model.ValidateTarget(model.ModeTimer, seconds); err != nil {
		return err
	}
	d.duration = seconds
	return nil
}

func (d *fakeDriver) KickPlayer(playerID string) error {
	d.kicked = append(d.kicked, playerID)
	return nil
}

func (d *fakeDriver) SendChat(text string) error {
	if d.chatErr != nil {
		return d.chatErr
	}
	d.chats = append(d.chats, text)
	return nil
}

func (d *fakeDriver) Leave() {
	d.left++
	d.state = room.State{}
}

func (d *fakeDriver) Close() { d.closed = true }

func newRoomModel(t *testing.T, d *fakeDriver, name, roomID string) *RoomModel {
	t.Helper()
	return NewRoomModel(func(onChange func()) RoomDriver {
		d.onChange = onChange
		return d
	}, name, roomID)
}

func roomState(selfOwner bool, players ...model.Player) room.State {
	self := players[0]
	if !selfOwner && len(players) > 1 {
		self = players[1]
	}
	return room.State{
		Phase: room.PhaseRoom,
		Room:  model.Room{ID: "ABC123", Players: players, OwnerID: players[0].ID},
		Self:  self,
	}
}

var (
	alice = model.Player{ID: "p1", Name: "alice", IsOwner: true}
	bob   = model.Player{ID: "p2", Name: "bob"}
)

func TestLobbyEnterCreatesOrJoins(t *testing.T) {
	d := &fakeDriver{}
	m := newRoomModel(t, d, "alice", "")

	_, cmd := m.Update(ctrl(tea.KeyEnter))
	if cmd == nil || !m.busy {
		t.Fatalf("expected async create")
	}
	m.Update(cmd())
	if len(d.created) != 1 || d.created[0] != "alice" || m.busy {
		t.Fatalf("expected create for alice, got %+v", d.created)
	}

	m.Update(runes("xy12"))
	_, cmd = m.Update(ctrl(tea.KeyEnter))
	m.Update(cmd())
	if len(d.joined) != 1 || d.joined[0] != [2]string{"xy12", "alice"} {
		t.Fatalf("expected join, got %+v", d.joined)
	}
}

func TestLobbyShowsNotice(t *testing.T) {
	d := &fakeDriver{state: room.State{Notice: room.NoticeKicked}}
	m := newRoomModel(t, d, "", "")
	if !strings.Contains(m.View(), room.NoticeKicked) {
		t.Fatalf("expected notice in lobby:\n%s", m.View())
	}
}

func TestRoomChatSendsAndClears(t *testing.T) {
	d := &fakeDriver{state: roomState(true, alice, bob)}
	m := newRoomModel(t, d, "alice", "")
	m.syncState()

	m.Update(runes("hello"))
	m.Update(ctrl(tea.KeyEnter))
	if len(d.chats) != 1 || d.chats[0] != "hello" {
		t.Fatalf("expected chat sent, got %+v", d.chats)
	}
	if m.chatInput.Value() != "" {
		t.Fatalf("expected input cleared")
	}

	d.chatErr = &model.ValidationError{Field: "message", Reason: "empty"}
	m.Update(ctrl(tea.KeyEnter))
	if m.err == nil {
		t.Fatalf("expected chat error surfaced")
	}
}

func TestOwnerAndGuestViews(t *testing.T) {
	d := &fakeDriver{state: roomState(true, alice)}
	m := newRoomModel(t, d, "alice", "")
	view := m.View()
	if !strings.Contains(view, model.ErrNotEnoughPlayers.Error()) || !strings.Contains(view, "ctrl+s: start") {
		t.Fatalf("owner alone should see start hint and controls:\n%s", view)
	}
	m.Update(ctrl(tea.KeyCtrlS))
	if !errors.Is(m.err, model.ErrNotEnoughPlayers) {
		t.Fatalf("expected start refused, got %v", m.err)
	}

	d.state = roomState(false, alice, bob)
	view = m.View()
	if !strings.Contains(view, "Waiting for the owner to start") || strings.Contains(view, "ctrl+s: start") {
		t.Fatalf("guest view wrong:\n%s", view)
	}
	m.Update(ctrl(tea.KeyCtrlD))
	if m.durationModal || !errors.Is(m.err, model.ErrNotOwner) {
		t.Fatalf("guest must not open duration modal")
	}
}

func TestDurationModal(t *testing.T) {
	d := &fakeDriver{state: roomState(true, alice, bob)}
	m := newRoomModel(t, d, "alice", "")

	m.Update(ctrl(tea.KeyCtrlD))
	if !m.durationModal {
		t.Fatalf("expected modal")
	}
	m.Update(runes("0"))
	m.Update(ctrl(tea.KeyEnter))
	if !m.durationModal || m.err == nil {
		t.Fatalf("expected invalid duration kept in modal")
	}
	m.Update(ctrl(tea.KeyBackspace))
	m.Update(runes("45"))
	m.Update(ctrl(tea.KeyEnter))
	if m.durationModal || d.duration != 45 {
		t.Fatalf("expected duration 45, got %d", d.duration)
	}
}

func TestKickSelectedPlayer(t *testing.T) {
	d := &fakeDriver{state: roomState(true, alice, bob)}
	m := newRoomModel(t, d, "alice", "")
	m.Update(ctrl(tea.KeyDown))
	m.Update(ctrl(tea.KeyCtrlK))
	if len(d.kicked) != 1 || d.kicked[0] != "p2" {
		t.Fatalf("expected bob kicked, got %+v", d.kicked)
	}
}

func TestGameForwardsKeys(t *testing.T) {
	st := roomState(true, alice, bob)
	st.Phase = room.PhaseGame
	d := &fakeDriver{state: st}
	m := newRoomModel(t, d, "alice", "")

	m.Update(runes("ab"))
	m.Update(ctrl(tea.KeyBackspace))
	if len(d.keys) != 3 || d.keys[2].Kind != session.KeyBackspace {
		t.Fatalf("unexpected forwarded keys %+v", d.keys)
	}
	if !strings.Contains(m.View(), "Waiting for the race") {
		t.Fatalf("expected placeholder without a typing session")
	}

	m.Update(ctrl(tea.KeyEsc))
	if d.left != 1 || d.state.Phase != room.PhaseLobby {
		t.Fatalf("expected leave on escape")
	}
}

func TestSignalSyncsChat(t *testing.T) {
	d := &fakeDriver{state: roomState(true, alice, bob)}
	m := newRoomModel(t, d, "alice", "")
	d.state.Chat = []model.ChatMessage{
		{PlayerName: "bob", Kind: model.ChatKindPlayerJoined},
		{PlayerName: "bob", Text: "hi", Kind: model.ChatKindChat},
	}
	d.onChange()
	m.Update(signalMsg{})
	if m.chatSeen != 2 || !strings.Contains(m.chatView.View(), "bob: hi") {
		t.Fatalf("expected chat synced:\n%s", m.chatView.View())
	}
}

func TestRenderRoster(t *testing.T) {
	out := renderRoster([]model.Player{alice, bob}, "p2", 0)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	if !strings.Contains(lines[0], "> alice (owner)") {
		t.Fatalf("unexpected owner line %q", lines[0])
	}
	if lines[1] != "  bob (you)" {
		t.Fatalf("unexpected self line %q", lines[1])
	}
	if renderRoster(nil, "", -1) == "" {
		t.Fatalf("expected placeholder for empty roster")
	}
}

func TestRaceDurationDefault(t *testing.T) {
	if raceDuration(model.Room{}) != room.DefaultRaceDuration {
		t.Fatalf("expected default duration")
	}
	if raceDuration(model.Room{Duration: 45}) != 45 {
		t.Fatalf("expected room duration")
	}
}
