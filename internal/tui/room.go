package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/room"
	"github.com/verte-zerg/typerace/internal/session"
	statsPkg "github.com/verte-zerg/typerace/internal/stats"
)

const (
	roomOpTimeout = 15 * time.Second
	chatHeight    = 8
)

// RoomDriver is the room lifecycle the view renders and drives.
type RoomDriver interface {
	State() room.State
	Typing() *session.Session
	CreateRoom(ctx context.Context, name string) error
	JoinRoom(ctx context.Context, roomID, name string) error
	StartGame() error
	SetTimerDuration(seconds int) error
	KickPlayer(playerID string) error
	SendChat(text string) error
	HandleKey(k session.Key) bool
	Leave()
	Close()
}

type roomOpMsg struct {
	err error
}

// RoomModel is the multiplayer view: lobby, room, countdown, race, results.
type RoomModel struct {
	driver  RoomDriver
	signals *notifier

	nameInput  textinput.Model
	roomInput  textinput.Model
	lobbyFocus int
	busy       bool

	chatInput textinput.Model
	chatView  viewport.Model
	chatSeen  int

	selected      int
	durationModal bool
	durationInput textinput.Model

	err    error
	width  int
	height int
}

// NewRoomModel builds the view. newDriver receives the callback the driver
// must invoke on every state change.
func NewRoomModel(newDriver func(onChange func()) RoomDriver, name, roomID string) *RoomModel {
	m := &RoomModel{
		signals:   newNotifier(),
		nameInput: newInput("Name: ", 32),
		roomInput: newInput("Room: ", 64),
		chatInput: newInput("> ", 200),
		chatView:  viewport.New(60, chatHeight),
	}
	m.driver = newDriver(m.signals.notify)
	m.nameInput.SetValue(name)
	m.roomInput.SetValue(roomID)
	m.durationInput = newInput(fmt.Sprintf("Seconds (%d-%d): ", model.MinDuration, model.MaxDuration), 3)
	m.focusLobby(0)
	if name != "" {
		m.focusLobby(1)
	}
	return m
}

func newInput(prompt string, limit int) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = limit
	return input
}

// Init implements tea.Model.
func (m *RoomModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.signals.wait())
}

// Update implements tea.Model.
func (m *RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chatView.Width = max(20, contentWidth(m.width))
		return m, nil
	case signalMsg:
		m.syncState()
		return m, m.signals.wait()
	case roomOpMsg:
		m.busy = false
		m.err = msg.err
		m.syncState()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.driver.Close()
			return m, tea.Quit
		}
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *RoomModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	st := m.driver.State()
	if m.durationModal {
		return m.updateDurationModal(msg)
	}
	switch st.Phase {
	case room.PhaseLobby:
		return m.updateLobby(msg)
	case room.PhaseRoom:
		return m.updateRoom(msg, st)
	case room.PhaseCountdown:
		if msg.Type == tea.KeyEsc {
			m.leave()
		}
	case room.PhaseGame:
		if msg.Type == tea.KeyEsc {
			m.leave()
			return nil
		}
		for _, k := range typingKeys(msg) {
			m.driver.HandleKey(k)
		}
	case room.PhaseResults:
		if msg.Type == tea.KeyEsc || msg.Type == tea.KeyEnter {
			m.leave()
		}
	}
	return nil
}

func (m *RoomModel) leave() {
	m.err = nil
	m.driver.Leave()
	m.syncState()
}

func (m *RoomModel) updateLobby(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.driver.Close()
		return tea.Quit
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.focusLobby(1 - m.lobbyFocus)
		return nil
	case tea.KeyEnter:
		if m.busy {
			return nil
		}
		m.busy = true
		m.err = nil
		name := m.nameInput.Value()
		roomID := strings.TrimSpace(m.roomInput.Value())
		driver := m.driver
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), roomOpTimeout)
			defer cancel()
			if roomID == "" {
				return roomOpMsg{err: driver.CreateRoom(ctx, name)}
			}
			return roomOpMsg{err: driver.JoinRoom(ctx, roomID, name)}
		}
	}
	var cmd tea.Cmd
	if m.lobbyFocus == 0 {
		m.nameInput, cmd = m.nameInput.Update(msg)
	} else {
		m.roomInput, cmd = m.roomInput.Update(msg)
	}
	return cmd
}

func (m *RoomModel) focusLobby(i int) {
	m.lobbyFocus = i
	if i == 0 {
		m.nameInput.Focus()
		m.roomInput.Blur()
		return
	}
	m.roomInput.Focus()
	m.nameInput.Blur()
}

func (m *RoomModel) updateRoom(msg tea.KeyMsg, st room.State) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.leave()
		return nil
	case tea.KeyUp:
		m.selected = max(0, m.selected-1)
		return nil
	case tea.KeyDown:
		m.selected = max(0, min(len(st.Room.Players)-1, m.selected+1))
		return nil
	case tea.KeyCtrlS:
		m.err = m.driver.StartGame()
		return nil
	case tea.KeyCtrlD:
		if st.IsOwner() {
			m.durationModal = true
			m.durationInput.SetValue("")
			m.durationInput.Focus()
		} else {
			m.err = model.ErrNotOwner
		}
		return nil
	case tea.KeyCtrlK:
		if m.selected >= 0 && m.selected < len(st.Room.Players) {
			m.err = m.driver.KickPlayer(st.Room.Players[m.selected].ID)
		}
		return nil
	case tea.KeyEnter:
		if err := m.driver.SendChat(m.chatInput.Value()); err != nil {
			m.err = err
			return nil
		}
		m.err = nil
		m.chatInput.SetValue("")
		return nil
	}
	if !m.chatInput.Focused() {
		m.chatInput.Focus()
	}
	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return cmd
}

func (m *RoomModel) updateDurationModal(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.durationModal = false
		m.durationInput.Blur()
		return nil
	case tea.KeyEnter:
		seconds, err := strconv.Atoi(strings.TrimSpace(m.durationInput.Value()))
		if err != nil {
			m.err = &model.ValidationError{Field: "duration", Reason: "enter a whole number"}
			return nil
		}
		if err := m.driver.SetTimerDuration(seconds); err != nil {
			m.err = err
			return nil
		}
		m.err = nil
		m.durationModal = false
		m.durationInput.Blur()
		return nil
	}
	var cmd tea.Cmd
	m.durationInput, cmd = m.durationInput.Update(msg)
	return cmd
}

// syncState refreshes view-side state derived from the room.
func (m *RoomModel) syncState() {
	st := m.driver.State()
	if st.Phase == room.PhaseLobby {
		m.chatSeen = 0
		m.selected = 0
		m.durationModal = false
		m.chatView.SetContent("")
		if m.lobbyFocus == 0 {
			m.nameInput.Focus()
		} else {
			m.roomInput.Focus()
		}
		return
	}
	m.selected = max(0, min(m.selected, len(st.Room.Players)-1))
	if len(st.Chat) != m.chatSeen {
		m.chatSeen = len(st.Chat)
		m.chatView.SetContent(renderChat(st.Chat))
		m.chatView.GotoBottom()
	}
	if st.Phase == room.PhaseRoom {
		m.chatInput.Focus()
	} else {
		m.chatInput.Blur()
	}
}

// View implements tea.Model.
func (m *RoomModel) View() string {
	st := m.driver.State()
	var body string
	switch st.Phase {
	case room.PhaseLobby:
		body = m.renderLobby(st)
	case room.PhaseRoom:
		body = m.renderRoom(st)
	case room.PhaseCountdown:
		body = m.renderCountdown(st)
	case room.PhaseGame:
		body = m.renderGame(st)
	case room.PhaseResults:
		body = m.renderResults(st)
	}
	if m.err != nil {
		body += "\n\n" + errorStyle.Render(describeError(m.err))
	}
	if m.durationModal {
		body = modalStyle.Width(modalWidth(m.width)).Render(strings.Join([]string{
			valueStyle.Render("Race duration"),
			m.durationInput.View(),
			headerStyle.Render("Enter to apply / Esc to cancel"),
		}, "\n"))
	}
	if m.width == 0 || m.height == 0 {
		return body
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m *RoomModel) renderLobby(st room.State) string {
	lines := []string{accentStyle.Render("typerace rooms")}
	if st.Notice != "" {
		lines = append(lines, errorStyle.Render(st.Notice))
	}
	lines = append(lines, "", m.nameInput.View(), m.roomInput.View(), "")
	if m.busy {
		lines = append(lines, headerStyle.Render("Connecting…"))
	} else {
		lines = append(lines, headerStyle.Render("enter: join (empty room creates one) · tab: switch field · esc: quit"))
	}
	return strings.Join(lines, "\n")
}

func (m *RoomModel) renderRoom(st room.State) string {
	header := fmt.Sprintf("Room %s · %ds race", st.Room.ID, raceDuration(st.Room))
	lines := []string{accentStyle.Render(header), "", renderRoster(st.Room.Players, st.Self.ID, m.selected)}
	switch {
	case st.IsOwner() && !st.CanStart():
		lines = append(lines, headerStyle.Render(model.ErrNotEnoughPlayers.Error()))
	case !st.IsOwner():
		lines = append(lines, headerStyle.Render("Waiting for the owner to start"))
	}
	lines = append(lines, "", m.chatView.View(), m.chatInput.View(), "", headerStyle.Render(roomHelp(st)))
	return strings.Join(lines, "\n")
}

func roomHelp(st room.State) string {
	parts := []string{"enter: send"}
	if st.IsOwner() {
		parts = append(parts, "ctrl+s: start", "ctrl+d: duration", "↑/↓ + ctrl+k: kick")
	}
	parts = append(parts, "esc: leave")
	return strings.Join(parts, " · ")
}

func (m *RoomModel) renderCountdown(st room.State) string {
	return strings.Join([]string{
		headerStyle.Render("Race starts in"),
		valueStyle.Render(strconv.Itoa(st.Countdown)),
	}, "\n")
}

func (m *RoomModel) renderGame(st room.State) string {
	typing := m.driver.Typing()
	if typing == nil {
		return headerStyle.Render("Waiting for the race…")
	}
	snap := typing.Snapshot()
	lines := []string{
		accentStyle.Render(fmt.Sprintf("%ds", snap.TimeLeft)) + "  " + headerStyle.Render("Room "+st.Room.ID),
		"",
		renderQuote(snap.Quote, snap.Typed, contentWidth(m.width)),
	}
	if snap.FetchErr != nil {
		lines = append(lines, "", errorStyle.Render(describeError(snap.FetchErr)))
	}
	return strings.Join(lines, "\n")
}

func (m *RoomModel) renderResults(st room.State) string {
	lines := []string{accentStyle.Render("Race over")}
	if typing := m.driver.Typing(); typing != nil {
		r := typing.Result()
		lines = append(lines,
			valueStyle.Render(fmt.Sprintf("%.1f WPM", statsPkg.ResultWPM(r))),
			fmt.Sprintf("Accuracy %s · Correct %d · Incorrect %d",
				statsPkg.FormatAccuracy(r.Correct, r.Incorrect), r.Correct, r.Incorrect),
		)
	}
	final := st.Room
	if st.Results != nil {
		final = *st.Results
	}
	lines = append(lines, "", headerStyle.Render("Final roster"), renderRoster(final.Players, st.Self.ID, -1))
	lines = append(lines, "", headerStyle.Render("enter: back to lobby"))
	return strings.Join(lines, "\n")
}

// renderRoster lists players with owner and self markers. selected < 0 hides
// the selection cursor.
func renderRoster(players []model.Player, selfID string, selected int) string {
	if len(players) == 0 {
		return headerStyle.Render("No players")
	}
	lines := make([]string, 0, len(players))
	for i, p := range players {
		prefix := "  "
		if i == selected {
			prefix = "> "
		}
		line := prefix + p.Name
		if p.IsOwner {
			line += " (owner)"
		}
		if p.ID == selfID {
			line += " (you)"
		}
		if i == selected {
			line = valueStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderChat(msgs []model.ChatMessage) string {
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		stamp := ""
		if !msg.Timestamp.IsZero() {
			stamp = msg.Timestamp.Local().Format("15:04") + " "
		}
		switch msg.Kind {
		case model.ChatKindPlayerJoined:
			lines = append(lines, headerStyle.Render(stamp+"* "+msg.PlayerName+" joined"))
		case model.ChatKindPlayerLeft:
			lines = append(lines, headerStyle.Render(stamp+"* "+msg.PlayerName+" left"))
		case model.ChatKindGameStarted:
			lines = append(lines, headerStyle.Render(stamp+"* race started"))
		default:
			lines = append(lines, stamp+msg.PlayerName+": "+msg.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func raceDuration(r model.Room) int {
	if r.Duration > 0 {
		return r.Duration
	}
	return room.DefaultRaceDuration
}
