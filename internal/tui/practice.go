package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/results"
	"github.com/verte-zerg/typerace/internal/session"
	statsPkg "github.com/verte-zerg/typerace/internal/stats"
	"github.com/verte-zerg/typerace/internal/wire"
	"github.com/verte-zerg/typerace/internal/words"
)

const (
	initialWordCount = 30
	bootstrapTimeout = 10 * time.Second
	submitTimeout    = 10 * time.Second
)

var (
	timerPresets = []int{15, 30, 60}
	wordPresets  = []int{10, 25, 50}
)

// SessionStarter bootstraps a session id and its first text from the server.
type SessionStarter interface {
	NewSession(ctx context.Context, wordCount int, flags model.ContentFlags) (wire.SessionResponse, error)
}

// History stores finished sessions and lists them for the footer.
type History interface {
	results.Recorder
	statsPkg.SessionLister
}

// PracticeDeps wires the practice view to its collaborators. Only Supplier is required.
type PracticeDeps struct {
	Supplier words.Supplier
	Sessions SessionStarter
	Results  results.Poster
	History  History
	Clock    clockwork.Clock
}

type sessionReadyMsg struct {
	gen   uint64
	id    string
	quote string
	err   error
}

type submitDoneMsg struct {
	gen uint64
	err error
}

// PracticeModel is the single-player typing view.
type PracticeModel struct {
	deps     PracticeDeps
	defaults model.Config
	cfg      model.Config
	signals  *notifier

	gen       uint64
	sess      *session.Session
	loading   bool
	loadErr   error
	finished  bool
	submitter *results.Submitter
	submitted bool
	submitErr error

	modal    bool
	input    textinput.Model
	inputErr string

	width  int
	height int

	lastWPM float64
	lastAcc float64
	hasLast bool

	allWPM       float64
	allAcc       float64
	allCorrect   int
	allIncorrect int
	allDuration  int64
}

// NewPracticeModel constructs the practice view. cfg holds the defaults Tab restores.
func NewPracticeModel(cfg model.Config, deps PracticeDeps) *PracticeModel {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	input := textinput.New()
	input.CharLimit = 3
	m := &PracticeModel{
		deps:     deps,
		defaults: cfg,
		cfg:      cfg,
		signals:  newNotifier(),
		input:    input,
	}
	m.loadFooterStats()
	return m
}

// Init implements tea.Model.
func (m *PracticeModel) Init() tea.Cmd {
	return tea.Batch(m.restart(), m.signals.wait())
}

// Update implements tea.Model.
func (m *PracticeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case signalMsg:
		return m, tea.Batch(m.signals.wait(), m.checkFinished())
	case sessionReadyMsg:
		return m, m.sessionReady(msg)
	case submitDoneMsg:
		if msg.gen == m.gen {
			m.submitted = true
			m.submitErr = msg.err
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Close()
			return m, tea.Quit
		}
		if m.modal {
			return m.updateModal(msg)
		}
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *PracticeModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyTab:
		m.cfg.Flags = m.defaults.Flags
		return m.restart()
	case tea.KeyEsc:
		m.dismissErrors()
		return nil
	case tea.KeyCtrlT:
		return m.whileIdle(func() {
			if m.cfg.Mode == model.ModeTimer {
				m.cfg.Mode = model.ModeWords
			} else {
				m.cfg.Mode = model.ModeTimer
			}
		})
	case tea.KeyCtrlP:
		return m.whileIdle(func() { m.cfg.Flags.Punctuation = !m.cfg.Flags.Punctuation })
	case tea.KeyCtrlN:
		return m.whileIdle(func() { m.cfg.Flags.Numbers = !m.cfg.Flags.Numbers })
	case tea.KeyCtrlO:
		return m.whileIdle(m.nextPreset)
	case tea.KeyCtrlU:
		if m.idle() {
			m.openModal()
		}
		return nil
	}
	if m.sess == nil {
		return nil
	}
	for _, k := range typingKeys(msg) {
		m.sess.HandleKey(k)
	}
	return m.checkFinished()
}

func (m *PracticeModel) idle() bool {
	return m.sess == nil || m.sess.State() == session.Idle
}

// whileIdle applies an option change and starts a fresh session with it.
// Options are frozen once typing has begun.
func (m *PracticeModel) whileIdle(change func()) tea.Cmd {
	if !m.idle() {
		return nil
	}
	change()
	return m.restart()
}

func (m *PracticeModel) nextPreset() {
	presets, target := timerPresets, &m.cfg.Duration
	if m.cfg.Mode == model.ModeWords {
		presets, target = wordPresets, &m.cfg.Words
	}
	next := presets[0]
	for i, p := range presets {
		if p == *target {
			next = presets[(i+1)%len(presets)]
			break
		}
	}
	*target = next
}

func (m *PracticeModel) openModal() {
	m.modal = true
	m.inputErr = ""
	m.input.SetValue("")
	m.input.Prompt = m.modalPrompt()
	m.input.Focus()
}

func (m *PracticeModel) modalPrompt() string {
	if m.cfg.Mode == model.ModeWords {
		return fmt.Sprintf("Words (%d-%d): ", model.MinWordCount, model.MaxWordCount)
	}
	return fmt.Sprintf("Seconds (%d-%d): ", model.MinDuration, model.MaxDuration)
}

func (m *PracticeModel) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.modal = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		value, err := strconv.Atoi(strings.TrimSpace(m.input.Value()))
		if err != nil {
			m.inputErr = "enter a whole number"
			return m, nil
		}
		if err := model.ValidateTarget(m.cfg.Mode, value); err != nil {
			m.inputErr = err.Error()
			return m, nil
		}
		m.modal = false
		m.input.Blur()
		if m.cfg.Mode == model.ModeWords {
			m.cfg.Words = value
		} else {
			m.cfg.Duration = value
		}
		return m, m.restart()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *PracticeModel) dismissErrors() {
	m.loadErr = nil
	m.submitErr = nil
	if m.sess != nil {
		m.sess.ClearFetchErr()
	}
}

// restart discards the current session and bootstraps a new one.
func (m *PracticeModel) restart() tea.Cmd {
	if m.sess != nil {
		m.sess.Close()
		m.sess = nil
	}
	m.gen++
	m.loading = true
	m.loadErr = nil
	m.finished = false
	m.submitted = false
	m.submitErr = nil

	gen, cfg, deps := m.gen, m.cfg, m.deps
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
		defer cancel()
		id, quote, err := bootstrap(ctx, deps, cfg)
		return sessionReadyMsg{gen: gen, id: id, quote: quote, err: err}
	}
}

func bootstrap(ctx context.Context, deps PracticeDeps, cfg model.Config) (string, string, error) {
	count := initialWordCount
	if cfg.Mode == model.ModeWords {
		count = min(count, cfg.Words)
	}
	if deps.Sessions != nil {
		resp, err := deps.Sessions.NewSession(ctx, count, cfg.Flags)
		if err != nil {
			return "", "", err
		}
		return resp.SessionID, resp.Quote, nil
	}
	text, err := words.Text(ctx, deps.Supplier, count, cfg.Flags)
	if err != nil {
		return "", "", &model.FetchError{Op: "create session", Err: err}
	}
	return uuid.NewString(), text, nil
}

func (m *PracticeModel) sessionReady(msg sessionReadyMsg) tea.Cmd {
	if msg.gen != m.gen {
		return nil
	}
	m.loading = false
	if msg.err != nil {
		log.Error().Err(msg.err).Msg("failed to start session")
		m.loadErr = msg.err
		return nil
	}
	opts := []words.BufferOption{words.WithClock(m.deps.Clock)}
	if m.cfg.Mode == model.ModeWords {
		opts = append(opts, words.WithLimit(max(0, m.cfg.Words-len(strings.Fields(msg.quote)))))
	}
	buf := words.NewBuffer(m.deps.Supplier, m.cfg.Flags, opts...)
	m.sess = session.New(session.Options{
		SessionID:  msg.id,
		Quote:      msg.quote,
		Mode:       m.cfg.Mode,
		Target:     m.cfg.Target(),
		Flags:      m.cfg.Flags,
		Words:      buf,
		Clock:      m.deps.Clock,
		OnChange:   m.signals.notify,
		OnGameOver: func(int, int) { m.signals.notify() },
	})
	buf.Fill()
	m.submitter = results.NewSubmitter(m.deps.Results, m.deps.History)
	return nil
}

// checkFinished submits the result the first time the session is seen Over.
func (m *PracticeModel) checkFinished() tea.Cmd {
	if m.sess == nil || m.finished || m.sess.State() != session.Over {
		return nil
	}
	m.finished = true
	r := m.sess.Result()
	m.recordFooter(r)

	gen, sub := m.gen, m.submitter
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		return submitDoneMsg{gen: gen, err: sub.Submit(ctx, r)}
	}
}

// Close releases the current session.
func (m *PracticeModel) Close() {
	if m.sess != nil {
		m.sess.Close()
	}
}

func (m *PracticeModel) loadFooterStats() {
	if m.deps.History == nil {
		return
	}
	sessions, err := m.deps.History.ListSessions(context.Background(), model.StatsConfig{})
	if err != nil {
		log.Warn().Err(err).Msg("failed to load session stats")
		return
	}
	if len(sessions) == 0 {
		return
	}
	last := sessions[len(sessions)-1]
	m.lastWPM, _, m.lastAcc = statsPkg.SessionMetrics(last.Correct, last.Incorrect, last.DurationMs)
	m.hasLast = true
	for _, s := range sessions {
		m.allCorrect += s.Correct
		m.allIncorrect += s.Incorrect
		m.allDuration += s.DurationMs
	}
	m.recomputeAllTime()
}

func (m *PracticeModel) recordFooter(r model.SessionResult) {
	durationMs := r.Elapsed().Milliseconds()
	m.lastWPM, _, m.lastAcc = statsPkg.SessionMetrics(r.Correct, r.Incorrect, durationMs)
	m.hasLast = true
	m.allCorrect += r.Correct
	m.allIncorrect += r.Incorrect
	m.allDuration += durationMs
	m.recomputeAllTime()
}

func (m *PracticeModel) recomputeAllTime() {
	m.allWPM, _, m.allAcc = statsPkg.SessionMetrics(m.allCorrect, m.allIncorrect, m.allDuration)
}

// View implements tea.Model.
func (m *PracticeModel) View() string {
	if m.modal {
		return m.renderModal()
	}
	var snap session.Snapshot
	if m.sess != nil {
		snap = m.sess.Snapshot()
	}

	var body string
	switch {
	case m.loading:
		body = headerStyle.Render("Loading…")
	case m.sess == nil:
		body = ""
	case snap.State == session.Over:
		body = m.renderResults(snap)
	default:
		body = renderQuote(snap.Quote, snap.Typed, contentWidth(m.width))
	}

	lines := []string{m.renderHeader(snap), "", body}
	if msg := m.renderErrors(snap); msg != "" {
		lines = append(lines, "", msg)
	}
	content := strings.Join(lines, "\n")
	if m.width == 0 || m.height == 0 {
		return content + "\n" + m.renderFooter(snap)
	}
	content = lipgloss.NewStyle().Width(contentWidth(m.width)).Render(content)
	footer := m.renderFooter(snap)
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	main := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	return main + "\n" + lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
}

func (m *PracticeModel) renderHeader(snap session.Snapshot) string {
	status := ""
	if m.sess != nil {
		if m.cfg.Mode == model.ModeTimer {
			status = fmt.Sprintf("%ds", snap.TimeLeft)
		} else {
			status = fmt.Sprintf("%d/%d", min(snap.WordsCompleted, m.cfg.Words), m.cfg.Words)
		}
	}
	options := fmt.Sprintf("%s %s · punctuation %s · numbers %s",
		m.cfg.Mode, targetLabel(m.cfg), onOff(m.cfg.Flags.Punctuation), onOff(m.cfg.Flags.Numbers))
	return accentStyle.Render(status) + "  " + headerStyle.Render(options)
}

func (m *PracticeModel) renderResults(snap session.Snapshot) string {
	r := m.sess.Result()
	wpm := statsPkg.ResultWPM(r)
	lines := []string{
		valueStyle.Render(fmt.Sprintf("%.1f WPM", wpm)),
		fmt.Sprintf("Accuracy %s", statsPkg.FormatAccuracy(snap.Correct, snap.Incorrect)),
		fmt.Sprintf("Correct %d · Incorrect %d", snap.Correct, snap.Incorrect),
	}
	switch {
	case !m.submitted:
		lines = append(lines, headerStyle.Render("Submitting result…"))
	case m.submitErr == nil:
		lines = append(lines, headerStyle.Render("Result saved"))
	}
	lines = append(lines, "", headerStyle.Render("tab: next race"))
	return strings.Join(lines, "\n")
}

func (m *PracticeModel) renderErrors(snap session.Snapshot) string {
	var errs []string
	for _, err := range []error{m.loadErr, snap.FetchErr, m.submitErr} {
		if err != nil {
			errs = append(errs, describeError(err))
		}
	}
	if len(errs) == 0 {
		return ""
	}
	return errorStyle.Render(strings.Join(errs, "\n")) + "\n" + headerStyle.Render("esc: dismiss")
}

func (m *PracticeModel) renderFooter(snap session.Snapshot) string {
	progress := 0
	if target := m.cfg.Target(); target > 0 && m.sess != nil {
		done := snap.WordsCompleted
		if m.cfg.Mode == model.ModeTimer {
			done = target - snap.TimeLeft
		}
		progress = min(100, done*100/target)
	}
	segments := []string{fmt.Sprintf("Progress %d%%", progress)}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %.1f WPM · %.1f%%", m.lastWPM, m.lastAcc*100))
	}
	segments = append(segments, fmt.Sprintf("All-time %.1f WPM · %.1f%%", m.allWPM, m.allAcc*100))
	if m.idle() {
		segments = append(segments, "ctrl+t mode · ctrl+o target · ctrl+u custom · ctrl+p punct · ctrl+n numbers")
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func (m *PracticeModel) renderModal() string {
	title := valueStyle.Render("Custom target")
	body := []string{title, m.input.View(), headerStyle.Render("Enter to apply / Esc to cancel")}
	if m.inputErr != "" {
		body = append(body, errorStyle.Render(m.inputErr))
	}
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func targetLabel(cfg model.Config) string {
	if cfg.Mode == model.ModeWords {
		return fmt.Sprintf("%d words", cfg.Words)
	}
	return fmt.Sprintf("%ds", cfg.Duration)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func describeError(err error) string {
	var fetchErr *model.FetchError
	if errors.As(err, &fetchErr) && fetchErr.Err != nil {
		return fmt.Sprintf("%s failed: %v", fetchErr.Op, fetchErr.Err)
	}
	return err.Error()
}
