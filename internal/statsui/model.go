// Package statsui provides the Bubble Tea race history browser.
package statsui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/stats"
)

const (
	tabOverview = iota
	tabSessions
)

const (
	filterMode = iota
	filterSince
	filterLast
	filterWindow
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	trendStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea history browser.
type Model struct {
	src    stats.SessionLister
	cfg    model.StatsConfig
	window int

	report stats.Report
	errMsg string

	tabs      []string
	activeTab int
	overview  viewport.Model
	sessions  table.Model

	width  int
	height int

	filtering    bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

// NewModel loads the history matching cfg. window is the trend moving-average size.
func NewModel(src stats.SessionLister, cfg model.StatsConfig, window int) *Model {
	m := &Model{
		src:      src,
		cfg:      cfg,
		window:   max(1, window),
		tabs:     []string{"Overview", "Sessions"},
		overview: viewport.New(0, 0),
		sessions: newSessionTable(),
	}
	m.initInputs()
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderOverview()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filtering {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, nil
		case "right", "l", "tab":
			m.moveTab(1)
			return m, nil
		case "=":
			m.window = nextWindow(m.window)
			m.renderOverview()
			return m, nil
		case "-":
			m.window = prevWindow(m.window)
			m.renderOverview()
			return m, nil
		case "/":
			return m, m.startFilter()
		case "g", "home":
			if m.activeTab == tabSessions {
				m.sessions.GotoTop()
			} else {
				m.overview.GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabSessions {
				m.sessions.GotoBottom()
			} else {
				m.overview.GotoBottom()
			}
			return m, nil
		}
		var cmd tea.Cmd
		if m.activeTab == tabSessions {
			m.sessions, cmd = m.sessions.Update(msg)
		} else {
			m.overview, cmd = m.overview.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Mode (timer/words): "),
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
		newFilterInput("Trend window: "),
	}
	m.setInputsFromConfig()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	m.filterInputs[filterMode].SetValue(string(m.cfg.Mode))
	m.filterInputs[filterSince].SetValue("")
	if m.cfg.Since != nil {
		m.filterInputs[filterSince].SetValue(m.cfg.Since.Format("2006-01-02"))
	}
	m.filterInputs[filterLast].SetValue("")
	if m.cfg.Last > 0 {
		m.filterInputs[filterLast].SetValue(strconv.Itoa(m.cfg.Last))
	}
	m.filterInputs[filterWindow].SetValue(strconv.Itoa(m.window))
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = max(1, lipgloss.Height(activeNavStyle.Render("X"))) + 1
	footerHeight = 1
	if !m.filtering && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	m.sessions.SetWidth(m.width)
	m.sessions.SetHeight(max(1, bodyHeight-1))
	for i := range m.filterInputs {
		m.filterInputs[i].Width = max(10, m.width-lipgloss.Width(m.filterInputs[i].Prompt)-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	m.activeTab = ((m.activeTab+delta)%count + count) % count
	if m.activeTab == tabSessions {
		m.sessions.Focus()
	} else {
		m.sessions.Blur()
	}
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(context.Background(), m.src, m.cfg, m.window)
	if err != nil {
		m.errMsg = err.Error()
		m.report = stats.Report{}
		m.sessions.SetRows(nil)
		m.overview.SetContent("Failed to load stats.")
		return
	}
	m.errMsg = ""
	m.report = report
	m.sessions.SetRows(sessionRows(report.Sessions))
	m.sessions.GotoBottom()
	m.renderOverview()
}

func (m *Model) renderOverview() {
	if m.errMsg != "" {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.report.Sessions, m.window, width))
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	return m.renderTabs() + "\n" + headerStyle.Render(truncateLine(m.filterSummary(), m.width))
}

func (m *Model) filterSummary() string {
	mode := "any"
	if m.cfg.Mode != "" {
		mode = string(m.cfg.Mode)
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	return fmt.Sprintf("Settings: mode=%s  since=%s  last=%s  window=%d", mode, since, last, m.window)
}

func (m *Model) renderBody() string {
	if m.filtering {
		lines := []string{"Settings (enter to apply, esc to cancel)"}
		for _, input := range m.filterInputs {
			lines = append(lines, input.View())
		}
		if m.filterError != "" {
			lines = append(lines, errorStyle.Render(m.filterError))
		}
		return strings.Join(lines, "\n")
	}
	if m.activeTab == tabSessions {
		if len(m.report.Sessions) == 0 {
			return "No sessions found."
		}
		return tableMutedStyle.Render(m.sessions.View())
	}
	return m.overview.View()
}

func (m *Model) renderFooter() string {
	if m.filtering {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	help := headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Settings: /  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func renderOverview(sessions []model.SessionAggregate, window, width int) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}
	var totalWPM, totalAcc float64
	bestWPM := 0.0
	wpms := make([]float64, len(sessions))
	accs := make([]float64, len(sessions))
	for i, s := range sessions {
		wpm, _, acc := stats.SessionMetrics(s.Correct, s.Incorrect, s.DurationMs)
		wpms[i], accs[i] = wpm, acc*100
		totalWPM += wpm
		totalAcc += acc
		bestWPM = max(bestWPM, wpm)
	}
	count := float64(len(sessions))
	cards := []string{
		metricCard("Sessions", strconv.Itoa(len(sessions))),
		metricCard("Avg WPM", fmt.Sprintf("%.1f", totalWPM/count)),
		metricCard("Best WPM", fmt.Sprintf("%.1f", bestWPM)),
		metricCard("Avg Acc", fmt.Sprintf("%.1f%%", totalAcc/count*100)),
	}
	var summary string
	if width < 80 {
		summary = strings.Join(cards, "\n")
	} else {
		summary = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}
	if len(sessions) < 2 {
		return summary
	}
	trendWidth := max(10, width-16)
	lines := []string{
		summary,
		"",
		headerStyle.Render(fmt.Sprintf("WPM trend (moving average %d)", window)),
		trendStyle.Render(stats.Sparkline(tail(stats.MovingAverage(wpms, window), trendWidth))),
		headerStyle.Render("Accuracy trend"),
		trendStyle.Render(stats.Sparkline(tail(stats.MovingAverage(accs, window), trendWidth))),
	}
	return strings.Join(lines, "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func newSessionTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Ended", Width: 16},
			{Title: "Mode", Width: 6},
			{Title: "Target", Width: 6},
			{Title: "WPM", Width: 7},
			{Title: "Accuracy", Width: 9},
			{Title: "Correct", Width: 7},
			{Title: "Incorrect", Width: 9},
		}),
		table.WithHeight(1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	t.SetStyles(styles)
	return t
}

func sessionRows(sessions []model.SessionAggregate) []table.Row {
	rows := make([]table.Row, 0, len(sessions))
	for _, s := range sessions {
		wpm, _, _ := stats.SessionMetrics(s.Correct, s.Incorrect, s.DurationMs)
		target := fmt.Sprintf("%ds", s.Target)
		if s.Mode == model.ModeWords {
			target = fmt.Sprintf("%dw", s.Target)
		}
		rows = append(rows, table.Row{
			s.EndedAt.Local().Format("2006-01-02 15:04"),
			string(s.Mode),
			target,
			fmt.Sprintf("%.1f", wpm),
			stats.FormatAccuracy(s.Correct, s.Incorrect),
			strconv.Itoa(s.Correct),
			strconv.Itoa(s.Incorrect),
		})
	}
	return rows
}

func (m *Model) startFilter() tea.Cmd {
	m.filtering = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filtering = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filtering = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	m.filterIndex = (idx%count + count) % count
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	cfg := model.StatsConfig{
		Mode: model.Mode(strings.ToLower(strings.TrimSpace(m.filterInputs[filterMode].Value()))),
	}
	if sinceInput := strings.TrimSpace(m.filterInputs[filterSince].Value()); sinceInput != "" {
		parsed, err := time.ParseInLocation("2006-01-02", sinceInput, time.Local)
		if err != nil {
			return fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		cfg.Since = &parsed
	}
	if lastInput := strings.TrimSpace(m.filterInputs[filterLast].Value()); lastInput != "" {
		parsed, err := strconv.Atoi(lastInput)
		if err != nil {
			return fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		cfg.Last = parsed
	}
	if err := model.Validate(cfg); err != nil {
		return err
	}

	window := m.window
	if windowInput := strings.TrimSpace(m.filterInputs[filterWindow].Value()); windowInput != "" {
		parsed, err := strconv.Atoi(windowInput)
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid trend window (use integer >= 1)")
		}
		window = parsed
	}

	m.cfg = cfg
	m.window = window
	return nil
}

func nextWindow(n int) int {
	if n < 5 {
		return 5
	}
	return (n/5 + 1) * 5
}

func prevWindow(n int) int {
	if n <= 5 {
		return 1
	}
	if n%5 == 0 {
		return n - 5
	}
	return (n / 5) * 5
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
