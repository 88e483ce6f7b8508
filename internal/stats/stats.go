// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/typerace/internal/model"
)

const sparkChars = " .:-=+*#%@"

// SessionMetrics computes WPM, CPM, and accuracy for a session.
func SessionMetrics(correct, incorrect int, durationMs int64) (wpm, cpm, accuracy float64) {
	if durationMs <= 0 {
		return 0, 0, Accuracy(correct, incorrect)
	}
	minutes := float64(durationMs) / 60000.0
	wpm = (float64(correct) / 5.0) / minutes
	cpm = float64(correct) / minutes
	return wpm, cpm, Accuracy(correct, incorrect)
}

// Accuracy returns correct/(correct+incorrect) in [0,1], or 0 with no input.
func Accuracy(correct, incorrect int) float64 {
	den := correct + incorrect
	if den <= 0 {
		return 0
	}
	return float64(correct) / float64(den)
}

// FormatAccuracy renders accuracy as a percentage with one decimal.
func FormatAccuracy(correct, incorrect int) string {
	return fmt.Sprintf("%.1f%%", Accuracy(correct, incorrect)*100)
}

// ResultWPM computes WPM for a finished session result.
func ResultWPM(r model.SessionResult) float64 {
	wpm, _, _ := SessionMetrics(r.Correct, r.Incorrect, r.Elapsed().Milliseconds())
	return wpm
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints a summary for sessions, followed by a WPM trend line
// smoothed over window sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate, window int) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	var totalWPM, totalAcc float64
	bestWPM := 0.0
	wpms := make([]float64, len(sessions))
	for i, s := range sessions {
		wpm, _, acc := SessionMetrics(s.Correct, s.Incorrect, s.DurationMs)
		wpms[i] = wpm
		totalWPM += wpm
		totalAcc += acc
		bestWPM = math.Max(bestWPM, wpm)
	}
	count := float64(len(sessions))
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", len(sessions)),
		fmt.Sprintf("Avg WPM: %.2f", totalWPM/count),
		fmt.Sprintf("Best WPM: %.2f", bestWPM),
		fmt.Sprintf("Avg Accuracy: %.1f%%", (totalAcc/count)*100),
	}
	if len(sessions) > 1 {
		lines = append(lines, "Trend: "+Sparkline(MovingAverage(wpms, window)))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

type sessionColumn struct {
	title string
	right bool
	cell  func(model.SessionAggregate) string
}

var sessionColumns = []sessionColumn{
	{title: "Ended", cell: func(s model.SessionAggregate) string { return s.EndedAt.Local().Format("2006-01-02 15:04") }},
	{title: "Mode", cell: func(s model.SessionAggregate) string { return string(s.Mode) }},
	{title: "Target", right: true, cell: func(s model.SessionAggregate) string { return targetLabel(s.Mode, s.Target) }},
	{title: "WPM", right: true, cell: func(s model.SessionAggregate) string {
		wpm, _, _ := SessionMetrics(s.Correct, s.Incorrect, s.DurationMs)
		return fmt.Sprintf("%.1f", wpm)
	}},
	{title: "Accuracy", right: true, cell: func(s model.SessionAggregate) string { return FormatAccuracy(s.Correct, s.Incorrect) }},
	{title: "Correct", right: true, cell: func(s model.SessionAggregate) string { return strconv.Itoa(s.Correct) }},
	{title: "Incorrect", right: true, cell: func(s model.SessionAggregate) string { return strconv.Itoa(s.Incorrect) }},
}

// RenderSessionTable prints one row per session, oldest first.
func RenderSessionTable(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		return nil
	}
	widths := make([]int, len(sessionColumns))
	header := make([]string, len(sessionColumns))
	for i, col := range sessionColumns {
		header[i] = col.title
		widths[i] = runewidth.StringWidth(col.title)
	}
	rows := [][]string{header}
	for _, s := range sessions {
		row := make([]string, len(sessionColumns))
		for i, col := range sessionColumns {
			row[i] = col.cell(s)
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
		rows = append(rows, row)
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, sessionLine(row, widths)); err != nil {
			return err
		}
	}
	return nil
}

func sessionLine(row []string, widths []int) string {
	cells := make([]string, len(row))
	for i, cell := range row {
		if sessionColumns[i].right {
			cells[i] = runewidth.FillLeft(cell, widths[i])
		} else {
			cells[i] = runewidth.FillRight(cell, widths[i])
		}
	}
	return strings.Join(cells, "  ")
}

func targetLabel(mode model.Mode, target int) string {
	if mode == model.ModeWords {
		return fmt.Sprintf("%dw", target)
	}
	return fmt.Sprintf("%ds", target)
}
