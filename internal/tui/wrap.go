package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const wrongSpace = '•'

type styledRune struct {
	s       string
	width   int
	isSpace bool
}

// buildStyledRunes colors the quote against what has been typed so far.
// cursorIndex < 0 hides the cursor.
func buildStyledRunes(quote, typed []rune, cursorIndex int) []styledRune {
	words := findWords(quote)
	currentWord := wordForCursor(words, cursorIndex)

	out := make([]styledRune, 0, len(quote))
	for i, want := range quote {
		displayed := want
		style := pendingStyle
		switch {
		case i < len(typed):
			switch {
			case want == ' ' && typed[i] != ' ':
				displayed = wrongSpace
				style = incorrectStyle
			case typed[i] == want:
				style = correctStyle
			default:
				style = incorrectStyle
			}
		case want != ' ' && currentWord != nil && i >= currentWord.start && i < currentWord.end:
			style = currentWordStyle
		}
		if i == cursorIndex && i >= len(typed) {
			style = style.Underline(true)
		}
		out = append(out, styledRune{
			s:       style.Render(string(displayed)),
			width:   runewidth.RuneWidth(displayed),
			isSpace: want == ' ',
		})
	}
	return out
}

type wordRange struct {
	start int
	end   int
}

func findWords(quote []rune) []wordRange {
	words := []wordRange{}
	start := -1
	for i, r := range quote {
		if r == ' ' {
			if start != -1 {
				words = append(words, wordRange{start: start, end: i})
				start = -1
			}
			continue
		}
		if start == -1 {
			start = i
		}
	}
	if start != -1 {
		words = append(words, wordRange{start: start, end: len(quote)})
	}
	return words
}

func wordForCursor(words []wordRange, cursorIndex int) *wordRange {
	if len(words) == 0 {
		return nil
	}
	if cursorIndex < 0 {
		return nil
	}
	for i, w := range words {
		if cursorIndex < w.end {
			return &words[i]
		}
	}
	return nil
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapStyledRunes breaks lines at the last space that fits in width.
func wrapStyledRunes(runes []styledRune, width int) string {
	if width <= 0 {
		return renderStyledRunes(runes)
	}
	var out strings.Builder
	line := make([]styledRune, 0, len(runes))
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(runes); {
		item := runes[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if lastSpaceIdx >= 0 {
				out.WriteString(renderStyledRunes(line[:lastSpaceIdx]))
				out.WriteRune('\n')
				line = append([]styledRune{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				out.WriteString(renderStyledRunes(line))
				out.WriteRune('\n')
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	out.WriteString(renderStyledRunes(line))
	return out.String()
}

func lineWidthOf(line []styledRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}

// renderQuote renders the race text wrapped to width.
func renderQuote(quote, typed []rune, width int) string {
	cursorIndex := -1
	if len(typed) < len(quote) {
		cursorIndex = len(typed)
	}
	return wrapStyledRunes(buildStyledRunes(quote, typed, cursorIndex), width)
}

func contentWidth(width int) int {
	if width <= 0 {
		return 0
	}
	return max(1, int(float64(width)*0.70))
}

func modalWidth(width int) int {
	return max(40, min(width-4, 80))
}
