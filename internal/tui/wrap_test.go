package tui

import (
	"strings"
	"testing"
)

func TestBuildStyledRunesCursor(t *testing.T) {
	quote := []rune("ab")
	typed := []rune("a")
	cursorIndex := len(typed)

	runes := buildStyledRunes(quote, typed, cursorIndex)
	if len(runes) != 2 {
		t.Fatalf("expected 2 runes, got %d", len(runes))
	}
	if runes[0].s != correctStyle.Render("a") {
		t.Fatalf("expected correct style for first rune")
	}
	if runes[1].s != currentWordStyle.Underline(true).Render("b") {
		t.Fatalf("expected cursor style for second rune")
	}
}

func TestBuildStyledRunesNoCursorWhenComplete(t *testing.T) {
	quote := []rune("a")
	typed := []rune("a")
	cursorIndex := -1

	runes := buildStyledRunes(quote, typed, cursorIndex)
	if len(runes) != 1 {
		t.Fatalf("expected 1 rune, got %d", len(runes))
	}
	if runes[0].s != correctStyle.Render("a") {
		t.Fatalf("expected correct style for completed rune")
	}
}

func TestBuildStyledRunesKeepsTargetOnMistype(t *testing.T) {
	quote := []rune("ab")
	typed := []rune("ax")
	cursorIndex := len(typed)

	runes := buildStyledRunes(quote, typed, cursorIndex)
	if len(runes) != 2 {
		t.Fatalf("expected 2 runes, got %d", len(runes))
	}
	if runes[0].s != correctStyle.Render("a") {
		t.Fatalf("expected correct style for first rune")
	}
	if runes[1].s != incorrectStyle.Render("b") {
		t.Fatalf("expected incorrect style for second rune")
	}
}

func TestBuildStyledRunesWordHighlighting(t *testing.T) {
	quote := []rune("one two")
	typed := []rune("o")
	cursorIndex := len(typed)

	runes := buildStyledRunes(quote, typed, cursorIndex)
	if runes[0].s != correctStyle.Render("o") {
		t.Fatalf("expected correct style for typed rune")
	}
	if runes[1].s != currentWordStyle.Render("n") {
		t.Fatalf("expected current word style for untyped in current word")
	}
	if runes[2].s != currentWordStyle.Render("e") {
		t.Fatalf("expected current word style for untyped in current word")
	}
	if runes[4].s != pendingStyle.Render("t") {
		t.Fatalf("expected pending style for next word")
	}
	if runes[6].s != pendingStyle.Render("o") {
		t.Fatalf("expected pending style for next word")
	}
}

func TestBuildStyledRunesWrongSpaceDot(t *testing.T) {
	quote := []rune("a b")
	typed := []rune("ax")
	cursorIndex := len(typed)

	runes := buildStyledRunes(quote, typed, cursorIndex)
	if len(runes) != 3 {
		t.Fatalf("expected 3 runes, got %d", len(runes))
	}
	if runes[1].s != incorrectStyle.Render(string(wrongSpace)) {
		t.Fatalf("expected red dot for wrong space")
	}
}

func TestWrapStyledRunesBreaksAtSpaces(t *testing.T) {
	quote := []rune("one two three")
	runes := buildStyledRunes(quote, nil, -1)
	out := wrapStyledRunes(runes, 8)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out)
	}
	if lines[0] != renderStyledRunes(runes[:7]) {
		t.Fatalf("unexpected first line %q", lines[0])
	}
}

func TestWrapStyledRunesHardBreaksLongWords(t *testing.T) {
	runes := buildStyledRunes([]rune("abcdef"), nil, -1)
	lines := strings.Split(wrapStyledRunes(runes, 4), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected hard break, got %d lines", len(lines))
	}
}
