package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/typerace/internal/session"
)

// typingKeys translates a terminal key into session keystrokes. Keys that
// carry no text are reported as modifiers so the session can ignore them.
func typingKeys(msg tea.KeyMsg) []session.Key {
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete:
		return []session.Key{session.Backspace()}
	case tea.KeySpace:
		return []session.Key{session.Rune(' ')}
	case tea.KeyRunes:
		if msg.Alt {
			return []session.Key{{Kind: session.KeyModifier}}
		}
		keys := make([]session.Key, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			keys = append(keys, session.Rune(r))
		}
		return keys
	default:
		return []session.Key{{Kind: session.KeyModifier}}
	}
}

// signalMsg wakes the program after a session changed off the UI goroutine.
type signalMsg struct{}

// notifier coalesces change callbacks from timers and word fetches into at
// most one pending signalMsg.
type notifier struct {
	ch chan struct{}
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{}, 1)}
}

func (n *notifier) notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

func (n *notifier) wait() tea.Cmd {
	return func() tea.Msg {
		<-n.ch
		return signalMsg{}
	}
}
