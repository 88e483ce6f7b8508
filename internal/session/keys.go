package session

// KeyKind classifies a keystroke delivered to a Session.
type KeyKind int

const (
	// KeyRune is a printable character, including space.
	KeyRune KeyKind = iota
	// KeyBackspace removes the last typed character.
	KeyBackspace
	// KeyModifier is a bare Shift/Control/Alt/Meta press.
	KeyModifier
)

// Key is a single keyboard event. InInput marks events whose focus is inside
// an unrelated text field (chat, custom value modal).
type Key struct {
	Kind    KeyKind
	Rune    rune
	InInput bool
}

// Rune returns a printable key event.
func Rune(r rune) Key {
	return Key{Kind: KeyRune, Rune: r}
}

// Backspace returns a backspace key event.
func Backspace() Key {
	return Key{Kind: KeyBackspace}
}

// TypeString converts s into rune key events.
func TypeString(s string) []Key {
	keys := make([]Key, 0, len(s))
	for _, r := range s {
		keys = append(keys, Rune(r))
	}
	return keys
}
