// pattern: Functional Core

package tui

import tea "github.com/charmbracelet/bubbletea"

var keySequences = map[tea.KeyType]string{
	tea.KeyUp:       "\x1b[A",
	tea.KeyDown:     "\x1b[B",
	tea.KeyRight:    "\x1b[C",
	tea.KeyLeft:     "\x1b[D",
	tea.KeyHome:     "\x1b[H",
	tea.KeyEnd:      "\x1b[F",
	tea.KeyPgUp:     "\x1b[5~",
	tea.KeyPgDown:   "\x1b[6~",
	tea.KeyDelete:   "\x1b[3~",
	tea.KeyInsert:   "\x1b[2~",
	tea.KeyShiftTab: "\x1b[Z",
	tea.KeySpace:    " ",
	tea.KeyF1:       "\x1bOP",
	tea.KeyF2:       "\x1bOQ",
	tea.KeyF3:       "\x1bOR",
	tea.KeyF4:       "\x1bOS",
}

// keyBytes maps a key press to the bytes a terminal would send for it.
// It returns nil for keys with no terminal encoding.
func keyBytes(msg tea.KeyMsg) []byte {
	var out string
	switch {
	case msg.Type == tea.KeyRunes:
		out = string(msg.Runes)
	case msg.Type >= 0 && msg.Type < 0x20, msg.Type == 0x7f:
		out = string(rune(msg.Type))
	default:
		seq, ok := keySequences[msg.Type]
		if !ok {
			return nil
		}
		out = seq
	}
	if msg.Alt {
		out = "\x1b" + out
	}
	return []byte(out)
}
