package tui

import (
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// textInput is a single-line (or, with multiline, newline-aware) text
// field edited key by key.
type textInput struct {
	value     string
	multiline bool
}

// handle applies an editing key and reports whether it consumed it.
func (t *textInput) handle(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyRunes:
		t.value += string(msg.Runes)
	case tea.KeySpace:
		t.value += " "
	case tea.KeyTab:
		if !t.multiline {
			return false
		}
		t.value += "  "
	case tea.KeyBackspace:
		if r := []rune(t.value); len(r) > 0 {
			t.value = string(r[:len(r)-1])
		}
	case tea.KeyCtrlU:
		t.value = ""
	case tea.KeyCtrlN:
		if !t.multiline {
			return false
		}
		t.value += "\n"
	default:
		return false
	}
	return true
}

// render draws the value with a block cursor when focused.
func (t textInput) render(focused bool) string {
	if !focused {
		return t.value
	}
	return t.value + "█"
}

// renderInput draws a labeled single-line field.
func renderInput(label string, t textInput, focused bool, width int) string {
	l := StyleDimmed.Render(padRight(label, 12))
	if focused {
		l = StyleInputFocused.Render(padRight("▸ "+label, 12))
	}
	val := t.render(focused)
	if width > 14 && len([]rune(val)) > width-14 {
		r := []rune(val)
		val = "…" + string(r[len(r)-(width-15):])
	}
	return l + " " + val
}

func padRight(s string, n int) string {
	if w := len([]rune(s)); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s
}

// expandPath resolves a leading ~/ in paths typed by the user.
func expandPath(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
