// view_sql.go: raw SQL debugging view.
//
// Features:
//   - Text input for SQL (Ctrl+N inserts a newline)
//   - Async execution through console.SQLDebug (never blocks UI)
//   - Results rendered as a table with scrolling
//   - The last 20 runs, successful or not, listed on the right and kept
//     across restarts; selecting one shows its stored result without
//     running it again
package tui

import (
	"context"
	"strings"

	"github.com/DachengChen/nlsql/console"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const historyColumnWidth = 34

type SQLView struct {
	debug     *console.SQLDebug
	viewport  *Viewport
	input     textInput
	histIdx   int // -1 while typing a fresh statement
	cursor    int // selection in the history list
	inHistory bool
	loading   bool
	width     int
	height    int
}

func NewSQLView(d *console.SQLDebug) *SQLView {
	v := &SQLView{
		debug:    d,
		viewport: NewViewport(80, 20),
		input:    textInput{multiline: true},
		histIdx:  -1,
	}
	v.input.value = d.Snapshot().Editor
	return v
}

func (v *SQLView) Name() string { return "SQL" }

func (v *SQLView) WantsTextInput() bool { return !v.inHistory }

func (v *SQLView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width-historyColumnWidth-3, height-v.editorHeight()-3)
}

func (v *SQLView) editorHeight() int {
	n := strings.Count(v.input.value, "\n") + 1
	if n > 8 {
		n = 8
	}
	return n
}

func (v *SQLView) ShortHelp() []KeyBinding {
	if v.inHistory {
		return []KeyBinding{
			{Key: "↑/↓", Desc: "select"},
			{Key: "Enter", Desc: "show run"},
			{Key: "e", Desc: "edit"},
			{Key: "D", Desc: "clear history"},
		}
	}
	return []KeyBinding{
		{Key: "Enter", Desc: "execute"},
		{Key: "Ctrl+N", Desc: "newline"},
		{Key: "↑/↓", Desc: "recall"},
		{Key: "Esc", Desc: "history"},
		{Key: "Ctrl+W", Desc: "wrap"},
	}
}

func (v *SQLView) Init() tea.Cmd {
	v.showState()
	return nil
}

// Clear implements clearer: empties editor and result.
func (v *SQLView) Clear() tea.Cmd {
	v.debug.ClearEditor()
	v.input.value = ""
	v.histIdx = -1
	v.showState()
	return nil
}

func (v *SQLView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.inHistory {
			return v.handleHistoryKey(msg)
		}
		return v.handleKey(msg)

	case SQLDoneMsg:
		v.loading = false
		v.cursor = 0
		v.input.value = v.debug.Snapshot().Editor
		v.showState()
	}
	return v, nil
}

func (v *SQLView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	if v.viewport.ScrollKey(msg.String()) {
		return v, nil
	}
	switch msg.String() {
	case "enter":
		return v, v.execute()

	case "esc":
		v.inHistory = true
		return v, nil

	case "up":
		entries := v.debug.History().Entries()
		if v.histIdx < len(entries)-1 {
			v.histIdx++
			v.setEditor(entries[v.histIdx].SQL)
		}
		return v, nil

	case "down":
		entries := v.debug.History().Entries()
		if v.histIdx > 0 {
			v.histIdx--
			v.setEditor(entries[v.histIdx].SQL)
		} else {
			v.histIdx = -1
			v.setEditor("")
		}
		return v, nil
	}

	if v.input.handle(msg) {
		v.debug.SetEditor(v.input.value)
		v.SetSize(v.width, v.height)
	}
	return v, nil
}

func (v *SQLView) handleHistoryKey(msg tea.KeyMsg) (View, tea.Cmd) {
	if v.viewport.ScrollKey(msg.String()) {
		return v, nil
	}
	entries := v.debug.History().Entries()
	switch msg.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(entries)-1 {
			v.cursor++
		}
	case "enter":
		if v.cursor < len(entries) {
			if err := v.debug.LoadFromHistory(entries[v.cursor].ID); err == nil {
				v.input.value = v.debug.Snapshot().Editor
				v.SetSize(v.width, v.height)
				v.showState()
			}
		}
	case "D":
		_ = v.debug.ClearHistory()
		v.cursor = 0
		v.histIdx = -1
	case "e", "i", "esc", "tab":
		v.inHistory = false
	}
	return v, nil
}

func (v *SQLView) setEditor(sql string) {
	v.input.value = sql
	v.debug.SetEditor(sql)
	v.SetSize(v.width, v.height)
}

func (v *SQLView) execute() tea.Cmd {
	sql := strings.TrimSpace(v.input.value)
	if v.loading {
		return nil
	}
	if sql == "" {
		// Rejected locally with a warning notice.
		_ = v.debug.Execute(context.Background(), sql)
		return nil
	}
	v.histIdx = -1
	v.loading = true
	return func() tea.Msg {
		return SQLDoneMsg{Err: v.debug.Execute(context.Background(), sql)}
	}
}

// showState renders the result or error currently held by the debugger.
func (v *SQLView) showState() {
	s := v.debug.Snapshot()
	switch {
	case s.Error != "":
		v.viewport.SetContentLines(append([]string{StyleError.Render("ERROR: " + s.Error)}, v.replayNote(s)...))
	case s.Result != nil:
		v.viewport.SetContentLines(append(formatResult(s.Result), v.replayNote(s)...))
	default:
		v.viewport.SetContentLines([]string{StyleDimmed.Render("Only SELECT statements are accepted by the backend.")})
	}
}

func (v *SQLView) replayNote(s console.SQLDebugState) []string {
	if s.Replayed == "" {
		return nil
	}
	e, ok := v.debug.History().Get(s.Replayed)
	if !ok {
		return nil
	}
	return []string{"", StyleDimmed.Render("run at " + e.Timestamp.Format("2006-01-02 15:04:05"))}
}

func (v *SQLView) renderHistory() string {
	entries := v.debug.History().Entries()
	title := "History"
	if v.inHistory {
		title = StyleInputFocused.Render("▸ ") + StyleBold.Render(title)
	} else {
		title = StyleBold.Render(title)
	}
	lines := []string{title + StyleDimmed.Render(" ("+itoa(len(entries))+"/"+itoa(console.HistoryCapacity)+")")}
	if len(entries) == 0 {
		lines = append(lines, StyleDimmed.Render("  no runs yet"))
	}
	for i, e := range entries {
		mark := StyleSuccess.Render("✓")
		if !e.Success {
			mark = StyleError.Render("✗")
		}
		sql := strings.Join(strings.Fields(e.SQL), " ")
		label := truncate(e.Timestamp.Format("15:04")+" "+sql, historyColumnWidth-4)
		if v.inHistory && i == v.cursor {
			label = StyleListItemActive.Render(label)
		}
		lines = append(lines, mark+" "+label)
	}
	return lipgloss.NewStyle().Width(historyColumnWidth).Render(strings.Join(lines, "\n"))
}

func (v *SQLView) View() string {
	var editor []string
	for i, l := range strings.Split(v.input.render(!v.inHistory && !v.loading), "\n") {
		prefix := StylePrompt.Render("sql> ")
		if i > 0 {
			prefix = StylePrompt.Render(" ... ")
		}
		editor = append(editor, prefix+l)
	}
	if v.loading {
		editor = append(editor, StyleDimmed.Render("executing..."))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(v.width-historyColumnWidth-3).Render(v.viewport.Render()),
		StylePanel.Render(v.renderHistory()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, strings.Join(editor, "\n"), "", body)
}
