// view_ask.go: natural-language questions over selected tables.
//
// The left column lists the backend's tables (space toggles one into
// the question's scope); the right column shows the conversation. A
// question goes through console.Pipeline: the backend writes and runs
// SQL, then summarizes the result. Pending entries are drawn with a
// spinner while the request is in flight.
package tui

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/DachengChen/nlsql/console"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	askFocusInput = iota
	askFocusTables
)

const tablesColumnWidth = 26

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// AskView is the question/answer tab.
type AskView struct {
	pipeline *console.Pipeline
	viewport *Viewport
	input    textInput
	focus    int
	cursor   int
	selected map[string]bool
	loaded   bool
	running  bool
	frame    int
	width    int
	height   int
}

// NewAskView creates the view over p.
func NewAskView(p *console.Pipeline) *AskView {
	v := &AskView{
		pipeline: p,
		viewport: NewViewport(80, 20),
		selected: map[string]bool{},
	}
	v.viewport.SetFollow(true)
	return v
}

func (v *AskView) Name() string { return "Ask" }

func (v *AskView) WantsTextInput() bool { return v.focus == askFocusInput }

func (v *AskView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width-tablesColumnWidth-3, height-4)
	v.render()
}

func (v *AskView) ShortHelp() []KeyBinding {
	if v.focus == askFocusTables {
		return []KeyBinding{
			{Key: "Space", Desc: "toggle table"},
			{Key: "a", Desc: "all/none"},
			{Key: "m", Desc: "model"},
			{Key: "r", Desc: "reload"},
			{Key: "Tab", Desc: "question"},
		}
	}
	return []KeyBinding{
		{Key: "Enter", Desc: "ask"},
		{Key: "Tab", Desc: "tables"},
		{Key: "PgUp/PgDn", Desc: "scroll"},
		{Key: "Ctrl+X", Desc: "clear"},
	}
}

// Init loads tables and models the first time the tab opens.
func (v *AskView) Init() tea.Cmd {
	if v.loaded {
		return nil
	}
	v.loaded = true
	return v.load()
}

func (v *AskView) load() tea.Cmd {
	return func() tea.Msg {
		return PipelineLoadMsg{Report: v.pipeline.Load(context.Background())}
	}
}

// Clear implements clearer.
func (v *AskView) Clear() tea.Cmd {
	v.pipeline.Clear()
	v.render()
	return nil
}

func (v *AskView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case PipelineLoadMsg:
		tables := v.pipeline.Snapshot().Tables
		for name := range v.selected {
			if !contains(tables, name) {
				delete(v.selected, name)
			}
		}
		if v.cursor >= len(tables) {
			v.cursor = 0
		}
		v.render()

	case PipelineDoneMsg:
		v.running = false
		v.render()

	case tickMsg:
		if !v.running {
			return v, nil
		}
		v.frame = (v.frame + 1) % len(spinnerFrames)
		v.render()
		return v, tick()

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *AskView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	key := msg.String()
	switch key {
	case "tab", "shift+tab":
		v.focus = 1 - v.focus
		return v, nil
	case "ctrl+x":
		return v, v.Clear()
	}
	if v.viewport.ScrollKey(key) {
		return v, nil
	}

	if v.focus == askFocusInput {
		switch msg.Type {
		case tea.KeyEnter:
			return v, v.submit()
		case tea.KeyEsc:
			v.focus = askFocusTables
		default:
			v.input.handle(msg)
		}
		return v, nil
	}

	tables := v.pipeline.Snapshot().Tables
	switch key {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(tables)-1 {
			v.cursor++
		}
	case " ", "x":
		if v.cursor < len(tables) {
			name := tables[v.cursor]
			if v.selected[name] {
				delete(v.selected, name)
			} else {
				v.selected[name] = true
			}
		}
	case "a":
		if len(v.selected) == len(tables) {
			v.selected = map[string]bool{}
		} else {
			for _, t := range tables {
				v.selected[t] = true
			}
		}
	case "m":
		v.cycleModel()
	case "r":
		return v, v.load()
	case "enter", "i":
		v.focus = askFocusInput
	}
	return v, nil
}

func (v *AskView) cycleModel() {
	s := v.pipeline.Snapshot()
	if len(s.Models) == 0 {
		return
	}
	idx := 0
	for i, m := range s.Models {
		if m == s.Model {
			idx = (i + 1) % len(s.Models)
			break
		}
	}
	_ = v.pipeline.SelectModel(s.Models[idx])
}

func (v *AskView) submit() tea.Cmd {
	if v.running {
		return nil
	}
	question := v.input.value
	tables := v.selectedTables()

	if strings.TrimSpace(question) == "" || len(tables) == 0 {
		// Rejected locally; the pipeline posts the warning.
		err := v.pipeline.Submit(context.Background(), question, tables, "")
		if err != nil && len(tables) == 0 {
			v.focus = askFocusTables
		}
		return nil
	}

	v.input = textInput{}
	v.running = true
	v.viewport.SetFollow(true)
	return tea.Batch(
		func() tea.Msg {
			return PipelineDoneMsg{Err: v.pipeline.Submit(context.Background(), question, tables, "")}
		},
		tick(),
	)
}

func (v *AskView) selectedTables() []string {
	out := make([]string, 0, len(v.selected))
	for name := range v.selected {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func tick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// render rebuilds the conversation pane from the pipeline log.
func (v *AskView) render() {
	entries := v.pipeline.Log().Entries()
	if len(entries) == 0 {
		v.viewport.SetContentLines([]string{
			StyleTitle.Render("Ask your data"),
			"Pick one or more tables on the left (Tab, then Space),",
			"type a question and press Enter.",
			"",
			StyleDimmed.Render("e.g. \"monthly revenue by region in 2024\""),
		})
		return
	}

	width := v.viewport.width - 2
	userStyle := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	var lines []string
	for _, e := range entries {
		switch e.Kind {
		case console.EntryUser:
			lines = append(lines, userStyle.Render("You ")+StyleDimmed.Render(e.Time.Format("15:04")))
			for _, l := range wrapText(e.Text, width) {
				lines = append(lines, "  "+l)
			}

		case console.EntrySQLResult:
			switch e.Status {
			case console.StatusPending:
				lines = append(lines, StyleDimmed.Render("  "+spinnerFrames[v.frame]+" generating SQL..."))
			case console.StatusFailed:
				lines = append(lines, StyleError.Render("  ✗ "+e.Text))
			default:
				lines = append(lines, StyleSuccess.Render("SQL"))
				for _, l := range strings.Split(e.SQL, "\n") {
					lines = append(lines, "  "+StyleNormal.Render(l))
				}
				lines = append(lines, "")
				for _, l := range formatResult(e.Result) {
					lines = append(lines, "  "+l)
				}
			}

		case console.EntryChatAnswer:
			switch e.Status {
			case console.StatusPending:
				lines = append(lines, StyleDimmed.Render("  "+spinnerFrames[v.frame]+" analyzing the result..."))
			case console.StatusFailed:
				lines = append(lines, StyleError.Render("  ✗ "+e.Text))
			default:
				lines = append(lines, StyleSuccess.Render("Answer"))
				for _, l := range wrapText(e.Text, width) {
					lines = append(lines, "  "+l)
				}
			}
		}
		lines = append(lines, "")
	}
	v.viewport.SetContentLines(lines)
}

func (v *AskView) View() string {
	s := v.pipeline.Snapshot()

	// Tables column
	var left []string
	header := "Tables"
	if len(v.selected) > 0 {
		header += StyleDimmed.Render(" (" + itoa(len(v.selected)) + ")")
	}
	if v.focus == askFocusTables {
		left = append(left, StyleInputFocused.Render("▸ ")+StyleBold.Render(header))
	} else {
		left = append(left, StyleBold.Render(header))
	}
	if len(s.Tables) == 0 {
		left = append(left, StyleDimmed.Render("  (none loaded)"))
	}
	listH := v.height - 6
	start := 0
	if v.cursor >= listH && listH > 0 {
		start = v.cursor - listH + 1
	}
	for i := start; i < len(s.Tables) && i-start < listH; i++ {
		name := s.Tables[i]
		mark := "[ ] "
		if v.selected[name] {
			mark = "[x] "
		}
		line := truncate(mark+name, tablesColumnWidth-1)
		if i == v.cursor && v.focus == askFocusTables {
			line = StyleListItemActive.Render(line)
		} else if v.selected[name] {
			line = StyleSuccess.Render(line)
		}
		left = append(left, line)
	}
	left = append(left, "", StyleDimmed.Render("Model"), "  "+StyleNormal.Render(orDash(s.Model)))

	leftCol := lipgloss.NewStyle().Width(tablesColumnWidth).Height(v.height - 3).
		Render(strings.Join(left, "\n"))
	rightCol := StylePanel.Render(v.viewport.Render())
	body := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, rightCol)

	prompt := StylePrompt.Render("Ask> ") + v.input.render(v.focus == askFocusInput)
	if v.running {
		prompt = StylePrompt.Render("Ask> ") + StyleDimmed.Render(spinnerFrames[v.frame]+" "+s.Stage.String()+"...")
	}
	return lipgloss.JoinVertical(lipgloss.Left, prompt, "", body)
}
