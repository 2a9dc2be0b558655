// view_tables.go: table browser.
//
// Lists the backend's tables with a name filter, previews one (rows and
// create statement are fetched together) and drops tables after an
// explicit y/n confirmation.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/DachengChen/nlsql/console"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type TablesView struct {
	browser   *console.Browser
	viewport  *Viewport
	filter    textInput
	filtering bool
	cursor    int
	loading   string
	width     int
	height    int
}

func NewTablesView(b *console.Browser) *TablesView {
	return &TablesView{browser: b, viewport: NewViewport(80, 20)}
}

func (v *TablesView) Name() string { return "Tables" }

func (v *TablesView) WantsTextInput() bool { return v.filtering }

func (v *TablesView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width, height-4)
}

func (v *TablesView) ShortHelp() []KeyBinding {
	s := v.browser.Snapshot()
	switch {
	case s.PendingDelete != "":
		return []KeyBinding{{Key: "y", Desc: "drop " + s.PendingDelete}, {Key: "n/Esc", Desc: "cancel"}}
	case v.filtering:
		return []KeyBinding{{Key: "Enter/Esc", Desc: "done"}, {Key: "Ctrl+U", Desc: "clear"}}
	case s.Tab == console.TabPreview:
		return []KeyBinding{{Key: "1/2/3", Desc: "50/100/500 rows"}, {Key: "d", Desc: "drop"}, {Key: "Esc", Desc: "back"}, {Key: "PgUp/PgDn", Desc: "scroll"}}
	default:
		return []KeyBinding{{Key: "Enter", Desc: "preview"}, {Key: "f", Desc: "filter"}, {Key: "d", Desc: "drop"}, {Key: "r", Desc: "refresh"}}
	}
}

func (v *TablesView) Init() tea.Cmd {
	return v.refresh()
}

func (v *TablesView) refresh() tea.Cmd {
	v.loading = "loading tables"
	return func() tea.Msg {
		return TablesMsg{Err: v.browser.Refresh(context.Background())}
	}
}

func (v *TablesView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case TablesMsg:
		v.loading = ""
		if n := len(v.browser.Visible()); v.cursor >= n {
			v.cursor = max(n-1, 0)
		}

	case PreviewMsg:
		v.loading = ""
		v.renderPreview()

	case DeleteMsg:
		v.loading = ""
		if n := len(v.browser.Visible()); v.cursor >= n {
			v.cursor = max(n-1, 0)
		}
		v.renderPreview()

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *TablesView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	s := v.browser.Snapshot()

	if s.PendingDelete != "" {
		switch msg.String() {
		case "y", "Y":
			v.loading = "dropping " + s.PendingDelete
			return v, func() tea.Msg {
				return DeleteMsg{Err: v.browser.ConfirmDelete(context.Background())}
			}
		case "n", "N", "esc":
			v.browser.CancelDelete()
		}
		return v, nil
	}

	if v.filtering {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			v.filtering = false
		default:
			v.filter.handle(msg)
			v.browser.Filter(v.filter.value)
			v.cursor = 0
		}
		return v, nil
	}

	if s.Tab == console.TabPreview {
		if v.viewport.ScrollKey(msg.String()) {
			return v, nil
		}
		switch msg.String() {
		case "esc", "b", "backspace":
			v.browser.ShowList()
		case "1", "2", "3":
			limit := console.PreviewLimits[msg.String()[0]-'1']
			return v, v.preview(s.Previewed, limit)
		case "d":
			_ = v.browser.RequestDelete(s.Previewed)
		case "r":
			return v, v.preview(s.Previewed, s.Limit)
		}
		return v, nil
	}

	visible := s.Visible()
	switch msg.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(visible)-1 {
			v.cursor++
		}
	case "f":
		v.filtering = true
	case "r":
		return v, v.refresh()
	case "enter":
		if v.cursor < len(visible) {
			return v, v.preview(visible[v.cursor], console.DefaultPreviewLimit)
		}
	case "d":
		if v.cursor < len(visible) {
			_ = v.browser.RequestDelete(visible[v.cursor])
		}
	}
	return v, nil
}

func (v *TablesView) preview(name string, limit int) tea.Cmd {
	v.loading = fmt.Sprintf("loading %s", name)
	return func() tea.Msg {
		return PreviewMsg{Table: name, Report: v.browser.Preview(context.Background(), name, limit)}
	}
}

func (v *TablesView) renderPreview() {
	s := v.browser.Snapshot()
	if s.Previewed == "" {
		v.viewport.SetContentLines(nil)
		return
	}
	var lines []string
	lines = append(lines, StyleTitle.UnsetMarginBottom().Render("Schema"))
	if s.SchemaErr != "" {
		lines = append(lines, StyleError.Render("  "+s.SchemaErr))
	}
	for _, l := range strings.Split(s.Schema, "\n") {
		if l != "" {
			lines = append(lines, "  "+l)
		}
	}
	lines = append(lines, "", StyleTitle.UnsetMarginBottom().Render(fmt.Sprintf("Rows (limit %d)", s.Limit)))
	if s.PreviewErr != "" {
		lines = append(lines, StyleError.Render("  "+s.PreviewErr))
	} else {
		lines = append(lines, formatResult(s.Preview)...)
	}
	v.viewport.Home()
	v.viewport.SetContentLines(lines)
}

func (v *TablesView) View() string {
	s := v.browser.Snapshot()

	var header string
	if s.Tab == console.TabPreview {
		header = StyleBold.Render(s.Previewed) + StyleDimmed.Render("  ← Esc for the list")
	} else {
		header = StyleBold.Render("Tables") + StyleDimmed.Render(fmt.Sprintf(" (%d)", len(s.Tables)))
		if v.filtering || v.filter.value != "" {
			header += "   " + renderInput("Filter", v.filter, v.filtering, v.width/2)
		}
	}

	var status string
	switch {
	case s.PendingDelete != "":
		status = StyleWarning.Render(fmt.Sprintf("Drop table %s? This cannot be undone. [y/N]", s.PendingDelete))
	case v.loading != "":
		status = StyleDimmed.Render("⏳ " + v.loading + "...")
	}

	var body string
	if s.Tab == console.TabPreview {
		body = v.viewport.Render()
	} else {
		body = v.renderList(s.Visible())
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, status, body)
}

func (v *TablesView) renderList(visible []string) string {
	if len(visible) == 0 {
		return StyleDimmed.Render("  no tables")
	}
	listH := v.height - 3
	start := 0
	if listH > 0 && v.cursor >= listH {
		start = v.cursor - listH + 1
	}
	var lines []string
	for i := start; i < len(visible) && i-start < listH; i++ {
		if i == v.cursor {
			lines = append(lines, StyleListItemActive.Render(" ► "+visible[i]+" "))
		} else {
			lines = append(lines, "   "+visible[i])
		}
	}
	return strings.Join(lines, "\n")
}
