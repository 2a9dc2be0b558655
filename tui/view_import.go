// view_import.go: Excel import wizard.
//
// Walks the console.Wizard through its steps: type a workbook path and
// upload it, pick a sheet and a table name, load the preview table, then
// confirm. Each backend action runs as a tea.Cmd and reports back with a
// WizardMsg; the view re-reads the wizard snapshot to render.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/DachengChen/nlsql/console"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	importFocusSheets = iota
	importFocusTable
)

// ImportView drives the import wizard.
type ImportView struct {
	wizard   *console.Wizard
	path     textInput
	table    textInput
	sheetIdx int
	focus    int
	running  string // action in flight, for the spinner line
	viewport *Viewport
	width    int
	height   int
}

// NewImportView creates the view at the upload step.
func NewImportView(w *console.Wizard) *ImportView {
	return &ImportView{wizard: w, viewport: NewViewport(80, 10)}
}

func (v *ImportView) Name() string { return "Import" }

func (v *ImportView) Init() tea.Cmd { return nil }

func (v *ImportView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width, height-12)
}

func (v *ImportView) WantsTextInput() bool {
	switch v.wizard.Snapshot().Step {
	case console.StepUpload:
		return true
	case console.StepSelectSheet, console.StepPreview:
		return v.focus == importFocusTable
	}
	return false
}

func (v *ImportView) ShortHelp() []KeyBinding {
	switch v.wizard.Snapshot().Step {
	case console.StepUpload:
		return []KeyBinding{{Key: "Enter", Desc: "upload"}, {Key: "Ctrl+U", Desc: "clear"}}
	case console.StepSelectSheet:
		return []KeyBinding{{Key: "↑/↓", Desc: "sheet"}, {Key: "Tab", Desc: "table name"}, {Key: "Enter", Desc: "preview"}, {Key: "Ctrl+R", Desc: "start over"}}
	case console.StepPreview:
		return []KeyBinding{{Key: "Enter", Desc: "preview again"}, {Key: "Ctrl+S", Desc: "confirm import"}, {Key: "PgUp/PgDn", Desc: "scroll"}, {Key: "Ctrl+R", Desc: "start over"}}
	default:
		return []KeyBinding{{Key: "Enter", Desc: "new import"}}
	}
}

// Clear implements clearer.
func (v *ImportView) Clear() tea.Cmd {
	v.reset()
	return nil
}

func (v *ImportView) reset() {
	v.wizard.Reset()
	v.path = textInput{}
	v.table = textInput{}
	v.sheetIdx = 0
	v.focus = importFocusSheets
	v.running = ""
}

func (v *ImportView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case WizardMsg:
		v.running = ""
		if msg.Err == nil && msg.Action == "upload" {
			s := v.wizard.Snapshot()
			v.sheetIdx = 0
			v.focus = importFocusSheets
			if v.table.value == "" {
				v.table.value = console.SuggestTableName(s.FileName)
			}
		}
		v.refreshPreview()
		return v, nil

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *ImportView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	if msg.String() == "ctrl+r" {
		v.reset()
		v.refreshPreview()
		return v, nil
	}
	if v.running != "" {
		return v, nil
	}

	s := v.wizard.Snapshot()
	switch s.Step {
	case console.StepUpload:
		if msg.Type == tea.KeyEnter {
			return v, v.upload()
		}
		v.path.handle(msg)

	case console.StepSelectSheet, console.StepPreview:
		if v.viewport.ScrollKey(msg.String()) {
			return v, nil
		}
		switch msg.String() {
		case "enter":
			return v, v.preview()
		case "ctrl+s":
			if s.Step == console.StepPreview {
				return v, v.confirm()
			}
			return v, nil
		case "tab", "shift+tab":
			v.focus = 1 - v.focus
			return v, nil
		case "esc":
			v.focus = importFocusSheets
			return v, nil
		}
		if v.focus == importFocusTable {
			v.table.handle(msg)
			return v, nil
		}
		switch msg.String() {
		case "up", "k":
			if v.sheetIdx > 0 {
				v.sheetIdx--
			}
		case "down", "j":
			if v.sheetIdx < len(s.Sheets)-1 {
				v.sheetIdx++
			}
		}

	case console.StepDone:
		if msg.String() == "enter" || msg.String() == "n" {
			v.reset()
			v.refreshPreview()
		}
	}
	return v, nil
}

func (v *ImportView) upload() tea.Cmd {
	path := expandPath(strings.TrimSpace(v.path.value))
	v.running = "uploading " + path
	return func() tea.Msg {
		return WizardMsg{Action: "upload", Err: v.wizard.Upload(context.Background(), path)}
	}
}

func (v *ImportView) preview() tea.Cmd {
	s := v.wizard.Snapshot()
	sheet := ""
	if v.sheetIdx < len(s.Sheets) {
		sheet = s.Sheets[v.sheetIdx]
	}
	table := v.table.value
	v.running = fmt.Sprintf("loading %s into %s%s", sheet, console.PreviewPrefix, strings.TrimSpace(table))
	return func() tea.Msg {
		return WizardMsg{Action: "preview", Err: v.wizard.Preview(context.Background(), sheet, table)}
	}
}

func (v *ImportView) confirm() tea.Cmd {
	s := v.wizard.Snapshot()
	v.running = "importing into " + s.Table
	return func() tea.Msg {
		return WizardMsg{Action: "confirm", Err: v.wizard.Confirm(context.Background())}
	}
}

// refreshPreview fills the scrollable pane with the preview or the
// final import result.
func (v *ImportView) refreshPreview() {
	s := v.wizard.Snapshot()
	res := s.Preview
	if s.Step == console.StepDone {
		res = s.Result
	}
	if res == nil {
		v.viewport.SetContentLines(nil)
		return
	}

	lines := []string{
		StyleBold.Render(res.TableName) + StyleDimmed.Render(fmt.Sprintf("  %d rows, %d columns", res.RowCount, res.ColumnCount)),
		"",
	}
	if len(res.NormalizedColumns) > 0 {
		lines = append(lines, StyleTitle.UnsetMarginBottom().Render("Columns"))
		for i, col := range res.NormalizedColumns {
			orig := ""
			if i < len(res.OriginalColumns) && res.OriginalColumns[i] != col {
				orig = StyleDimmed.Render("  ← " + res.OriginalColumns[i])
			}
			lines = append(lines, "  "+col+orig)
		}
		lines = append(lines, "")
	}
	if res.CreateStatement != "" {
		lines = append(lines, StyleTitle.UnsetMarginBottom().Render("Create statement"))
		for _, l := range strings.Split(res.CreateStatement, "\n") {
			lines = append(lines, "  "+l)
		}
	}
	v.viewport.SetContentLines(lines)
}

func (v *ImportView) View() string {
	s := v.wizard.Snapshot()

	sections := []string{v.renderSteps(s.Step), ""}

	switch s.Step {
	case console.StepUpload:
		sections = append(sections,
			renderInput("Workbook", v.path, true, v.width),
			StyleDimmed.Render(fmt.Sprintf("  .xlsx or .xls, smaller than %s", formatSize(console.MaxUploadSize))),
		)

	case console.StepSelectSheet, console.StepPreview:
		sections = append(sections,
			StyleDimmed.Render("File        ")+s.FileName+StyleDimmed.Render(fmt.Sprintf("  %s  → %s", formatSize(s.FileSize), s.ServerPath)),
			"",
			v.renderSheets(s.Sheets),
			renderInput("Table", v.table, v.focus == importFocusTable, v.width),
			StyleDimmed.Render("  preview goes to "+console.PreviewPrefix+strings.TrimSpace(v.table.value)),
		)

	case console.StepDone:
		line := StyleSuccess.Render(fmt.Sprintf("✓ Imported %d rows into %s", s.Result.RowCount, s.Result.TableName))
		if !s.ConfigRefreshed {
			line += "\n" + StyleWarning.Render("! The backend did not reload its table config; new tables may not be queryable yet.")
		}
		sections = append(sections, line)
	}

	if v.running != "" {
		sections = append(sections, "", StyleDimmed.Render("⏳ "+v.running+"..."))
	}
	if out := v.viewport.Render(); out != "" {
		sections = append(sections, "", out)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *ImportView) renderSteps(cur console.Step) string {
	labels := []struct {
		step  console.Step
		label string
	}{
		{console.StepUpload, "1 Upload"},
		{console.StepSelectSheet, "2 Sheet"},
		{console.StepPreview, "3 Preview"},
		{console.StepDone, "4 Done"},
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		switch {
		case l.step == cur:
			parts[i] = StyleTabActive.Render(l.label)
		case l.step < cur:
			parts[i] = StyleSuccess.Padding(0, 1).Render(l.label)
		default:
			parts[i] = StyleTabInactive.Render(l.label)
		}
	}
	return strings.Join(parts, StyleDimmed.Render("›"))
}

func (v *ImportView) renderSheets(sheets []string) string {
	lines := []string{StyleDimmed.Render("Sheets")}
	for i, name := range sheets {
		switch {
		case i == v.sheetIdx && v.focus == importFocusSheets:
			lines = append(lines, StyleListItemActive.Render(" ► "+name+" "))
		case i == v.sheetIdx:
			lines = append(lines, lipgloss.NewStyle().Foreground(ColorAccent).Render(" ► "+name))
		default:
			lines = append(lines, "   "+name)
		}
	}
	return strings.Join(lines, "\n")
}
