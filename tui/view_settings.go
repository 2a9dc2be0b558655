// view_settings.go: backend model config and prompt templates.
//
// Three sections: the model config (JSON, validated locally before it is
// posted) and the chat and infer prompt templates. Sections are read
// only until "e" opens the editor; Ctrl+S saves, Esc discards.
package tui

import (
	"context"
	"strings"

	"github.com/DachengChen/nlsql/api"
	"github.com/DachengChen/nlsql/console"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type settingsSection struct {
	key   string // "model" or a template kind
	label string
}

var settingsSections = []settingsSection{
	{"model", "Model config"},
	{api.TemplateChat, "Chat template"},
	{api.TemplateInfer, "Infer template"},
}

type SettingsView struct {
	settings *console.Settings
	viewport *Viewport
	section  int
	editing  bool
	editor   textInput
	loading  bool
	loaded   bool
	width    int
	height   int
}

func NewSettingsView(s *console.Settings) *SettingsView {
	return &SettingsView{settings: s, viewport: NewViewport(80, 20), editor: textInput{multiline: true}}
}

func (v *SettingsView) Name() string { return "Settings" }

func (v *SettingsView) WantsTextInput() bool { return v.editing }

func (v *SettingsView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width, height-4)
	v.render()
}

func (v *SettingsView) ShortHelp() []KeyBinding {
	if v.editing {
		return []KeyBinding{{Key: "Ctrl+S", Desc: "save"}, {Key: "Esc", Desc: "discard"}, {Key: "Enter", Desc: "newline"}}
	}
	return []KeyBinding{{Key: "←/→", Desc: "section"}, {Key: "e", Desc: "edit"}, {Key: "r", Desc: "reload"}, {Key: "PgUp/PgDn", Desc: "scroll"}}
}

func (v *SettingsView) Init() tea.Cmd {
	if v.loaded {
		return nil
	}
	v.loaded = true
	return v.load()
}

func (v *SettingsView) load() tea.Cmd {
	v.loading = true
	return func() tea.Msg {
		return SettingsMsg{Action: "load", Err: v.settings.Load(context.Background())}
	}
}

func (v *SettingsView) current() string {
	s := v.settings.Snapshot()
	if key := settingsSections[v.section].key; key != "model" {
		return s.Template(key)
	}
	return s.ModelConfig
}

func (v *SettingsView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case SettingsMsg:
		v.loading = false
		if msg.Action != "load" && msg.Err == nil {
			v.editing = false
		}
		v.render()

	case tea.KeyMsg:
		if v.editing {
			return v.handleEditing(msg)
		}
		if v.viewport.ScrollKey(msg.String()) {
			return v, nil
		}
		switch msg.String() {
		case "left", "h", "shift+tab":
			v.section = (v.section + len(settingsSections) - 1) % len(settingsSections)
		case "right", "l", "tab":
			v.section = (v.section + 1) % len(settingsSections)
		case "1", "2", "3":
			v.section = int(msg.String()[0] - '1')
		case "e", "enter":
			if v.settings.Snapshot().Loaded {
				v.editing = true
				v.editor.value = v.current()
			}
		case "r":
			return v, v.load()
		}
		v.viewport.Home()
		v.render()
	}
	return v, nil
}

func (v *SettingsView) handleEditing(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		v.editing = false
	case tea.KeyCtrlS:
		return v, v.save()
	case tea.KeyEnter:
		v.editor.value += "\n"
	default:
		v.editor.handle(msg)
	}
	v.render()
	v.viewport.End()
	return v, nil
}

func (v *SettingsView) save() tea.Cmd {
	if v.loading {
		return nil
	}
	key := settingsSections[v.section].key
	text := v.editor.value
	v.loading = true
	return func() tea.Msg {
		ctx := context.Background()
		if key == "model" {
			return SettingsMsg{Action: key, Err: v.settings.SaveModelConfig(ctx, text)}
		}
		return SettingsMsg{Action: key, Err: v.settings.SaveTemplate(ctx, key, text)}
	}
}

func (v *SettingsView) render() {
	if !v.settings.Snapshot().Loaded {
		v.viewport.SetContentLines([]string{StyleDimmed.Render("Settings not loaded. Press r to retry.")})
		return
	}
	text := v.current()
	if v.editing {
		text = v.editor.render(true)
	}
	lines := strings.Split(text, "\n")
	if settingsSections[v.section].key != "model" && !v.editing {
		lines = append(lines, "", StyleDimmed.Render("Placeholders such as {question} and {table_info} are filled in by the backend."))
	}
	v.viewport.SetContentLines(lines)
}

func (v *SettingsView) View() string {
	tabs := make([]string, len(settingsSections))
	for i, s := range settingsSections {
		if i == v.section {
			tabs[i] = StyleTabActive.Render(s.label)
		} else {
			tabs[i] = StyleTabInactive.Render(s.label)
		}
	}
	header := strings.Join(tabs, StyleDimmed.Render("│"))

	var status string
	switch {
	case v.loading:
		status = StyleDimmed.Render("⏳ working...")
	case v.editing:
		status = StyleWarning.Render("editing: Ctrl+S to save, Esc to discard")
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, status, v.viewport.Render())
}
