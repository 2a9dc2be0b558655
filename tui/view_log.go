// view_log.go: notice history.
//
// The status bar only shows the latest notice; this tab keeps the recent
// ones (uploads, imports, failed queries, config refresh warnings) with
// their time, newest at the bottom. The full record is in the log file.
package tui

import (
	"fmt"

	"github.com/DachengChen/nlsql/console"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type LogView struct {
	notices  *console.NoticeLog
	logPath  string
	viewport *Viewport
	width    int
	height   int
}

func NewLogView(notices *console.NoticeLog, logPath string) *LogView {
	v := &LogView{notices: notices, logPath: logPath, viewport: NewViewport(80, 20)}
	v.viewport.SetFollow(true)
	return v
}

func (v *LogView) Name() string         { return "Log" }
func (v *LogView) WantsTextInput() bool { return false }

func (v *LogView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width-2, height-3)
}

func (v *LogView) ShortHelp() []KeyBinding {
	return []KeyBinding{
		{Key: "c", Desc: "clear"},
		{Key: "PgUp/PgDn", Desc: "scroll"},
	}
}

func (v *LogView) Init() tea.Cmd { return nil }

// Clear implements clearer.
func (v *LogView) Clear() tea.Cmd {
	v.notices.Clear()
	return nil
}

func (v *LogView) Update(msg tea.Msg) (View, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if v.viewport.ScrollKey(msg.String()) {
			return v, nil
		}
		if msg.String() == "c" {
			return v, v.Clear()
		}
	}
	return v, nil
}

func (v *LogView) View() string {
	all := v.notices.All()
	lines := make([]string, 0, len(all))
	for _, n := range all {
		style := noticeStyle(n.Level)
		lines = append(lines, fmt.Sprintf("%s %s %s",
			StyleDimmed.Render(n.Time.Format("15:04:05")),
			style.Render(noticeIcon(n.Level)),
			style.Render(n.Text)))
	}
	if len(lines) == 0 {
		lines = append(lines, StyleDimmed.Render("Nothing yet."))
	}
	v.viewport.SetContentLines(lines)

	header := StyleBold.Render("Notices") + StyleDimmed.Render("  full log: "+v.logPath)
	return lipgloss.JoinVertical(lipgloss.Left, header, "", v.viewport.Render())
}
