// app.go is the top-level Bubble Tea model that orchestrates all views.
//
// Flow:
//  1. Start with ConnectView (backend / profile form)
//  2. On a successful health check → switch to the main tabbed view
//  3. User can disconnect and return to the connection screen
//
// Key design decisions:
//   - Two phases: "connecting" and "connected"
//   - F1..F6 switch tabs from anywhere; `/` jumps to a tab by name
//   - Command mode (`:`) for :quit, :disconnect, :clear
//   - Help overlay (`?`) toggled on/off
//   - Controller notices are shown in the status bar, colored by level
//   - Async results are delivered to every view, so a tab that was left
//     while its request ran still picks up the outcome
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/DachengChen/nlsql/applog"
	"github.com/DachengChen/nlsql/backend"
	"github.com/DachengChen/nlsql/config"
	"github.com/DachengChen/nlsql/console"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Tab indices for connected mode.
const (
	TabImport = iota
	TabAsk
	TabSQL
	TabTables
	TabSettings
	TabLog
)

// noticeTTL is how long a notice replaces the key help in the status bar.
const noticeTTL = 8 * time.Second

// AppPhase tracks whether we're connecting or already connected.
type AppPhase int

const (
	PhaseConnect AppPhase = iota
	PhaseMain
)

// InputMode determines what keystrokes do in main phase.
type InputMode int

const (
	ModeNormal InputMode = iota
	ModeCommand
	ModeJump
)

// App is the root Bubble Tea model.
type App struct {
	version string

	// Phase management
	phase       AppPhase
	connectView *ConnectView
	cfg         config.Config

	// Session state, kept across reconnects
	notices *console.NoticeLog
	history *console.History

	// Connected state
	views     []View
	activeTab int
	conn      *backend.Conn
	active    config.Config
	profile   string

	// UI state
	width     int
	height    int
	mode      InputMode
	cmdInput  string
	showHelp  bool
	statusMsg string
	now       func() time.Time
}

// NewApp creates the application starting with the connection screen.
// history is shared by every session of this process.
func NewApp(cfg config.Config, profiles *config.ProfileStore, history *console.History, version string) *App {
	return &App{
		version:     version,
		phase:       PhaseConnect,
		connectView: NewConnectView(cfg, profiles),
		cfg:         cfg,
		notices:     console.NewNoticeLog(200),
		history:     history,
		now:         time.Now,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.connectView.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case ConnectedMsg:
		a.conn = msg.Conn
		a.active = msg.Cfg
		a.profile = msg.Profile
		a.phase = PhaseMain
		a.initViews()
		a.resize()
		a.connectView.Update(msg)
		applog.Info("session opened: %s (profile %q)", msg.Conn.URL, msg.Profile)
		return a, a.views[a.activeTab].Init()

	case ConnectErrorMsg:
		applog.Warn("connect failed: %v", msg.Err)
		updated, cmd := a.connectView.Update(msg)
		a.connectView = updated.(*ConnectView)
		return a, cmd
	}

	if a.phase == PhaseConnect {
		return a.updateConnect(msg)
	}
	return a.updateMain(msg)
}

// resize hands the content area to the views.
// Chrome: header(1) + border(2) + status bar(1).
func (a *App) resize() {
	contentW := a.width - 2
	contentH := a.height - 4
	if a.phase == PhaseConnect {
		a.connectView.SetSize(contentW, contentH)
		return
	}
	for _, v := range a.views {
		v.SetSize(contentW, contentH)
	}
}

func (a *App) updateConnect(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" {
		return a, tea.Quit
	}
	updated, cmd := a.connectView.Update(msg)
	a.connectView = updated.(*ConnectView)
	return a, cmd
}

func (a *App) updateMain(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		return a.handleKey(key)
	}

	var cmds []tea.Cmd
	for i, v := range a.views {
		updated, cmd := v.Update(msg)
		a.views[i] = updated
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

// initViews creates the controllers and tabs for a fresh session.
func (a *App) initViews() {
	client := a.conn.Client
	a.views = []View{
		NewImportView(console.NewWizard(client, a.notices)),
		NewAskView(console.NewPipeline(client, a.notices)),
		NewSQLView(console.NewSQLDebug(client, a.history, a.notices)),
		NewTablesView(console.NewBrowser(client, a.notices)),
		NewSettingsView(console.NewSettings(client, a.notices)),
		NewLogView(a.notices, applog.FilePath(a.cfg.DataDir)),
	}
	a.activeTab = TabImport
}

// handleKey processes keyboard input in main phase.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.mode {
	case ModeCommand:
		return a.handleCommandMode(msg)
	case ModeJump:
		return a.handleJumpMode(msg)
	default:
		return a.handleNormalMode(msg)
	}
}

func (a *App) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c":
		return a, tea.Quit
	case "f1", "f2", "f3", "f4", "f5", "f6":
		return a.switchTab(int(key[1] - '1'))
	}
	a.statusMsg = ""

	// When the active view is accepting text input, everything else is
	// typed into it.
	if !a.views[a.activeTab].WantsTextInput() {
		switch key {
		case ":":
			a.mode = ModeCommand
			a.cmdInput = ""
			return a, nil
		case "/":
			a.mode = ModeJump
			a.cmdInput = ""
			return a, nil
		case "?":
			a.showHelp = !a.showHelp
			return a, nil
		case "esc":
			if a.showHelp {
				a.showHelp = false
				return a, nil
			}
		}
	}

	updated, cmd := a.views[a.activeTab].Update(msg)
	a.views[a.activeTab] = updated
	return a, cmd
}

func (a *App) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		cmd := a.executeCommand(a.cmdInput)
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, cmd
	case tea.KeyEsc:
		a.mode = ModeNormal
		a.cmdInput = ""
	case tea.KeyBackspace:
		if len(a.cmdInput) > 0 {
			a.cmdInput = a.cmdInput[:len(a.cmdInput)-1]
		}
	case tea.KeyRunes, tea.KeySpace:
		a.cmdInput += msg.String()
	}
	return a, nil
}

func (a *App) handleJumpMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		idx, ok := a.findView(a.cmdInput)
		a.mode = ModeNormal
		a.cmdInput = ""
		if !ok {
			return a, nil
		}
		return a.switchTab(idx)
	case tea.KeyEsc:
		a.mode = ModeNormal
		a.cmdInput = ""
	case tea.KeyBackspace:
		if len(a.cmdInput) > 0 {
			a.cmdInput = a.cmdInput[:len(a.cmdInput)-1]
		}
	case tea.KeyRunes:
		a.cmdInput += msg.String()
	}
	return a, nil
}

func (a *App) switchTab(idx int) (tea.Model, tea.Cmd) {
	if idx < 0 || idx >= len(a.views) {
		return a, nil
	}
	a.activeTab = idx
	a.showHelp = false
	return a, a.views[a.activeTab].Init()
}

func (a *App) findView(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, false
	}
	for i, v := range a.views {
		if strings.HasPrefix(strings.ToLower(v.Name()), name) {
			return i, true
		}
	}
	a.statusMsg = "view not found: " + name
	return 0, false
}

func (a *App) executeCommand(input string) tea.Cmd {
	input = strings.TrimSpace(input)
	switch input {
	case "q", "quit":
		return tea.Quit
	case "disconnect":
		a.disconnect()
		return nil
	case "clear":
		if c, ok := a.views[a.activeTab].(clearer); ok {
			return c.Clear()
		}
		a.statusMsg = "nothing to clear here"
		return nil
	case "":
		return nil
	default:
		if idx, ok := a.findView(input); ok {
			a.statusMsg = ""
			_, cmd := a.switchTab(idx)
			return cmd
		}
		a.statusMsg = "unknown command: " + input
		return nil
	}
}

func (a *App) disconnect() {
	if a.conn != nil {
		applog.Info("session closed: %s", a.conn.URL)
		a.conn.Close()
		a.conn = nil
	}
	a.phase = PhaseConnect
	a.views = nil
	a.activeTab = 0
	a.statusMsg = ""
	a.showHelp = false
	a.resize()
}

// Close releases the session, if one is open.
func (a *App) Close() {
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}

	header := a.renderHeader()
	frame := StyleBorder.
		Width(a.width - 2).
		Height(max(a.height-4, 0))

	if a.phase == PhaseConnect {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			frame.Render(a.connectView.View()),
			a.renderHelpBar(a.connectView.ShortHelp()))
	}

	var content string
	if a.showHelp {
		content = a.renderHelp()
	} else {
		content = a.views[a.activeTab].View()
	}
	return header + "\n" + frame.Render(content) + "\n" + a.renderStatusBar()
}

// renderHeader draws logo, version, the tab bar and the backend address.
func (a *App) renderHeader() string {
	left := StyleBold.Render("◆ nlsql") + StyleDimmed.Render(" v"+a.version)

	if a.phase == PhaseMain {
		var tabs []string
		for i, v := range a.views {
			label := fmt.Sprintf("F%d %s", i+1, v.Name())
			if i == a.activeTab {
				tabs = append(tabs, StyleTabActive.Render(label))
			} else {
				tabs = append(tabs, StyleTabInactive.Render(label))
			}
		}
		left += "  " + strings.Join(tabs, "")
	}

	var right string
	if a.phase == PhaseMain && a.conn != nil {
		label := a.profile
		if label == "" {
			label = "direct"
		}
		via := ""
		if a.conn.Tunnel != nil {
			via = " via ssh"
		}
		right = StyleSuccess.Render(fmt.Sprintf("⚡ %s (%s%s)", label, a.conn.URL, via))
	} else {
		right = StyleDimmed.Render(fmt.Sprintf("%d×%d", a.width, a.height))
	}

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().
		Width(a.width).
		MaxHeight(1).
		Render(left + strings.Repeat(" ", gap) + right)
}

func (a *App) renderHelpBar(help []KeyBinding) string {
	var parts []string
	for _, h := range help {
		parts = append(parts, StyleHelpKey.Render(h.Key)+" "+StyleHelpDesc.Render(h.Desc))
	}
	return lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Render(strings.Join(parts, StyleDimmed.Render("  │  ")))
}

func (a *App) renderStatusBar() string {
	var content string

	switch a.mode {
	case ModeCommand:
		content = StylePrompt.Render(":") + a.cmdInput + "█"
	case ModeJump:
		content = StylePrompt.Render("/") + a.cmdInput + "█"
	default:
		if a.statusMsg != "" {
			content = StyleWarning.Render(a.statusMsg)
		} else if n, ok := a.notices.Latest(); ok && a.now().Sub(n.Time) < noticeTTL && n.Level != console.LevelInfo {
			style := noticeStyle(n.Level)
			content = style.Render(noticeIcon(n.Level) + " " + n.Text)
		} else {
			return a.renderHelpBar(a.getHelpItems())
		}
	}

	return StyleStatusBar.Width(a.width).MaxHeight(1).Render(content)
}

func (a *App) getHelpItems() []KeyBinding {
	global := []KeyBinding{
		{Key: "F1-F6", Desc: "tabs"},
		{Key: "?", Desc: "help"},
		{Key: "Ctrl+C", Desc: "quit"},
	}
	return append(a.views[a.activeTab].ShortHelp(), global...)
}

func (a *App) renderHelp() string {
	help := []string{
		StyleTitle.Render("nlsql keyboard shortcuts"),
		StyleHelpKey.Render("F1..F6") + "           Import, Ask, SQL, Tables, Settings, Log",
		StyleHelpKey.Render("/") + "                Jump to view by name",
		StyleHelpKey.Render(":") + "                Command mode",
		StyleHelpKey.Render("?") + "                Toggle this help",
		StyleHelpKey.Render("Ctrl+C") + "           Quit",
		"",
		StyleTitle.Render("In views"),
		StyleHelpKey.Render("Tab / Esc") + "        Move between a text field and its list",
		StyleHelpKey.Render("PgUp/PgDn") + "        Page up/down",
		StyleHelpKey.Render("Ctrl+J/K") + "         Scroll one line",
		StyleHelpKey.Render("Ctrl+H/L") + "         Scroll sideways",
		StyleHelpKey.Render("Ctrl+W") + "           Toggle wrapping",
		StyleHelpKey.Render("Ctrl+U") + "           Clear the text field",
		"",
		StyleTitle.Render("Commands"),
		StyleHelpKey.Render(":clear") + "           Clear the conversation, editor or notices",
		StyleHelpKey.Render(":disconnect") + "      Return to the connection screen",
		StyleHelpKey.Render(":quit") + "            Quit",
		"",
		StyleDimmed.Render("Press ? or Esc to close"),
	}

	return lipgloss.NewStyle().
		Width(a.width-4).
		Padding(1, 2).
		Render(strings.Join(help, "\n"))
}
