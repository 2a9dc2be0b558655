package tui

import (
	"context"
	"testing"
	"time"

	"github.com/DachengChen/nlsql/apitest"
	"github.com/DachengChen/nlsql/backend"
	"github.com/DachengChen/nlsql/config"
	"github.com/DachengChen/nlsql/console"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "f3":
		return tea.KeyMsg{Type: tea.KeyF3}
	case "f6":
		return tea.KeyMsg{Type: tea.KeyF6}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeKeys(a *App, s string) {
	for _, r := range s {
		a.Update(key(string(r)))
	}
}

func connectedApp(t *testing.T) (*App, *apitest.Server) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)

	cfg := config.Config{APIURL: srv.URL, Timeout: time.Second, DataDir: t.TempDir(), LogLevel: "info"}
	profiles, err := config.NewProfileStore(cfg.DataDir)
	require.NoError(t, err)
	history, err := console.LoadHistory(nil)
	require.NoError(t, err)

	a := NewApp(cfg, profiles, history, "test")
	a.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	assert.Contains(t, ansi.Strip(a.View()), "nlsql")

	conn, err := backend.Connect(context.Background(), cfg)
	require.NoError(t, err)
	a.Update(ConnectedMsg{Conn: conn, Cfg: cfg, Profile: "local"})
	t.Cleanup(a.Close)
	return a, srv
}

func TestAppConnect(t *testing.T) {
	a, _ := connectedApp(t)

	assert.Equal(t, PhaseMain, a.phase)
	require.Len(t, a.views, 6)
	assert.Equal(t, TabImport, a.activeTab)

	out := ansi.Strip(a.View())
	assert.Contains(t, out, "F1 Import")
	assert.Contains(t, out, "F6 Log")
	assert.Contains(t, out, "local")
}

func TestAppTypingGoesToTextFields(t *testing.T) {
	a, _ := connectedApp(t)

	// The import path field has focus, so ':' and '?' are text.
	typeKeys(a, ":?")
	assert.Equal(t, ModeNormal, a.mode)
	assert.False(t, a.showHelp)
	assert.Equal(t, ":?", a.views[TabImport].(*ImportView).path.value)
}

func TestAppCommands(t *testing.T) {
	a, _ := connectedApp(t)

	a.Update(key("f6"))
	assert.Equal(t, TabLog, a.activeTab)

	a.notices.Notify(console.Notice{Level: console.LevelWarning, Text: "table list is stale", Time: time.Now()})
	assert.Contains(t, ansi.Strip(a.renderStatusBar()), "table list is stale")

	typeKeys(a, ":clear")
	assert.Equal(t, ModeCommand, a.mode)
	a.Update(key("enter"))
	assert.Equal(t, ModeNormal, a.mode)
	assert.Empty(t, a.notices.All())

	typeKeys(a, "/sq")
	a.Update(key("enter"))
	assert.Equal(t, TabSQL, a.activeTab)

	a.Update(key("f6"))
	typeKeys(a, ":bogus")
	a.Update(key("enter"))
	assert.Equal(t, "unknown command: bogus", a.statusMsg)

	typeKeys(a, ":disconnect")
	a.Update(key("enter"))
	assert.Equal(t, PhaseConnect, a.phase)
	assert.Nil(t, a.conn)
	assert.Nil(t, a.views)
}

func TestAppHelpToggle(t *testing.T) {
	a, _ := connectedApp(t)
	a.Update(key("f6"))

	a.Update(key("?"))
	assert.True(t, a.showHelp)
	assert.Contains(t, ansi.Strip(a.View()), "keyboard shortcuts")
	a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, a.showHelp)
}
