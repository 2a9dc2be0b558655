package tui

import (
	"fmt"

	"github.com/DachengChen/nlsql/applog"
	"github.com/DachengChen/nlsql/config"
	"github.com/DachengChen/nlsql/console"
	"github.com/DachengChen/nlsql/store"
	tea "github.com/charmbracelet/bubbletea"
)

// Start opens the profile and history stores and launches the TUI.
func Start(cfg *config.Config, version string) error {
	profiles, err := config.NewProfileStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	st, err := store.Open(cfg.StatePath())
	if err != nil {
		return fmt.Errorf("failed to open local state: %w", err)
	}
	defer st.Close()

	history, err := console.LoadHistory(st)
	if err != nil {
		// Keep going with whatever was readable; new runs still persist.
		applog.Warn("%v", err)
	}

	app := NewApp(*cfg, profiles, history, version)
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
