// messages.go defines Bubble Tea messages used for async communication.
//
// Every backend call runs inside a tea.Cmd; the controllers apply the
// result to their own state, so these messages only carry the outcome.
// Views re-read controller snapshots when they arrive, which keeps the
// UI from ever blocking on the network.
package tui

import (
	"time"

	"github.com/DachengChen/nlsql/backend"
	"github.com/DachengChen/nlsql/config"
	"github.com/DachengChen/nlsql/console"
)

// ConnectedMsg is sent when the backend answered the health check.
type ConnectedMsg struct {
	Conn    *backend.Conn
	Cfg     config.Config
	Profile string
}

// ConnectErrorMsg is sent when connection fails.
type ConnectErrorMsg struct {
	Err error
}

// WizardMsg is sent when an import wizard action completes.
type WizardMsg struct {
	Action string // upload, preview, confirm
	Err    error
}

// PipelineLoadMsg is sent when tables and models have been fetched.
type PipelineLoadMsg struct {
	Report console.LoadReport
}

// PipelineDoneMsg is sent when a submitted question has been answered.
type PipelineDoneMsg struct {
	Err error
}

// SQLDoneMsg is sent when a raw SQL statement completes.
type SQLDoneMsg struct {
	Err error
}

// TablesMsg is sent when the table list was refreshed.
type TablesMsg struct {
	Err error
}

// PreviewMsg is sent when a table preview (rows and schema) completes.
type PreviewMsg struct {
	Table  string
	Report console.PreviewReport
}

// DeleteMsg is sent when a table drop completes.
type DeleteMsg struct {
	Err error
}

// SettingsMsg is sent when backend settings were loaded or saved.
type SettingsMsg struct {
	Action string // load, model, chat, infer
	Err    error
}

// tickMsg redraws views that show a running request.
type tickMsg time.Time
