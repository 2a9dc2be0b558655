package console

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DachengChen/nlsql/api"
	"github.com/DachengChen/nlsql/errs"
	"github.com/google/uuid"
)

// SQLDebugState is a copy of the SQL editor state.
type SQLDebugState struct {
	Editor string
	Result *api.ResultSet
	Error  string
	Busy   bool
	// Replayed is the id of the history entry on display, if any.
	Replayed string
}

// SQLDebug executes hand-written SQL and keeps a durable trail of runs.
type SQLDebug struct {
	backend SQLBackend
	history *History
	note    notifier

	mu    sync.Mutex
	state SQLDebugState
}

// NewSQLDebug creates the controller over an already loaded history.
func NewSQLDebug(backend SQLBackend, history *History, sink Notifier) *SQLDebug {
	if history == nil {
		history = &History{}
	}
	return &SQLDebug{backend: backend, history: history, note: notifier{category: "sql", sink: sink}}
}

// History returns the run history.
func (d *SQLDebug) History() *History { return d.history }

// Snapshot returns a copy of the editor state.
func (d *SQLDebug) Snapshot() SQLDebugState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetEditor replaces the editor text.
func (d *SQLDebug) SetEditor(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Editor = text
}

// Execute runs sql and records the attempt, successful or not, as the
// newest history entry.
func (d *SQLDebug) Execute(ctx context.Context, sql string) error {
	const op = "sql.execute"

	if strings.TrimSpace(sql) == "" {
		err := errs.Validationf(op, "enter a SQL statement")
		d.note.fail("", err)
		return err
	}

	d.mu.Lock()
	if d.state.Busy {
		d.mu.Unlock()
		err := errs.Statef(op, "a statement is still running")
		d.note.fail("", err)
		return err
	}
	d.state.Busy = true
	d.state.Editor = sql
	d.mu.Unlock()

	rs, execErr := d.backend.ExecuteRawSQL(ctx, sql)

	entry := HistoryEntry{
		ID:        uuid.NewString(),
		SQL:       sql,
		Success:   execErr == nil,
		Result:    rs,
		Timestamp: time.Now(),
	}
	if execErr != nil {
		entry.Error = errs.Message(execErr)
	}

	d.mu.Lock()
	d.state = SQLDebugState{Editor: sql, Result: rs, Error: entry.Error, Replayed: entry.ID}
	d.mu.Unlock()

	if execErr != nil {
		d.note.fail("execution failed", execErr)
	} else {
		d.note.success(fmt.Sprintf("returned %d rows", len(rs.Rows)))
	}

	if err := d.history.Push(entry); err != nil {
		d.note.warn("could not save SQL history: " + err.Error())
	}
	return execErr
}

// LoadFromHistory shows a past run in the editor and result panes
// without executing it again.
func (d *SQLDebug) LoadFromHistory(id string) error {
	e, ok := d.history.Get(id)
	if !ok {
		return errs.Validationf("sql.replay", "history entry %s not found", id)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Busy {
		return errs.Statef("sql.replay", "a statement is still running")
	}
	d.state = SQLDebugState{Editor: e.SQL, Result: e.Result, Error: e.Error, Replayed: e.ID}
	return nil
}

// ClearHistory empties the history and its stored copy.
func (d *SQLDebug) ClearHistory() error {
	if err := d.history.Clear(); err != nil {
		d.note.warn("could not clear SQL history: " + err.Error())
		return err
	}
	d.note.info("SQL history cleared")
	return nil
}

// ClearEditor empties the editor, result and error panes.
func (d *SQLDebug) ClearEditor() {
	d.mu.Lock()
	defer d.mu.Unlock()
	busy := d.state.Busy
	d.state = SQLDebugState{Busy: busy}
}
