package console

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/DachengChen/nlsql/api"
	"github.com/DachengChen/nlsql/errs"
	"golang.org/x/sync/errgroup"
)

// DefaultPreviewLimit is the row limit of a plain preview.
const DefaultPreviewLimit = 50

// PreviewLimits are the limits offered as reload shortcuts.
var PreviewLimits = []int{DefaultPreviewLimit, 100, 500}

// BrowserTab is the pane the table browser shows.
type BrowserTab int

const (
	TabList BrowserTab = iota
	TabPreview
)

// BrowserState is a copy of the table browser state.
type BrowserState struct {
	Tables []string
	Filter string
	Tab    BrowserTab

	Previewed  string
	Limit      int
	Preview    *api.ResultSet
	PreviewErr string
	Schema     string
	SchemaErr  string

	PendingDelete string
}

// Visible returns the tables matching Filter, case-insensitively.
func (s BrowserState) Visible() []string {
	return filterTables(s.Tables, s.Filter)
}

func filterTables(tables []string, filter string) []string {
	f := strings.ToLower(strings.TrimSpace(filter))
	if f == "" {
		return append([]string(nil), tables...)
	}
	var out []string
	for _, t := range tables {
		if strings.Contains(strings.ToLower(t), f) {
			out = append(out, t)
		}
	}
	return out
}

// PreviewReport carries the independent outcome of both preview calls.
type PreviewReport struct {
	DataErr   error
	SchemaErr error
}

// Browser lists, filters, previews and deletes tables.
type Browser struct {
	backend BrowserBackend
	note    notifier

	mu    sync.Mutex
	state BrowserState
}

// NewBrowser creates a browser on the list tab.
func NewBrowser(backend BrowserBackend, sink Notifier) *Browser {
	return &Browser{backend: backend, note: notifier{category: "tables", sink: sink}}
}

// Snapshot returns a copy of the browser state.
func (b *Browser) Snapshot() BrowserState {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.state
	s.Tables = append([]string(nil), b.state.Tables...)
	return s
}

// Refresh reloads the table names.
func (b *Browser) Refresh(ctx context.Context) error {
	tables, err := b.backend.ListTables(ctx)
	if err != nil {
		b.note.fail("loading tables failed", err)
		return err
	}
	b.mu.Lock()
	b.state.Tables = tables
	b.mu.Unlock()
	return nil
}

// Filter sets the name filter.
func (b *Browser) Filter(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Filter = text
}

// Visible returns the tables matching the current filter.
func (b *Browser) Visible() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return filterTables(b.state.Tables, b.state.Filter)
}

// ShowList switches back to the list tab, keeping the preview.
func (b *Browser) ShowList() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Tab = TabList
}

// Preview fetches up to limit rows and the schema of name concurrently.
// The preview tab opens once both calls have returned and at least one
// of them succeeded.
func (b *Browser) Preview(ctx context.Context, name string, limit int) PreviewReport {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}

	var (
		report PreviewReport
		rows   *api.ResultSet
		schema *api.TableSchema
		g      errgroup.Group
	)
	g.Go(func() error {
		rows, report.DataErr = b.backend.PreviewTable(ctx, name, limit)
		return nil
	})
	g.Go(func() error {
		schema, report.SchemaErr = b.backend.TableSchema(ctx, name)
		return nil
	})
	_ = g.Wait()

	if report.DataErr != nil {
		b.note.fail("loading rows failed", report.DataErr)
	}
	if report.SchemaErr != nil {
		b.note.fail("loading schema failed", report.SchemaErr)
	}
	if report.DataErr != nil && report.SchemaErr != nil {
		return report
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Previewed = name
	b.state.Limit = limit
	b.state.Tab = TabPreview
	b.state.Preview, b.state.PreviewErr = nil, ""
	b.state.Schema, b.state.SchemaErr = "", ""
	if report.DataErr == nil {
		b.state.Preview = rows
	} else {
		b.state.PreviewErr = errs.Message(report.DataErr)
	}
	if report.SchemaErr == nil {
		b.state.Schema = schema.BuildStatement
	} else {
		b.state.SchemaErr = errs.Message(report.SchemaErr)
	}
	return report
}

// RequestDelete marks name for deletion. Nothing is sent until
// ConfirmDelete.
func (b *Browser) RequestDelete(name string) error {
	if strings.TrimSpace(name) == "" {
		return errs.Validationf("tables.delete", "select a table to delete")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.PendingDelete = name
	return nil
}

// CancelDelete drops a pending deletion.
func (b *Browser) CancelDelete() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.PendingDelete = ""
}

// ConfirmDelete drops the pending table, refreshes the list and clears
// the preview when it showed that table.
func (b *Browser) ConfirmDelete(ctx context.Context) error {
	const op = "tables.delete"

	b.mu.Lock()
	name := b.state.PendingDelete
	b.state.PendingDelete = ""
	b.mu.Unlock()
	if name == "" {
		err := errs.Statef(op, "no deletion is awaiting confirmation")
		b.note.fail("", err)
		return err
	}

	msg, err := b.backend.DeleteTable(ctx, name)
	if err != nil {
		b.note.fail("delete failed", err)
		return err
	}
	if msg == "" {
		msg = fmt.Sprintf("table %s deleted", name)
	}
	b.note.success(msg)

	b.mu.Lock()
	if b.state.Previewed == name {
		b.state.Previewed = ""
		b.state.Limit = 0
		b.state.Preview, b.state.PreviewErr = nil, ""
		b.state.Schema, b.state.SchemaErr = "", ""
		b.state.Tab = TabList
	}
	b.mu.Unlock()

	_ = b.Refresh(ctx)
	return nil
}
