// Package console holds the controllers behind every screen of the
// terminal console: the import wizard, the query/chat pipeline, the SQL
// debug history, the table browser and the settings editor.
//
// Controllers are UI-agnostic. They are safe for concurrent use: the TUI
// calls them from tea.Cmd goroutines and renders from Snapshot copies.
// Long calls never hold the state mutex; a busy flag rejects overlapping
// actions instead.
package console

import (
	"context"
	"encoding/json"
	"io"

	"github.com/DachengChen/nlsql/api"
)

// ImportBackend is what the import wizard needs from the backend.
type ImportBackend interface {
	UploadExcel(ctx context.Context, filename string, r io.Reader) (*api.UploadResult, error)
	ListSheets(ctx context.Context, excelPath string) ([]string, error)
	ImportSheet(ctx context.Context, req api.ImportRequest) (*api.ImportResult, error)
	UpdateConfig(ctx context.Context, mode string) (*api.ConfigUpdate, error)
}

// QueryBackend is what the query/chat pipeline needs.
type QueryBackend interface {
	ListTables(ctx context.Context) ([]string, error)
	ListModels(ctx context.Context) (*api.ModelList, error)
	Query(ctx context.Context, req api.QueryRequest) (*api.QueryResult, error)
	Chat(ctx context.Context, req api.ChatRequest) (string, error)
}

// SQLBackend executes raw SQL.
type SQLBackend interface {
	ExecuteRawSQL(ctx context.Context, sql string) (*api.ResultSet, error)
}

// BrowserBackend is what the table browser needs.
type BrowserBackend interface {
	ListTables(ctx context.Context) ([]string, error)
	TableSchema(ctx context.Context, table string) (*api.TableSchema, error)
	PreviewTable(ctx context.Context, table string, limit int) (*api.ResultSet, error)
	DeleteTable(ctx context.Context, table string) (string, error)
}

// SettingsBackend reads and writes backend configuration.
type SettingsBackend interface {
	GetModelConfig(ctx context.Context) (json.RawMessage, error)
	SaveModelConfig(ctx context.Context, cfg json.RawMessage) error
	GetTemplate(ctx context.Context, kind string) (string, error)
	SaveTemplate(ctx context.Context, kind, content string) error
}

// Backend is the full API surface; *api.Client implements it.
type Backend interface {
	ImportBackend
	QueryBackend
	SQLBackend
	BrowserBackend
	SettingsBackend
}

var _ Backend = (*api.Client)(nil)

// KV persists JSON values; *store.Store implements it.
type KV interface {
	GetJSON(key string, v interface{}) (bool, error)
	PutJSON(key string, v interface{}) error
	Delete(key string) error
}
