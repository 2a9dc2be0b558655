package api

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Row is one result row keyed by column name.
type Row map[string]interface{}

// ResultSet is the tabular payload shared by NL queries, raw SQL and
// table previews. Columns gives the display order of Row keys.
type ResultSet struct {
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"data"`
	TotalRows int      `json:"total_rows"`
}

// Cell returns the value at (row, column) formatted as text.
// Missing keys and nulls render as the empty string.
func (r *ResultSet) Cell(row int, column string) string {
	if r == nil || row < 0 || row >= len(r.Rows) {
		return ""
	}
	return FormatValue(r.Rows[row][column])
}

// FormatValue coerces a decoded JSON value to display text.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// QueryRequest asks the backend to generate and execute SQL.
type QueryRequest struct {
	Query      string   `json:"query"`
	TableNames []string `json:"table_names"`
	ModelName  string   `json:"model_name,omitempty"`
}

// QueryResult is the generated SQL plus its result set.
type QueryResult struct {
	SQL string `json:"sql"`
	ResultSet
}

// ChatRequest asks the backend model to summarize a result.
type ChatRequest struct {
	TableInfo string `json:"table_info"`
	Question  string `json:"question"`
	ModelName string `json:"model_name,omitempty"`
}

// ModelList is the set of models the backend can use.
type ModelList struct {
	Models  map[string]map[string]interface{} `json:"models"`
	Default string                            `json:"default_model"`
}

// Names returns model names in sorted order.
func (m *ModelList) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Models))
	for name := range m.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preferred returns the backend default model, else the first name.
func (m *ModelList) Preferred() string {
	if m == nil {
		return ""
	}
	if m.Default != "" {
		return m.Default
	}
	if names := m.Names(); len(names) > 0 {
		return names[0]
	}
	return ""
}

// TableSchema carries the create statement of a table.
type TableSchema struct {
	TableName      string `json:"table_name"`
	BuildStatement string `json:"build_statement"`
}

// UploadResult is returned after a spreadsheet upload.
type UploadResult struct {
	FilePath      string `json:"file_path"`
	Filename      string `json:"filename"`
	SavedFilename string `json:"saved_filename"`
}

// IfExists policies for ImportRequest.
const (
	IfExistsFail    = "fail"
	IfExistsReplace = "replace"
	IfExistsAppend  = "append"
)

// ImportRequest imports one sheet of an uploaded workbook into a table.
type ImportRequest struct {
	ExcelPath string `json:"excel_path"`
	SheetName string `json:"sheet_name"`
	TableName string `json:"table_name"`
	IfExists  string `json:"if_exists"`
}

// ImportResult describes the table produced by an import.
type ImportResult struct {
	TableName         string   `json:"table_name"`
	RowCount          int      `json:"row_count"`
	ColumnCount       int      `json:"column_count"`
	CreateStatement   string   `json:"create_statement"`
	OriginalColumns   []string `json:"original_columns"`
	NormalizedColumns []string `json:"normalized_columns"`
}

// ConfigUpdate is the backend's answer to a table-config refresh.
type ConfigUpdate struct {
	TotalTables   int      `json:"total_tables"`
	NewTables     []string `json:"new_tables"`
	UpdatedTables []string `json:"updated_tables"`
	Mode          string   `json:"mode"`
	ConfigPath    string   `json:"config_path"`
}

// Template kinds accepted by the backend.
const (
	TemplateChat  = "chat"
	TemplateInfer = "infer"
)

// Health is the backend health report.
type Health struct {
	Status       string  `json:"status"`
	Timestamp    float64 `json:"timestamp"`
	TablesLoaded int     `json:"tables_loaded"`
	ModelsLoaded int     `json:"models_loaded"`
	DefaultModel string  `json:"default_model"`
}

// envelope is the success/error pair most endpoints wrap their payload in.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorBody is what the backend sends with non-2xx responses. detail may
// be a string or a structured validation report.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}
