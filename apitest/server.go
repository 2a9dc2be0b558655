// Package apitest runs an in-process fake of the NL2SQL backend.
//
// The fake keeps a tiny in-memory "database" (tables of rows), accepts
// workbook uploads whose sheets are registered up front with AddWorkbook,
// and records every request so tests can assert exactly which calls were
// (or were not) made. Individual routes can be forced to fail either at
// the HTTP level or with success=false.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Call is one recorded request.
type Call struct {
	Method string
	Route  string // gin route pattern, e.g. "/tables/:name"
	Path   string
	Body   []byte
}

// Key returns "METHOD route", the form used by FailWith and Count.
func (c Call) Key() string { return c.Method + " " + c.Route }

// Failure forces a route to fail.
type Failure struct {
	Status int    // HTTP status; 0 with Logical means 200 + success=false
	Detail string // sent as {"detail": ...} on HTTP failures
	Error  string // sent as {"error": ...}
	// Logical answers 200 with success=false instead of an HTTP error.
	Logical bool
	// Delay holds the response back before answering.
	Delay time.Duration
}

// Server is the fake backend.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	calls     []Call
	failures  map[string]Failure
	workbooks map[string]map[string][]map[string]interface{}
	uploads   map[string]string // server path -> original filename
	tables    map[string]*table
	models    map[string]map[string]interface{}
	defModel  string
	query     QueryAnswer
	answer    string
	config    json.RawMessage
	templates map[string]string
	uploadSeq int
}

type table struct {
	columns []string
	rows    []map[string]interface{}
}

// QueryAnswer is what POST /query returns on success.
type QueryAnswer struct {
	SQL     string
	Columns []string
	Rows    []map[string]interface{}
}

// New starts a fake backend with two models and no tables.
func New() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		failures:  make(map[string]Failure),
		workbooks: make(map[string]map[string][]map[string]interface{}),
		uploads:   make(map[string]string),
		tables:    make(map[string]*table),
		models: map[string]map[string]interface{}{
			"qwen":     {"provider": "dashscope"},
			"deepseek": {"provider": "deepseek"},
		},
		defModel: "qwen",
		answer:   "Revenue grew every month.",
		config:   json.RawMessage(`{"default_model":"qwen","models":{"qwen":{"provider":"dashscope"}}}`),
		templates: map[string]string{
			"chat":  "Answer {question} using {table_info}",
			"infer": "Write SQL for {question}",
		},
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(s.record, s.inject)

	r.GET("/health", s.health)
	r.GET("/tables", s.listTables)
	r.GET("/tables/:name/schema", s.schema)
	r.DELETE("/tables/:name", s.deleteTable)
	r.GET("/models", s.listModels)
	r.POST("/query", s.runQuery)
	r.POST("/chat/", s.chat)
	r.GET("/table_preview/:name", s.preview)
	r.POST("/execute_raw_sql", s.rawSQL)

	excel := r.Group("/excel")
	excel.POST("/upload", s.upload)
	excel.POST("/sheets", s.sheets)
	excel.POST("/import", s.importSheet)
	excel.POST("/update_config", s.updateConfig)

	cfg := r.Group("/config")
	cfg.GET("/model", s.getModelConfig)
	cfg.POST("/model", s.saveModelConfig)
	cfg.GET("/template/:kind", s.getTemplate)
	cfg.POST("/template/:kind", s.saveTemplate)
	return r
}

// ─────────────────────────────────────────────────────────────────
// Test-side configuration
// ─────────────────────────────────────────────────────────────────

// AddWorkbook registers the sheets served for an uploaded file name.
func (s *Server) AddWorkbook(filename string, sheets map[string][]map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workbooks[filename] = sheets
}

// AddTable creates a table directly.
func (s *Server) AddTable(name string, columns []string, rows []map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = &table{columns: columns, rows: rows}
}

// SetQueryAnswer sets the result of POST /query.
func (s *Server) SetQueryAnswer(q QueryAnswer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
}

// SetChatAnswer sets the text returned by POST /chat/.
func (s *Server) SetChatAnswer(answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer = answer
}

// SetModels replaces the model list.
func (s *Server) SetModels(models map[string]map[string]interface{}, def string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = models
	s.defModel = def
}

// FailWith forces key ("POST /excel/update_config") to fail.
func (s *Server) FailWith(key string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = f
}

// Recover removes a forced failure.
func (s *Server) Recover(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, key)
}

// Calls returns a copy of every recorded request.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Count returns how many requests hit key.
func (s *Server) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Key() == key {
			n++
		}
	}
	return n
}

// LastBody returns the body of the most recent request to key.
func (s *Server) LastBody(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].Key() == key {
			return s.calls[i].Body
		}
	}
	return nil
}

// TableRows returns the row count of a table and whether it exists.
func (s *Server) TableRows(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return 0, false
	}
	return len(t.rows), true
}

// Template returns the stored template text.
func (s *Server) Template(kind string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.templates[kind]
}

// ModelConfig returns the stored model config.
func (s *Server) ModelConfig() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// ─────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────

func (s *Server) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
		body, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(strings.NewReader(string(body)))
	}
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: c.Request.Method, Route: route, Path: c.Request.URL.Path, Body: body})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) inject(c *gin.Context) {
	s.mu.Lock()
	f, ok := s.failures[c.Request.Method+" "+c.FullPath()]
	s.mu.Unlock()
	if !ok {
		c.Next()
		return
	}
	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}
	if f.Logical {
		c.AbortWithStatusJSON(http.StatusOK, gin.H{"success": false, "error": f.Error})
		return
	}
	if f.Status == 0 {
		c.Next()
		return
	}
	body := gin.H{}
	if f.Detail != "" {
		body["detail"] = f.Detail
	}
	if f.Error != "" {
		body["error"] = f.Error
	}
	c.AbortWithStatusJSON(f.Status, body)
}

// ─────────────────────────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────────────────────────

func (s *Server) health(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"timestamp":     float64(time.Now().Unix()),
		"tables_loaded": len(s.tables),
		"models_loaded": len(s.models),
		"default_model": s.defModel,
	})
}

func (s *Server) listTables(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	c.JSON(http.StatusOK, gin.H{"success": true, "tables": names, "count": len(names)})
}

func (s *Server) schema(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := c.Param("name")
	t, ok := s.tables[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("table '%s' does not exist", name)})
		return
	}
	cols := make([]string, len(t.columns))
	for i, col := range t.columns {
		cols[i] = col + " TEXT"
	}
	c.JSON(http.StatusOK, gin.H{
		"table_name":      name,
		"build_statement": fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(cols, ", ")),
	})
}

func (s *Server) deleteTable(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := c.Param("name")
	delete(s.tables, name)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("table '%s' deleted", name)})
}

func (s *Server) listModels(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "models": s.models, "default_model": s.defModel})
}

func (s *Server) runQuery(c *gin.Context) {
	var req struct {
		Query      string   `json:"query"`
		TableNames []string `json:"table_names"`
		ModelName  string   `json:"model_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"sql":        s.query.SQL,
		"columns":    s.query.Columns,
		"data":       s.query.Rows,
		"total_rows": len(s.query.Rows),
	})
}

func (s *Server) chat(c *gin.Context) {
	var req struct {
		TableInfo string `json:"table_info"`
		Question  string `json:"question"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "answer": s.answer})
}

func (s *Server) preview(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "limit must be an integer"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[c.Param("name")]
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "no such table: " + c.Param("name")})
		return
	}
	rows := t.rows
	if limit < len(rows) {
		rows = rows[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "columns": t.columns, "data": rows, "total_rows": len(rows)})
}

func (s *Server) rawSQL(c *gin.Context) {
	var req struct {
		SQL string `json:"sql"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	fields := strings.Fields(req.SQL)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "SELECT") {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "only SELECT statements are allowed"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// "SELECT * FROM <name>" reads a table; anything else echoes one row.
	if len(fields) >= 4 && strings.EqualFold(fields[2], "FROM") {
		if t, ok := s.tables[strings.TrimSuffix(fields[3], ";")]; ok {
			c.JSON(http.StatusOK, gin.H{"success": true, "columns": t.columns, "data": t.rows, "total_rows": len(t.rows)})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"columns":    []string{"result"},
		"data":       []gin.H{{"result": 1}},
		"total_rows": 1,
	})
}

func (s *Server) upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "no file provided"})
		return
	}
	if !strings.HasSuffix(file.Filename, ".xlsx") && !strings.HasSuffix(file.Filename, ".xls") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "only .xlsx or .xls files are supported"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadSeq++
	saved := fmt.Sprintf("%d_%s", s.uploadSeq, file.Filename)
	path := "uploads/" + saved
	s.uploads[path] = file.Filename
	c.JSON(http.StatusOK, gin.H{"success": true, "file_path": path, "filename": file.Filename, "saved_filename": saved})
}

func (s *Server) sheets(c *gin.Context) {
	var req struct {
		ExcelPath string `json:"excel_path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wb, ok := s.workbook(req.ExcelPath)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "file not found: " + req.ExcelPath})
		return
	}
	names := make([]string, 0, len(wb))
	for name := range wb {
		names = append(names, name)
	}
	sort.Strings(names)
	c.JSON(http.StatusOK, gin.H{"success": true, "sheets": names, "count": len(names)})
}

func (s *Server) workbook(path string) (map[string][]map[string]interface{}, bool) {
	name, ok := s.uploads[path]
	if !ok {
		return nil, false
	}
	wb, ok := s.workbooks[name]
	return wb, ok
}

func (s *Server) importSheet(c *gin.Context) {
	var req struct {
		ExcelPath string `json:"excel_path"`
		SheetName string `json:"sheet_name"`
		TableName string `json:"table_name"`
		IfExists  string `json:"if_exists"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wb, ok := s.workbook(req.ExcelPath)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "file not found: " + req.ExcelPath})
		return
	}
	rows, ok := wb[req.SheetName]
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "no such sheet: " + req.SheetName})
		return
	}
	if _, exists := s.tables[req.TableName]; exists && req.IfExists == "fail" {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "table already exists: " + req.TableName})
		return
	}

	var columns []string
	if len(rows) > 0 {
		for col := range rows[0] {
			columns = append(columns, col)
		}
		sort.Strings(columns)
	}
	copied := make([]map[string]interface{}, len(rows))
	copy(copied, rows)
	s.tables[req.TableName] = &table{columns: columns, rows: copied}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"table_name":         req.TableName,
		"row_count":          len(rows),
		"column_count":       len(columns),
		"original_columns":   columns,
		"normalized_columns": columns,
		"create_statement":   fmt.Sprintf("CREATE TABLE %s (%s)", req.TableName, strings.Join(columns, ", ")),
	})
}

func (s *Server) updateConfig(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "total_tables": len(s.tables), "mode": "add"})
}

func (s *Server) getModelConfig(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Data(http.StatusOK, "application/json", s.config)
}

func (s *Server) saveModelConfig(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid JSON"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = body
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "model config saved"})
}

func (s *Server) getTemplate(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.templates[c.Param("kind")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unsupported template type: " + c.Param("kind")})
		return
	}
	c.JSON(http.StatusOK, content)
}

func (s *Server) saveTemplate(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[c.Param("kind")]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unsupported template type: " + c.Param("kind")})
		return
	}
	s.templates[c.Param("kind")] = req.Content
	c.JSON(http.StatusOK, gin.H{"success": true, "message": c.Param("kind") + " template saved"})
}
