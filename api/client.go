// Package api is the HTTP client for the NL2SQL backend.
//
// Design decisions:
//   - One *http.Client with a single overall timeout applies to every
//     call; there are no per-endpoint deadlines and no retries.
//   - Every response is classified into the errs taxonomy: non-2xx and
//     network failures are transport errors (message: detail → error →
//     generic), 2xx bodies with success=false are backend errors.
//   - JSON numbers are decoded as json.Number so result cells keep the
//     backend's exact text.
//   - The model list rarely changes and is cached for a few minutes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DachengChen/nlsql/applog"
	"github.com/DachengChen/nlsql/errs"
	"github.com/DachengChen/nlsql/metrics"
	"github.com/patrickmn/go-cache"
)

// DefaultTimeout matches the deadline the console always used.
const DefaultTimeout = 30 * time.Second

const modelsCacheKey = "models"

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *cache.Cache
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is
// still the single deadline applied to every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithModelCacheTTL changes how long the model list is cached.
// A zero TTL disables caching.
func WithModelCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

// New creates a client for baseURL (e.g. "http://localhost:8000").
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cache:   cache.New(5*time.Minute, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// call describes one HTTP exchange.
type call struct {
	method      string
	route       string // path pattern used for metrics and logs
	path        string // concrete, escaped path
	query       url.Values
	body        io.Reader
	contentType string
}

func jsonCall(method, route, path string, payload interface{}) (call, error) {
	c := call{method: method, route: route, path: path}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return c, fmt.Errorf("encode request: %w", err)
		}
		c.body = bytes.NewReader(b)
		c.contentType = "application/json"
	}
	return c, nil
}

func (c *Client) op(cl call) string {
	return "api." + cl.method + " " + cl.route
}

// do executes cl and decodes a 2xx body into out (when non-nil).
func (c *Client) do(ctx context.Context, cl call, out interface{}) error {
	op := c.op(cl)
	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, cl.body)
	if err != nil {
		return errs.NewTransport(op, 0, "invalid request: "+err.Error(), err)
	}
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveRequest(cl.route, 0, elapsed)
		applog.L().Warn().Str("method", cl.method).Str("path", cl.path).
			Dur("elapsed", elapsed).Err(err).Msg("backend request failed")
		return errs.NewTransport(op, 0, transportMessage(err), err)
	}
	defer resp.Body.Close()

	metrics.ObserveRequest(cl.route, resp.StatusCode, elapsed)
	applog.L().Debug().Str("method", cl.method).Str("path", cl.path).
		Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("backend request")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.NewTransport(op, resp.StatusCode, "read response: "+err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errs.NewTransport(op, resp.StatusCode, statusMessage(resp, data), nil)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errs.NewTransport(op, resp.StatusCode, "invalid response: "+err.Error(), err)
	}
	return nil
}

// statusMessage picks the most specific text from an error response:
// detail, then error, then a generic status line.
func statusMessage(resp *http.Response, data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		if msg := detailText(body.Detail); msg != "" {
			return msg
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return "request failed with status " + resp.Status
}

func detailText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return "request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "request canceled"
	}
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}

func (c *Client) checkEnvelope(cl call, env envelope, fallback string) error {
	if env.Success {
		return nil
	}
	return errs.NewBackend(c.op(cl), env.Error, fallback)
}

// ─────────────────────────────────────────────────────────────────
// Query endpoints
// ─────────────────────────────────────────────────────────────────

// ListTables returns the names of all tables the backend knows about.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	cl := call{method: http.MethodGet, route: "/tables", path: "/tables"}
	var out struct {
		envelope
		Tables []string `json:"tables"`
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	if err := c.checkEnvelope(cl, out.envelope, "failed to list tables"); err != nil {
		return nil, err
	}
	return out.Tables, nil
}

// ListModels returns the available models, served from cache when fresh.
func (c *Client) ListModels(ctx context.Context) (*ModelList, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(modelsCacheKey); ok {
			return v.(*ModelList), nil
		}
	}

	cl := call{method: http.MethodGet, route: "/models", path: "/models"}
	var out struct {
		envelope
		ModelList
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	if err := c.checkEnvelope(cl, out.envelope, "failed to list models"); err != nil {
		return nil, err
	}

	list := out.ModelList
	if c.cache != nil {
		c.cache.SetDefault(modelsCacheKey, &list)
	}
	return &list, nil
}

// InvalidateModels drops the cached model list.
func (c *Client) InvalidateModels() {
	if c.cache != nil {
		c.cache.Delete(modelsCacheKey)
	}
}

// TableSchema returns the create statement for a table.
func (c *Client) TableSchema(ctx context.Context, table string) (*TableSchema, error) {
	cl := call{
		method: http.MethodGet,
		route:  "/tables/{name}/schema",
		path:   "/tables/" + url.PathEscape(table) + "/schema",
	}
	var out TableSchema
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Query generates SQL for a question and executes it.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	cl, err := jsonCall(http.MethodPost, "/query", "/query", req)
	if err != nil {
		return nil, err
	}
	var out struct {
		envelope
		QueryResult
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	if err := c.checkEnvelope(cl, out.envelope, "SQL query failed"); err != nil {
		return nil, err
	}
	return &out.QueryResult, nil
}

// Chat asks the model to answer question given a textual table.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	cl, err := jsonCall(http.MethodPost, "/chat/", "/chat/", req)
	if err != nil {
		return "", err
	}
	var out struct {
		envelope
		Answer string `json:"answer"`
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return "", err
	}
	if err := c.checkEnvelope(cl, out.envelope, "analysis failed"); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// PreviewTable fetches up to limit rows of a table.
func (c *Client) PreviewTable(ctx context.Context, table string, limit int) (*ResultSet, error) {
	cl := call{
		method: http.MethodGet,
		route:  "/table_preview/{name}",
		path:   "/table_preview/" + url.PathEscape(table),
		query:  url.Values{"limit": []string{strconv.Itoa(limit)}},
	}
	var out struct {
		envelope
		ResultSet
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	if err := c.checkEnvelope(cl, out.envelope, "preview failed"); err != nil {
		return nil, err
	}
	return &out.ResultSet, nil
}

// DeleteTable drops a table and returns the backend's confirmation text.
func (c *Client) DeleteTable(ctx context.Context, table string) (string, error) {
	cl := call{
		method: http.MethodDelete,
		route:  "/tables/{name}",
		path:   "/tables/" + url.PathEscape(table),
	}
	var out envelope
	if err := c.do(ctx, cl, &out); err != nil {
		return "", err
	}
	if err := c.checkEnvelope(cl, out, "delete failed"); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ExecuteRawSQL runs sql as-is.
func (c *Client) ExecuteRawSQL(ctx context.Context, sql string) (*ResultSet, error) {
	cl, err := jsonCall(http.MethodPost, "/execute_raw_sql", "/execute_raw_sql", map[string]string{"sql": sql})
	if err != nil {
		return nil, err
	}
	var out struct {
		envelope
		ResultSet
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	if err := c.checkEnvelope(cl, out.envelope, "execution failed"); err != nil {
		return nil, err
	}
	return &out.ResultSet, nil
}

// ─────────────────────────────────────────────────────────────────
// Spreadsheet import endpoints
// ─────────────────────────────────────────────────────────────────

// UploadExcel streams a workbook to the backend as multipart field "file".
func (c *Client) UploadExcel(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	contentType := mw.FormDataContentType()

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	cl := call{
		method:      http.MethodPost,
		route:       "/excel/upload",
		path:        "/excel/upload",
		body:        pr,
		contentType: contentType,
	}
	var out struct {
		envelope
		UploadResult
	}
	err := c.do(ctx, cl, &out)
	pr.Close()
	if err != nil {
		return nil, err
	}
	if err := c.checkEnvelope(cl, out.envelope, "upload failed"); err != nil {
		return nil, err
	}
	return &out.UploadResult, nil
}

// ListSheets returns the sheet names of an uploaded workbook.
func (c *Client) ListSheets(ctx context.Context, excelPath string) ([]string, error) {
	cl, err := jsonCall(http.MethodPost, "/excel/sheets", "/excel/sheets", map[string]string{"excel_path": excelPath})
	if err != nil {
		return nil, err
	}
	var out struct {
		envelope
		Sheets []string `json:"sheets"`
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	if err := c.checkEnvelope(cl, out.envelope, "failed to read sheets"); err != nil {
		return nil, err
	}
	return out.Sheets, nil
}

// ImportSheet imports one sheet into a table.
func (c *Client) ImportSheet(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if req.IfExists == "" {
		req.IfExists = IfExistsReplace
	}
	cl, err := jsonCall(http.MethodPost, "/excel/import", "/excel/import", req)
	if err != nil {
		return nil, err
	}
	var out struct {
		envelope
		ImportResult
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	if err := c.checkEnvelope(cl, out.envelope, "import failed"); err != nil {
		return nil, err
	}
	return &out.ImportResult, nil
}

// UpdateConfig asks the backend to rescan its tables ("add" or "replace").
func (c *Client) UpdateConfig(ctx context.Context, mode string) (*ConfigUpdate, error) {
	cl, err := jsonCall(http.MethodPost, "/excel/update_config", "/excel/update_config", map[string]string{"mode": mode})
	if err != nil {
		return nil, err
	}
	var out struct {
		envelope
		ConfigUpdate
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	if err := c.checkEnvelope(cl, out.envelope, "config update failed"); err != nil {
		return nil, err
	}
	return &out.ConfigUpdate, nil
}

// ─────────────────────────────────────────────────────────────────
// Backend configuration endpoints
// ─────────────────────────────────────────────────────────────────

// GetModelConfig returns the backend model config as raw JSON.
func (c *Client) GetModelConfig(ctx context.Context) (json.RawMessage, error) {
	cl := call{method: http.MethodGet, route: "/config/model", path: "/config/model"}
	var out json.RawMessage
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveModelConfig replaces the backend model config.
func (c *Client) SaveModelConfig(ctx context.Context, cfg json.RawMessage) error {
	cl := call{
		method:      http.MethodPost,
		route:       "/config/model",
		path:        "/config/model",
		body:        bytes.NewReader(cfg),
		contentType: "application/json",
	}
	var out envelope
	if err := c.do(ctx, cl, &out); err != nil {
		return err
	}
	if err := c.checkEnvelope(cl, out, "failed to save model config"); err != nil {
		return err
	}
	c.InvalidateModels()
	return nil
}

// GetTemplate returns a prompt template ("chat" or "infer").
func (c *Client) GetTemplate(ctx context.Context, kind string) (string, error) {
	cl := call{
		method: http.MethodGet,
		route:  "/config/template/{kind}",
		path:   "/config/template/" + url.PathEscape(kind),
	}
	var out string
	if err := c.do(ctx, cl, &out); err != nil {
		return "", err
	}
	return out, nil
}

// SaveTemplate replaces a prompt template.
func (c *Client) SaveTemplate(ctx context.Context, kind, content string) error {
	cl, err := jsonCall(http.MethodPost, "/config/template/{kind}",
		"/config/template/"+url.PathEscape(kind), map[string]string{"content": content})
	if err != nil {
		return err
	}
	var out envelope
	if err := c.do(ctx, cl, &out); err != nil {
		return err
	}
	return c.checkEnvelope(cl, out, "failed to save template")
}

// Health reports backend status.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	cl := call{method: http.MethodGet, route: "/health", path: "/health"}
	var out Health
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
