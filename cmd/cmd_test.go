package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/DachengChen/nlsql/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command against srv with a throwaway data dir.
func run(t *testing.T, srv *apitest.Server, args ...string) (string, error) {
	t.Helper()
	importSheet, importTable, importPreviewOnly = "", "", false
	tablesFilter, tablesLimit = "", 50
	askTables, askModel = nil, ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--api-url", srv.URL, "--data-dir", t.TempDir()}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHealthCommand(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	out, err := run(t, srv, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "status:        healthy")
	assert.Contains(t, out, "default model: qwen")
}

func TestTablesCommand(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddTable("orders", []string{"id"}, []map[string]interface{}{{"id": 1}, {"id": 2}})
	srv.AddTable("customers", []string{"id"}, nil)

	out, err := run(t, srv, "tables", "--filter", "ord")
	require.NoError(t, err)
	assert.Contains(t, out, "orders")
	assert.NotContains(t, out, "customers")

	out, err = run(t, srv, "tables", "orders", "-n", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 of 2 rows)")
	assert.Equal(t, 1, srv.Count("GET /table_preview/:name"))
	assert.Contains(t, out, "CREATE TABLE")
}

func TestImportCommand(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddWorkbook("data.xlsx", map[string][]map[string]interface{}{
		"Sheet1": {{"id": 1}, {"id": 2}, {"id": 3}},
	})
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04"), 0o600))

	out, err := run(t, srv, "import", path, "--table", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "sheets: Sheet1")
	assert.Contains(t, out, "preview table preview_orders: 3 rows")

	n, ok := srv.TableRows("orders")
	require.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, srv.Count("POST /excel/update_config"))
}

func TestImportCommandPreviewOnly(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddWorkbook("data.xlsx", map[string][]map[string]interface{}{"Sheet1": {{"id": 1}}})
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04"), 0o600))

	_, err := run(t, srv, "import", path, "--preview-only")
	require.NoError(t, err)
	_, ok := srv.TableRows("preview_data")
	assert.True(t, ok)
	_, ok = srv.TableRows("data")
	assert.False(t, ok)
}

func TestImportCommandRefreshFailure(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddWorkbook("data.xlsx", map[string][]map[string]interface{}{"Sheet1": {{"id": 1}}})
	srv.FailWith("POST /excel/update_config", apitest.Failure{Status: 500, Detail: "config locked"})
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04"), 0o600))

	out, err := run(t, srv, "import", path)
	assert.ErrorContains(t, err, "did not reload")
	assert.Contains(t, out, "warning")
	_, ok := srv.TableRows("data")
	assert.True(t, ok)
}

func TestAskCommand(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddTable("orders", []string{"month", "total"}, nil)
	srv.SetQueryAnswer(apitest.QueryAnswer{
		SQL:     "SELECT month, total FROM orders",
		Columns: []string{"month", "total"},
		Rows:    []map[string]interface{}{{"month": "Jan", "total": 10}, {"month": "Feb", "total": 12}},
	})

	out, err := run(t, srv, "ask", "--table", "orders", "how", "did", "revenue", "change?")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT month, total FROM orders")
	assert.Contains(t, out, "(2 of 2 rows)")
	assert.Contains(t, out, "Revenue grew every month.")
	assert.Contains(t, string(srv.LastBody("POST /query")), `"query":"how did revenue change?"`)
}

func TestAskCommandNeedsTable(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	_, err := run(t, srv, "ask", "anything")
	assert.ErrorContains(t, err, "select at least one table")
	assert.Zero(t, srv.Count("POST /query"))
}
