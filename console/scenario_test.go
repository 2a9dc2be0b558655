package console

import (
	"context"
	"testing"

	"github.com/DachengChen/nlsql/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Upload data.xlsx, preview Sheet1 as orders, confirm while the config
// refresh is broken: the import still finishes with a warning.
func TestScenario_ImportWithFailedConfigRefresh(t *testing.T) {
	client, srv := newBackend(t)
	ordersWorkbook(srv)
	srv.FailWith("POST /excel/update_config", apitest.Failure{Status: 500, Detail: "config file is read-only"})
	notes := NewNoticeLog(0)
	w := NewWizard(client, notes)
	ctx := context.Background()

	require.NoError(t, w.Upload(ctx, writeWorkbook(t, "data.xlsx", 0)))
	s := w.Snapshot()
	assert.Len(t, s.Sheets, 2)

	require.NoError(t, w.Preview(ctx, "Sheet1", "orders"))
	previewRows, ok := srv.TableRows("preview_orders")
	require.True(t, ok)
	assert.Equal(t, 3, previewRows)
	_, ok = srv.TableRows("orders")
	assert.False(t, ok)

	require.NoError(t, w.Confirm(ctx))
	finalRows, ok := srv.TableRows("orders")
	require.True(t, ok)
	assert.Equal(t, previewRows, finalRows)
	assert.Equal(t, 1, srv.Count("POST /excel/update_config"))

	s = w.Snapshot()
	assert.Equal(t, StepDone, s.Step)
	assert.False(t, s.ConfigRefreshed)
	assert.Equal(t, finalRows, s.Result.RowCount)

	last, ok := notes.Latest()
	require.True(t, ok)
	assert.Equal(t, LevelWarning, last.Level)
	assert.Contains(t, last.Text, "config file is read-only")
	for _, n := range notes.All() {
		assert.NotEqual(t, LevelError, n.Level)
	}
}

// A question with no tables selected never reaches the backend.
func TestScenario_QuestionWithoutTables(t *testing.T) {
	client, srv := newBackend(t)
	srv.AddTable("orders", nil, nil)
	notes := NewNoticeLog(0)
	p := NewPipeline(client, notes)
	p.Load(context.Background())
	calls := len(srv.Calls())

	err := p.Submit(context.Background(), "total revenue by month", []string{}, "")
	require.Error(t, err)
	assert.Len(t, srv.Calls(), calls)
	assert.Zero(t, p.Log().Len())

	last, ok := notes.Latest()
	require.True(t, ok)
	assert.Equal(t, LevelWarning, last.Level)
	assert.Equal(t, "select at least one table", last.Text)
}
