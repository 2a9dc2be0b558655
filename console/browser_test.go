package console

import (
	"context"
	"fmt"
	"testing"

	"github.com/DachengChen/nlsql/apitest"
	"github.com/DachengChen/nlsql/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTables(srv *apitest.Server) {
	rows := make([]map[string]interface{}, 120)
	for i := range rows {
		rows[i] = map[string]interface{}{"id": i}
	}
	srv.AddTable("Orders", []string{"id"}, rows)
	srv.AddTable("order_items", []string{"id"}, rows[:3])
	srv.AddTable("customers", []string{"id"}, rows[:1])
}

func TestBrowser_RefreshAndFilter(t *testing.T) {
	client, srv := newBackend(t)
	seedTables(srv)
	b := NewBrowser(client, nil)

	require.NoError(t, b.Refresh(context.Background()))
	assert.Equal(t, []string{"Orders", "customers", "order_items"}, b.Visible())

	before := len(srv.Calls())
	b.Filter("ORDER")
	assert.Equal(t, []string{"Orders", "order_items"}, b.Visible())
	b.Filter("zzz")
	assert.Empty(t, b.Visible())
	b.Filter("")
	assert.Len(t, b.Snapshot().Visible(), 3)
	assert.Len(t, srv.Calls(), before, "filtering is local")
}

func TestBrowser_RefreshFailure(t *testing.T) {
	client, srv := newBackend(t)
	seedTables(srv)
	b := NewBrowser(client, nil)
	require.NoError(t, b.Refresh(context.Background()))

	srv.FailWith("GET /tables", apitest.Failure{Status: 500})
	require.Error(t, b.Refresh(context.Background()))
	assert.Len(t, b.Snapshot().Tables, 3, "previous list is kept")
}

func TestBrowser_PreviewLimits(t *testing.T) {
	client, srv := newBackend(t)
	seedTables(srv)
	b := NewBrowser(client, nil)

	for _, tt := range []struct{ limit, want int }{{0, 50}, {100, 100}, {500, 120}} {
		t.Run(fmt.Sprint(tt.limit), func(t *testing.T) {
			report := b.Preview(context.Background(), "Orders", tt.limit)
			require.NoError(t, report.DataErr)
			require.NoError(t, report.SchemaErr)

			s := b.Snapshot()
			assert.Equal(t, TabPreview, s.Tab)
			assert.Equal(t, "Orders", s.Previewed)
			assert.Len(t, s.Preview.Rows, tt.want)
			assert.Contains(t, s.Schema, "CREATE TABLE Orders")
		})
	}
}

func TestBrowser_PreviewPartialFailure(t *testing.T) {
	client, srv := newBackend(t)
	seedTables(srv)
	srv.FailWith("GET /tables/:name/schema", apitest.Failure{Status: 500, Detail: "schema unavailable"})
	notes := NewNoticeLog(0)
	b := NewBrowser(client, notes)

	report := b.Preview(context.Background(), "customers", 0)
	assert.NoError(t, report.DataErr)
	require.Error(t, report.SchemaErr)

	s := b.Snapshot()
	assert.Equal(t, TabPreview, s.Tab)
	assert.Len(t, s.Preview.Rows, 1)
	assert.Equal(t, "schema unavailable", s.SchemaErr)
	assert.Len(t, notes.All(), 1)
}

func TestBrowser_PreviewBothFailStaysOnList(t *testing.T) {
	client, srv := newBackend(t)
	b := NewBrowser(client, nil)

	report := b.Preview(context.Background(), "ghost", 0)
	require.Error(t, report.DataErr)
	require.Error(t, report.SchemaErr)
	assert.Equal(t, 1, srv.Count("GET /table_preview/:name"))
	assert.Equal(t, 1, srv.Count("GET /tables/:name/schema"))

	s := b.Snapshot()
	assert.Equal(t, TabList, s.Tab)
	assert.Empty(t, s.Previewed)
}

func TestBrowser_DeleteRequiresConfirmation(t *testing.T) {
	client, srv := newBackend(t)
	seedTables(srv)
	b := NewBrowser(client, nil)
	ctx := context.Background()

	require.NoError(t, b.RequestDelete("customers"))
	assert.Equal(t, "customers", b.Snapshot().PendingDelete)
	assert.Zero(t, srv.Count("DELETE /tables/:name"))

	b.CancelDelete()
	err := b.ConfirmDelete(ctx)
	assert.Equal(t, errs.KindState, errs.KindOf(err))
	assert.Zero(t, srv.Count("DELETE /tables/:name"))

	assert.Equal(t, errs.KindValidation, errs.KindOf(b.RequestDelete("")))
}

func TestBrowser_DeletePreviewedTableClearsPreview(t *testing.T) {
	client, srv := newBackend(t)
	seedTables(srv)
	b := NewBrowser(client, nil)
	ctx := context.Background()
	require.NoError(t, b.Refresh(ctx))
	b.Preview(ctx, "customers", 0)

	require.NoError(t, b.RequestDelete("customers"))
	require.NoError(t, b.ConfirmDelete(ctx))

	s := b.Snapshot()
	assert.Equal(t, TabList, s.Tab)
	assert.Empty(t, s.Previewed)
	assert.Nil(t, s.Preview)
	assert.Empty(t, s.Schema)
	assert.Equal(t, []string{"Orders", "order_items"}, s.Tables)
}

func TestBrowser_DeleteOtherTableKeepsPreview(t *testing.T) {
	client, srv := newBackend(t)
	seedTables(srv)
	b := NewBrowser(client, nil)
	ctx := context.Background()
	b.Preview(ctx, "Orders", 0)
	before := b.Snapshot()

	require.NoError(t, b.RequestDelete("customers"))
	require.NoError(t, b.ConfirmDelete(ctx))

	after := b.Snapshot()
	assert.Equal(t, TabPreview, after.Tab)
	assert.Equal(t, before.Previewed, after.Previewed)
	assert.Same(t, before.Preview, after.Preview)
	assert.Equal(t, before.Schema, after.Schema)
	assert.NotContains(t, after.Tables, "customers")
}

func TestBrowser_DeleteFailureKeepsState(t *testing.T) {
	client, srv := newBackend(t)
	seedTables(srv)
	srv.FailWith("DELETE /tables/:name", apitest.Failure{Status: 403, Error: "read-only database"})
	b := NewBrowser(client, nil)
	ctx := context.Background()
	b.Preview(ctx, "customers", 0)

	require.NoError(t, b.RequestDelete("customers"))
	err := b.ConfirmDelete(ctx)
	require.Error(t, err)
	assert.Equal(t, "read-only database", errs.Message(err))
	assert.Equal(t, "customers", b.Snapshot().Previewed)
	_, ok := srv.TableRows("customers")
	assert.True(t, ok)
}
