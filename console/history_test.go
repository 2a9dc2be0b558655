package console

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DachengChen/nlsql/errs"
	"github.com/DachengChen/nlsql/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type brokenKV struct{}

func (brokenKV) GetJSON(string, interface{}) (bool, error) { return false, nil }
func (brokenKV) PutJSON(string, interface{}) error { return errors.New("disk full") }
func (brokenKV) Delete(string) error { return errors.New("disk full") }

func TestHistory_RingEvictsOldest(t *testing.T) {
	h, err := LoadHistory(nil)
	require.NoError(t, err)

	for i := 0; i < HistoryCapacity+5; i++ {
		require.NoError(t, h.Push(HistoryEntry{ID: fmt.Sprint(i), SQL: fmt.Sprintf("SELECT %d", i)}))
		assert.LessOrEqual(t, h.Len(), HistoryCapacity)
	}

	entries := h.Entries()
	require.Len(t, entries, HistoryCapacity)
	assert.Equal(t, "SELECT 24", entries[0].SQL)
	assert.Equal(t, "SELECT 5", entries[HistoryCapacity-1].SQL)

	_, ok := h.Get("4")
	assert.False(t, ok, "oldest entries are evicted")
	_, ok = h.Get("5")
	assert.True(t, ok)
}

func TestHistory_PersistsAcrossLoads(t *testing.T) {
	kv := openStore(t)
	h, err := LoadHistory(kv)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Push(HistoryEntry{ID: fmt.Sprint(i), SQL: fmt.Sprintf("SELECT %d", i), Success: true}))
	}

	var raw []HistoryEntry
	found, err := kv.GetJSON(HistoryKey, &raw)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "SELECT 2", raw[0].SQL)

	again, err := LoadHistory(kv)
	require.NoError(t, err)
	assert.Equal(t, h.Entries(), again.Entries())
}

func TestHistory_LoadTruncatesOversizedList(t *testing.T) {
	kv := openStore(t)
	var saved []HistoryEntry
	for i := 0; i < 30; i++ {
		saved = append(saved, HistoryEntry{ID: fmt.Sprint(i)})
	}
	require.NoError(t, kv.PutJSON(HistoryKey, saved))

	h, err := LoadHistory(kv)
	require.NoError(t, err)
	entries := h.Entries()
	require.Len(t, entries, HistoryCapacity)
	assert.Equal(t, "0", entries[0].ID)
	assert.Equal(t, "19", entries[HistoryCapacity-1].ID)
}

func TestHistory_ClearRemovesKey(t *testing.T) {
	kv := openStore(t)
	h, err := LoadHistory(kv)
	require.NoError(t, err)
	require.NoError(t, h.Push(HistoryEntry{ID: "a"}))

	require.NoError(t, h.Clear())
	assert.Zero(t, h.Len())

	var raw []HistoryEntry
	found, err := kv.GetJSON(HistoryKey, &raw)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLDebug_ExecuteRecordsSuccessAndFailure(t *testing.T) {
	client, srv := newBackend(t)
	srv.AddTable("orders", []string{"id", "amount"}, []map[string]interface{}{{"id": 1, "amount": 9.5}})
	h, err := LoadHistory(openStore(t))
	require.NoError(t, err)
	d := NewSQLDebug(client, h, nil)
	ctx := context.Background()

	require.NoError(t, d.Execute(ctx, "SELECT * FROM orders"))
	s := d.Snapshot()
	require.NotNil(t, s.Result)
	assert.Equal(t, "9.5", s.Result.Cell(0, "amount"))
	assert.Empty(t, s.Error)

	err = d.Execute(ctx, "DELETE FROM orders")
	require.Error(t, err)
	assert.Equal(t, errs.KindBackend, errs.KindOf(err))
	s = d.Snapshot()
	assert.Nil(t, s.Result)
	assert.Equal(t, "only SELECT statements are allowed", s.Error)

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Success)
	assert.Equal(t, "DELETE FROM orders", entries[0].SQL)
	assert.True(t, entries[1].Success)
}

func TestSQLDebug_EmptyInputRejectedLocally(t *testing.T) {
	client, srv := newBackend(t)
	d := NewSQLDebug(client, nil, nil)

	err := d.Execute(context.Background(), " \n\t")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Empty(t, srv.Calls())
	assert.Zero(t, d.History().Len())
}

func TestSQLDebug_ReplayReproducesRun(t *testing.T) {
	client, srv := newBackend(t)
	srv.AddTable("orders", []string{"id"}, []map[string]interface{}{{"id": 1}, {"id": 2}})
	d := NewSQLDebug(client, nil, nil)
	ctx := context.Background()

	require.NoError(t, d.Execute(ctx, "SELECT * FROM orders"))
	ok := d.Snapshot()
	_ = d.Execute(ctx, "UPDATE orders SET id = 3")
	failed := d.Snapshot()
	d.ClearEditor()
	assert.Equal(t, SQLDebugState{}, d.Snapshot())

	calls := len(srv.Calls())
	entries := d.History().Entries()

	require.NoError(t, d.LoadFromHistory(entries[1].ID))
	assert.Equal(t, ok, d.Snapshot())

	require.NoError(t, d.LoadFromHistory(entries[0].ID))
	assert.Equal(t, failed, d.Snapshot())

	assert.Len(t, srv.Calls(), calls, "replay must not hit the backend")

	err := d.LoadFromHistory("missing")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestSQLDebug_ReplayAfterRestart(t *testing.T) {
	client, srv := newBackend(t)
	srv.AddTable("orders", []string{"id"}, []map[string]interface{}{{"id": 12345678901}})
	kv := openStore(t)
	h, err := LoadHistory(kv)
	require.NoError(t, err)
	require.NoError(t, NewSQLDebug(client, h, nil).Execute(context.Background(), "SELECT * FROM orders"))

	restored, err := LoadHistory(kv)
	require.NoError(t, err)
	d := NewSQLDebug(client, restored, nil)
	require.NoError(t, d.LoadFromHistory(restored.Entries()[0].ID))
	assert.Equal(t, "SELECT * FROM orders", d.Snapshot().Editor)
	assert.Equal(t, "12345678901", d.Snapshot().Result.Cell(0, "id"))
}

func TestSQLDebug_ClearHistory(t *testing.T) {
	client, _ := newBackend(t)
	d := NewSQLDebug(client, nil, nil)
	require.NoError(t, d.Execute(context.Background(), "SELECT 1"))
	require.NoError(t, d.ClearHistory())
	assert.Zero(t, d.History().Len())
}

func TestSQLDebug_StoreFailureIsWarning(t *testing.T) {
	client, _ := newBackend(t)
	h, err := LoadHistory(brokenKV{})
	require.NoError(t, err)
	notes := NewNoticeLog(0)
	d := NewSQLDebug(client, h, notes)

	require.NoError(t, d.Execute(context.Background(), "SELECT 1"))
	assert.Equal(t, 1, h.Len())

	n, ok := notes.Latest()
	require.True(t, ok)
	assert.Equal(t, LevelWarning, n.Level)
	assert.Contains(t, n.Text, "disk full")
}
