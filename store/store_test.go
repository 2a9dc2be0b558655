package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	SQL string `json:"sql"`
	OK  bool   `json:"ok"`
}

func TestStore_RoundTripOnDisk(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.PutJSON("sql_history", []record{{SQL: "SELECT 1", OK: true}}))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	var got []record
	found, err := s.GetJSON("sql_history", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []record{{SQL: "SELECT 1", OK: true}}, got)
}

func TestStore_MissingKey(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	var got []record
	found, err := s.GetJSON("nope", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestStore_Delete(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutJSON("k", record{SQL: "x"}))
	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Delete("k"))

	var got record
	found, err := s.GetJSON("k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_CorruptValue(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutJSON("k", "a string"))
	var got []record
	_, err = s.GetJSON("k", &got)
	assert.Error(t, err)
}
