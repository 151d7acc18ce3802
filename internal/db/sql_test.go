package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQL_SQLiteCreatesSchema(t *testing.T) {
	s, err := OpenSQL("sqlite", filepath.Join(t.TempDir(), "soccer.db"))
	require.NoError(t, err)
	defer s.Close()

	// Idempotent
	require.NoError(t, CreateSchema(s.DB))

	for _, table := range []string{"users", "players", "teams", "team_members", "match_history", "match_events"} {
		var name string
		err := s.DB.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	_, err := OpenSQL("mysql", "whatever")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLDB{Driver: "postgres"}
	assert.Equal(t, "UPDATE users SET rating = $1 WHERE id = $2", pg.Rebind("UPDATE users SET rating = ? WHERE id = ?"))

	lite := &SQLDB{Driver: "sqlite"}
	assert.Equal(t, "SELECT ? FROM t", lite.Rebind("SELECT ? FROM t"))
}
