package dbfile

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func TestOpenEnablesWALMode(t *testing.T) {
	r, err := Open(tempDBPath(t))
	require.NoError(t, err)
	defer r.Close()

	var mode string
	require.NoError(t, r.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)
}

func TestBeginPinEndPinRoundtrip(t *testing.T) {
	path := tempDBPath(t)
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.BeginPin(context.Background()))
	require.NoError(t, r.EndPin())
}

func TestCheckpointTruncateAfterWrites(t *testing.T) {
	path := tempDBPath(t)
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.db.Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)
	_, err = r.db.Exec("INSERT INTO t (v) VALUES (1), (2), (3)")
	require.NoError(t, err)

	require.NoError(t, r.CheckpointTruncate(context.Background()))

	var count int
	require.NoError(t, r.db.QueryRow("SELECT COUNT(*) FROM t").Scan(&count))
	require.Equal(t, 3, count)
}

func TestOpenAndCheckpointTruncateOnFreshFile(t *testing.T) {
	path := tempDBPath(t)
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, OpenAndCheckpointTruncate(context.Background(), path))
}
