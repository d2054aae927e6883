// Package dbfile wraps the narrow slice of SQLite control surface the
// backup engine needs: opening a database in WAL mode with checkpointing
// disabled, pinning the WAL with a long-lived read transaction, and
// truncating the WAL during checkpoint/restore.
package dbfile

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/walguard/walguard/internal/common"
)

// Reader holds a single connection to a local SQLite database file, used to
// pin its WAL against checkpoint truncation while the engine streams WAL
// bytes to object storage.
type Reader struct {
	db *sql.DB
}

// Open opens path, enabling WAL mode and disabling SQLite's own automatic
// checkpointing (the engine owns checkpoint timing instead).
func Open(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.Wrap(common.ErrDatabase, "open "+path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, common.Wrap(common.ErrDatabase, "set journal_mode", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, common.Wrap(common.ErrDatabase, "set busy_timeout", err)
	}
	if _, err := db.Exec(`PRAGMA wal_autocheckpoint = 0`); err != nil {
		db.Close()
		return nil, common.Wrap(common.ErrDatabase, "disable wal_autocheckpoint", err)
	}

	return &Reader{db: db}, nil
}

// BeginPin opens a read transaction and forces it to actually take a
// snapshot by reading from sqlite_master, pinning the current WAL frames
// against truncation by any checkpoint until EndPin is called.
func (r *Reader) BeginPin(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "BEGIN"); err != nil {
		return common.Wrap(common.ErrDatabase, "begin pin transaction", err)
	}
	var dummy int
	row := r.db.QueryRowContext(ctx, "SELECT 1 FROM sqlite_master LIMIT 1")
	if err := row.Scan(&dummy); err != nil && err != sql.ErrNoRows {
		return common.Wrap(common.ErrDatabase, "force pin snapshot", err)
	}
	return nil
}

// EndPin releases the pinning transaction. It is best-effort: a failed
// COMMIT here does not invalidate bytes already streamed.
func (r *Reader) EndPin() error {
	if _, err := r.db.Exec("COMMIT"); err != nil {
		return common.Wrap(common.ErrDatabase, "commit pin transaction", err)
	}
	return nil
}

// CheckpointTruncate runs a TRUNCATE checkpoint, folding the WAL back into
// the main database file and resetting it to zero length. Callers must
// have released any pinning transaction first.
func (r *Reader) CheckpointTruncate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return common.Wrap(common.ErrDatabase, "checkpoint truncate", err)
	}
	return nil
}

// Close releases the underlying connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return common.Wrap(common.ErrDatabase, "close", err)
	}
	return nil
}

// OpenAndCheckpointTruncate opens path, enables WAL mode, truncates any WAL
// present, and closes again — used by restore to fold a replayed WAL
// segment into the restored snapshot before returning control to the
// caller.
func OpenAndCheckpointTruncate(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return common.Wrap(common.ErrDatabase, "open "+path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		return common.Wrap(common.ErrDatabase, "set journal_mode", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return common.Wrap(common.ErrDatabase, "checkpoint truncate", err)
	}
	return nil
}
