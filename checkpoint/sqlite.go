package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/internal/util"
)

// ConnInfo addresses the checkpoint backend. Host/Port/DB mirror networked
// backends; the SQLite store derives its file path from Path, falling back
// to a DB-numbered file in the working directory.
type ConnInfo struct {
	Host string
	Port int
	DB   int
	Path string
}

func (c ConnInfo) dbPath() string {
	if c.Path != "" {
		return c.Path
	}
	return fmt.Sprintf("memorymesh-checkpoints-%d.db", c.DB)
}

// SQLiteStore is the canonical durable checkpoint storage.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates/opens the checkpoint database addressed by info.
func NewSQLiteStore(info ConnInfo) (*SQLiteStore, error) {
	path := info.dbPath()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create checkpoint db dir: %v", core.ErrCheckpoint, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %v", core.ErrCheckpoint, err)
	}
	// Single-process store. One shared connection avoids writer lock
	// contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			state_json TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS checkpoints_thread_idx ON checkpoints(thread_id, created_at_ms DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: init schema: %v", core.ErrCheckpoint, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Acquire implements core.CheckpointStore. The returned handle owns a
// dedicated connection until Release.
func (s *SQLiteStore) Acquire(ctx context.Context) (core.CheckpointHandle, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %v", core.ErrCheckpoint, err)
	}
	return &sqliteHandle{conn: conn}, nil
}

type sqliteHandle struct {
	conn    *sql.Conn
	release sync.Once
}

// Get returns the most recent checkpoint for a thread, or nil when none
// exists.
func (h *sqliteHandle) Get(ctx context.Context, threadID string) (*core.Checkpoint, error) {
	row := h.conn.QueryRowContext(ctx,
		`SELECT state_json, created_at_ms, updated_at_ms FROM checkpoints
		 WHERE thread_id = ? ORDER BY created_at_ms DESC, updated_at_ms DESC LIMIT 1`, threadID)

	var stateJSON string
	var createdMs, updatedMs int64
	if err := row.Scan(&stateJSON, &createdMs, &updatedMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get checkpoint: %v", core.ErrCheckpoint, err)
	}

	cp := &core.Checkpoint{
		ThreadID: threadID,
		Created:  time.UnixMilli(createdMs).UTC(),
		Updated:  time.UnixMilli(updatedMs).UTC(),
	}
	if err := json.Unmarshal([]byte(stateJSON), &cp.Messages); err != nil {
		return nil, fmt.Errorf("%w: decode checkpoint state: %v", core.ErrCheckpoint, err)
	}
	return cp, nil
}

// Put appends a checkpoint row for the thread. A zero Created stamp is
// filled with the current time.
func (h *sqliteHandle) Put(ctx context.Context, cp *core.Checkpoint) error {
	stateJSON, err := json.Marshal(cp.Messages)
	if err != nil {
		return fmt.Errorf("%w: encode checkpoint state: %v", core.ErrCheckpoint, err)
	}

	now := time.Now().UTC()
	created := cp.Created
	if created.IsZero() {
		created = now
	}

	_, err = h.conn.ExecContext(ctx,
		`INSERT INTO checkpoints (id, thread_id, state_json, created_at_ms, updated_at_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		util.NewID(), cp.ThreadID, string(stateJSON), created.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: put checkpoint: %v", core.ErrCheckpoint, err)
	}
	return nil
}

// DeleteOlderThan removes checkpoints for the thread older than maxAge.
func (h *sqliteHandle) DeleteOlderThan(ctx context.Context, threadID string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge).UnixMilli()
	res, err := h.conn.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE thread_id = ? AND created_at_ms < ?`, threadID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: delete checkpoints: %v", core.ErrCheckpoint, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// Release returns the connection to the pool. Idempotent.
func (h *sqliteHandle) Release() error {
	var err error
	h.release.Do(func() { err = h.conn.Close() })
	return err
}
