package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite"
)

// DefaultPath returns $XDG_STATE_HOME/gsb/history.db, creating parent
// directories as needed.
func DefaultPath() (string, error) {
	p, err := xdg.StateFile("gsb/history.db")
	if err != nil {
		return "", fmt.Errorf("resolve history path: %w", err)
	}
	return p, nil
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens the history database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		device TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		applied INTEGER NOT NULL,
		unchanged INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		committed INTEGER NOT NULL,
		commit_hash TEXT,
		error TEXT,
		metadata TEXT
	);
	CREATE TABLE IF NOT EXISTS run_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		item TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_run_items_run ON run_items(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores a run and its item outcomes in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, run Run, items []ItemOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if run.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(run.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, command, device, started_at, finished_at, applied, unchanged, skipped, failed, committed, commit_hash, error, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Command, run.Device, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.Applied, run.Unchanged, run.Skipped, run.Failed, run.Committed, run.Commit, run.Error, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, it := range items {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_items (run_id, item, outcome, detail) VALUES (?, ?, ?, ?)",
			run.ID, it.Item, string(it.Outcome), it.Detail,
		); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns the newest runs first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, device, started_at, finished_at, applied, unchanged, skipped, failed, committed, commit_hash, error, metadata
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
			commit, errText   sql.NullString
			metadataJSON      []byte
		)
		if err := rows.Scan(&r.ID, &r.Command, &r.Device, &started, &finished,
			&r.Applied, &r.Unchanged, &r.Skipped, &r.Failed, &r.Committed, &commit, &errText, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		r.Commit = commit.String
		r.Error = errText.String
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Items returns the item outcomes of a run in insertion order.
func (s *SQLiteStore) Items(ctx context.Context, runID string) ([]ItemOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, item, outcome, detail FROM run_items WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []ItemOutcome
	for rows.Next() {
		var (
			it      ItemOutcome
			outcome string
			detail  sql.NullString
		)
		if err := rows.Scan(&it.RunID, &it.Item, &outcome, &detail); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Outcome = Outcome(outcome)
		it.Detail = detail.String
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
