package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/inovacc/ghnotify/internal/model"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLite implements Store on a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path and migrates it.
func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := NewMigrator(db).MigrateUp(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Ping() error {
	return s.db.Ping()
}

func (s *SQLite) SyncState() (model.SyncState, error) {
	var (
		state    model.SyncState
		lastSync sql.NullInt64
	)

	err := s.db.QueryRow(`SELECT last_modified, etag, query_key, last_sync_at FROM sync_state WHERE id = 1`).
		Scan(&state.LastModified, &state.ETag, &state.QueryKey, &lastSync)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncState{}, nil
	}

	if err != nil {
		return model.SyncState{}, fmt.Errorf("reading sync state: %w", err)
	}

	if lastSync.Valid {
		state.LastSyncAt = time.Unix(0, lastSync.Int64).UTC()
	}

	return state, nil
}

func (s *SQLite) SeenThread(id string) (model.SeenThread, bool, error) {
	var (
		rec      model.SeenThread
		notified int64
	)

	err := s.db.QueryRow(`SELECT thread_id, updated_at, last_notified_at FROM seen_threads WHERE thread_id = ?`, id).
		Scan(&rec.ThreadID, &rec.UpdatedAt, &notified)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SeenThread{}, false, nil
	}

	if err != nil {
		return model.SeenThread{}, false, fmt.Errorf("reading seen thread: %w", err)
	}

	rec.LastNotifiedAt = time.Unix(0, notified).UTC()

	return rec, true, nil
}

func (s *SQLite) SeenThreads() ([]model.SeenThread, error) {
	rows, err := s.db.Query(`SELECT thread_id, updated_at, last_notified_at FROM seen_threads ORDER BY thread_id`)
	if err != nil {
		return nil, fmt.Errorf("querying seen threads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SeenThread

	for rows.Next() {
		var (
			rec      model.SeenThread
			notified int64
		)

		if err := rows.Scan(&rec.ThreadID, &rec.UpdatedAt, &notified); err != nil {
			return nil, fmt.Errorf("scanning seen thread: %w", err)
		}

		rec.LastNotifiedAt = time.Unix(0, notified).UTC()
		out = append(out, rec)
	}

	return out, rows.Err()
}

func (s *SQLite) CommitCycle(state model.SyncState, seen []model.SeenThread) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, rec := range seen {
		if rec.ThreadID == "" {
			return errors.New("seen thread without id")
		}

		if _, err = tx.Exec(`
			INSERT INTO seen_threads (thread_id, updated_at, last_notified_at) VALUES (?, ?, ?)
			ON CONFLICT(thread_id) DO UPDATE SET
				updated_at = excluded.updated_at,
				last_notified_at = excluded.last_notified_at
		`, rec.ThreadID, rec.UpdatedAt, rec.LastNotifiedAt.UnixNano()); err != nil {
			return fmt.Errorf("upserting seen thread %s: %w", rec.ThreadID, err)
		}
	}

	var lastSync sql.NullInt64
	if !state.LastSyncAt.IsZero() {
		lastSync = sql.NullInt64{Int64: state.LastSyncAt.UnixNano(), Valid: true}
	}

	if _, err = tx.Exec(`
		INSERT INTO sync_state (id, last_modified, etag, query_key, last_sync_at) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_modified = excluded.last_modified,
			etag = excluded.etag,
			query_key = excluded.query_key,
			last_sync_at = excluded.last_sync_at
	`, state.LastModified, state.ETag, state.QueryKey, lastSync); err != nil {
		return fmt.Errorf("writing sync state: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing cycle: %w", err)
	}

	return nil
}

func (s *SQLite) Clear() (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM seen_threads`); err != nil {
		return fmt.Errorf("clearing seen threads: %w", err)
	}

	if _, err = tx.Exec(`DELETE FROM sync_state`); err != nil {
		return fmt.Errorf("clearing sync state: %w", err)
	}

	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
