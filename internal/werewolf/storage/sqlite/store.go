// Package sqlite provides a SQLite-backed session storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	sqlitemigrate "github.com/emirks/werewolf-arena/internal/platform/storage/sqlitemigrate"
	"github.com/emirks/werewolf-arena/internal/werewolf/domain"
	"github.com/emirks/werewolf-arena/internal/werewolf/storage"
	"github.com/emirks/werewolf-arena/internal/werewolf/storage/sqlite/migrations"
)

// Store persists session checkpoints in SQLite. State and logs are stored as
// JSON documents; winner and round count are denormalized for listing.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite session store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveCheckpoint inserts or replaces the checkpoint for its session.
func (s *Store) SaveCheckpoint(ctx context.Context, checkpoint storage.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if checkpoint.State == nil {
		return fmt.Errorf("checkpoint state is required")
	}
	sessionID := strings.TrimSpace(checkpoint.State.SessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	stateJSON, err := json.Marshal(checkpoint.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	logs := checkpoint.Logs
	if logs == nil {
		logs = []*domain.RoundLog{}
	}
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("marshal logs: %w", err)
	}
	savedAt := checkpoint.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sessions (session_id, winner, rounds, state, logs, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id) DO UPDATE SET
		   winner = excluded.winner,
		   rounds = excluded.rounds,
		   state = excluded.state,
		   logs = excluded.logs,
		   saved_at = excluded.saved_at`,
		sessionID,
		string(checkpoint.State.Winner),
		len(checkpoint.State.Rounds),
		string(stateJSON),
		string(logsJSON),
		savedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the stored checkpoint for sessionID.
func (s *Store) LoadCheckpoint(ctx context.Context, sessionID string) (storage.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return storage.Checkpoint{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Checkpoint{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return storage.Checkpoint{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT state, logs, saved_at FROM sessions WHERE session_id = ?`,
		sessionID,
	)
	var stateJSON, logsJSON string
	var savedAt int64
	if err := row.Scan(&stateJSON, &logsJSON, &savedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Checkpoint{}, storage.ErrNotFound
		}
		return storage.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}

	var state domain.GameState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return storage.Checkpoint{}, fmt.Errorf("unmarshal state: %w", err)
	}
	var logs []*domain.RoundLog
	if err := json.Unmarshal([]byte(logsJSON), &logs); err != nil {
		return storage.Checkpoint{}, fmt.Errorf("unmarshal logs: %w", err)
	}
	return storage.Checkpoint{
		State:   &state,
		Logs:    logs,
		SavedAt: time.UnixMilli(savedAt).UTC(),
	}, nil
}

// ListSessions returns stored sessions, most recently saved first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]storage.SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT session_id, winner, rounds, saved_at
		   FROM sessions
		  ORDER BY saved_at DESC, session_id ASC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []storage.SessionInfo
	for rows.Next() {
		var info storage.SessionInfo
		var winner string
		var savedAt int64
		if err := rows.Scan(&info.SessionID, &winner, &info.Rounds, &savedAt); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		info.Winner = domain.Faction(winner)
		info.SavedAt = time.UnixMilli(savedAt).UTC()
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

var _ storage.GameStore = (*Store)(nil)
