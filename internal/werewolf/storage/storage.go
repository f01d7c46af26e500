// Package storage defines persistence for werewolf sessions. Sessions are
// checkpointed after every round so an interrupted game resumes at the first
// unplayed round.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/emirks/werewolf-arena/internal/werewolf/domain"
)

// ErrNotFound indicates the session has no stored checkpoint.
var ErrNotFound = errors.New("session not found")

// Checkpoint is a full session snapshot: the authoritative state plus the
// decision traces collected so far.
type Checkpoint struct {
	State   *domain.GameState
	Logs    []*domain.RoundLog
	SavedAt time.Time
}

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	SessionID string
	Winner    domain.Faction
	Rounds    int
	SavedAt   time.Time
}

// GameStore persists session checkpoints. Saving the same session again
// replaces the previous checkpoint.
type GameStore interface {
	SaveCheckpoint(ctx context.Context, checkpoint Checkpoint) error
	LoadCheckpoint(ctx context.Context, sessionID string) (Checkpoint, error)
	ListSessions(ctx context.Context, limit int) ([]SessionInfo, error)
	Close() error
}
