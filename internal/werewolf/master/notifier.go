package master

import (
	"context"
	"log"
)

// EventKind classifies moderator broadcasts.
type EventKind string

const (
	EventPhaseChange  EventKind = "phase_change"
	EventDebateUpdate EventKind = "debate_update"
	EventVotingUpdate EventKind = "voting_update"
	EventPlayerUpdate EventKind = "player_update"
	EventAnnouncement EventKind = "announcement"
	EventGameState    EventKind = "game_state"
)

// Event is a single moderator broadcast to observers of a session.
type Event struct {
	Kind  EventKind      `json:"kind"`
	Round int            `json:"round"`
	Data  map[string]any `json:"data,omitempty"`
}

// Notifier publishes game progress to observers. Implementations must not
// block the game loop; slow consumers drop or buffer on their side.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}

// LogNotifier writes events to the standard logger, for offline simulations.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event Event) {
	log.Printf("round %d %s: %v", event.Round, event.Kind, event.Data)
}
