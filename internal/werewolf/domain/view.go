package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPlayerNotInView indicates a roster removal for a name the view does
	// not hold. A name removed once must never reappear, so this is a
	// state-machine bug, not a recoverable condition.
	ErrPlayerNotInView = errors.New("player not in current players")
)

// DebateTurn is a single contribution to the day-phase debate.
type DebateTurn struct {
	Speaker  string `json:"speaker"`
	Dialogue string `json:"dialogue"`
}

// GameView is a player's private perspective on the shared game state. It is
// owned exclusively by its player: the game master pushes updates into it and
// nothing else mutates it.
type GameView struct {
	RoundNumber    int          `json:"round_number"`
	CurrentPlayers []string     `json:"current_players"`
	Debate         []DebateTurn `json:"debate"`
	OtherWolf      string       `json:"other_wolf,omitempty"`
}

// NewGameView creates a view over a copy of the provided roster.
func NewGameView(roundNumber int, currentPlayers []string, otherWolf string) *GameView {
	players := make([]string, len(currentPlayers))
	copy(players, currentPlayers)
	return &GameView{
		RoundNumber:    roundNumber,
		CurrentPlayers: players,
		OtherWolf:      otherWolf,
	}
}

// UpdateDebate appends a new dialogue entry to the debate transcript.
func (v *GameView) UpdateDebate(speaker, dialogue string) {
	v.Debate = append(v.Debate, DebateTurn{Speaker: speaker, Dialogue: dialogue})
}

// ClearDebate drops the transcript at a round boundary. Observations held by
// the player are unaffected.
func (v *GameView) ClearDebate() {
	v.Debate = nil
}

// RemovePlayer removes a name from the current roster. Names shrink only;
// removing an absent name is an invariant violation and surfaces loudly.
func (v *GameView) RemovePlayer(name string) error {
	for i, p := range v.CurrentPlayers {
		if p == name {
			v.CurrentPlayers = append(v.CurrentPlayers[:i], v.CurrentPlayers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove %s: %w", name, ErrPlayerNotInView)
}

// Contains reports whether the name is still in the view's roster.
func (v *GameView) Contains(name string) bool {
	for _, p := range v.CurrentPlayers {
		if p == name {
			return true
		}
	}
	return false
}
