package domain

import "fmt"

// Round records one full night+day cycle. Rounds are appended to the game
// state and never removed; after Success is set the master stops mutating the
// record.
type Round struct {
	// Players is the alive roster carried into the round, shrunk in place as
	// the night and day phases remove names.
	Players []string `json:"players"`

	// Night and day outcomes, each set at most once per round. Empty means
	// the phase did not produce a target.
	Eliminated string `json:"eliminated,omitempty"`
	Unmasked   string `json:"unmasked,omitempty"`
	Protected  string `json:"protected,omitempty"`
	Exiled     string `json:"exiled,omitempty"`

	Debate []DebateTurn `json:"debate,omitempty"`

	// Votes holds one voter→target mapping per voting round; multiple voting
	// rounds can occur within a single day phase.
	Votes []map[string]string `json:"votes,omitempty"`

	// Bids holds one player→bid mapping per debate turn.
	Bids []map[string]int `json:"bids,omitempty"`

	// Success is set once every phase completed without the game ending
	// mid-round.
	Success bool `json:"success"`
}

// NewRound creates an empty round over a copy of the given roster.
func NewRound(players []string) *Round {
	roster := make([]string, len(players))
	copy(roster, players)
	return &Round{Players: roster}
}

// RemovePlayer removes a name from the round's alive roster. Removing an
// absent name indicates a state-machine bug and surfaces loudly.
func (r *Round) RemovePlayer(name string) error {
	for i, p := range r.Players {
		if p == name {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove %s from round roster: %w", name, ErrPlayerNotInView)
}

// Contains reports whether the name is still alive in this round.
func (r *Round) Contains(name string) bool {
	for _, p := range r.Players {
		if p == name {
			return true
		}
	}
	return false
}
