package domain

import (
	"errors"
	"fmt"
)

// ErrViewNotInitialized indicates an operation that needs a game view ran
// before InitializeView was called.
var ErrViewNotInitialized = errors.New("game view not initialized")

// Player holds the identity and private state of one participant. The name is
// the stable identity key for the whole session; the role never changes after
// creation. Observations grow append-only across rounds while the view is
// rebuilt once per game and mutated by the master as events propagate.
type Player struct {
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	Personality string `json:"personality,omitempty"`

	// Observations are round-tagged private notes, never truncated.
	Observations []string `json:"observations,omitempty"`

	// BiddingRationale carries the reasoning behind the latest bid so later
	// prompts can reference it.
	BiddingRationale string `json:"bidding_rationale,omitempty"`

	// PreviouslyUnmasked records the seer's confirmed roles. It only grows;
	// investigated names are never offered as options again.
	PreviouslyUnmasked map[string]Role `json:"previously_unmasked,omitempty"`

	// View is the player's private perspective, owned exclusively by this
	// player.
	View *GameView `json:"view,omitempty"`
}

// NewPlayer creates a player with the given identity and role.
func NewPlayer(name string, role Role, personality string) *Player {
	return &Player{Name: name, Role: role, Personality: personality}
}

// InitializeView builds the player's game view for a fresh game.
func (p *Player) InitializeView(roundNumber int, currentPlayers []string, otherWolf string) {
	p.View = NewGameView(roundNumber, currentPlayers, otherWolf)
}

// AddObservation appends a round-tagged private note.
func (p *Player) AddObservation(observation string) error {
	if p.View == nil {
		return fmt.Errorf("player %s: %w", p.Name, ErrViewNotInitialized)
	}
	p.Observations = append(p.Observations, fmt.Sprintf("Round %d: %s", p.View.RoundNumber, observation))
	return nil
}

// AddAnnouncement records a moderator announcement in the player's
// observations.
func (p *Player) AddAnnouncement(announcement string) error {
	return p.AddObservation("Moderator Announcement: " + announcement)
}

// VoteOptions returns the legal exile targets: every alive player except the
// voter. Order is stable so timeout defaults are deterministic.
func (p *Player) VoteOptions() ([]string, error) {
	if p.View == nil {
		return nil, fmt.Errorf("player %s: %w", p.Name, ErrViewNotInitialized)
	}
	options := make([]string, 0, len(p.View.CurrentPlayers))
	for _, name := range p.View.CurrentPlayers {
		if name != p.Name {
			options = append(options, name)
		}
	}
	return options, nil
}

// EliminateOptions returns the legal night-kill targets for a werewolf:
// everyone alive except the wolf itself and its partner.
func (p *Player) EliminateOptions() ([]string, error) {
	if p.View == nil {
		return nil, fmt.Errorf("player %s: %w", p.Name, ErrViewNotInitialized)
	}
	options := make([]string, 0, len(p.View.CurrentPlayers))
	for _, name := range p.View.CurrentPlayers {
		if name != p.Name && name != p.View.OtherWolf {
			options = append(options, name)
		}
	}
	return options, nil
}

// InvestigateOptions returns the legal seer targets: everyone alive except
// the seer and any name already unmasked in a previous round.
func (p *Player) InvestigateOptions() ([]string, error) {
	if p.View == nil {
		return nil, fmt.Errorf("player %s: %w", p.Name, ErrViewNotInitialized)
	}
	options := make([]string, 0, len(p.View.CurrentPlayers))
	for _, name := range p.View.CurrentPlayers {
		if name == p.Name {
			continue
		}
		if _, seen := p.PreviouslyUnmasked[name]; seen {
			continue
		}
		options = append(options, name)
	}
	return options, nil
}

// ProtectOptions returns the legal doctor targets: every alive player, the
// doctor included.
func (p *Player) ProtectOptions() ([]string, error) {
	if p.View == nil {
		return nil, fmt.Errorf("player %s: %w", p.Name, ErrViewNotInitialized)
	}
	options := make([]string, len(p.View.CurrentPlayers))
	copy(options, p.View.CurrentPlayers)
	return options, nil
}

// RevealRole records the outcome of a seer investigation: the observation is
// written immediately so future rounds cannot re-target the same name.
func (p *Player) RevealRole(name string, role Role) error {
	if err := p.AddObservation(fmt.Sprintf(
		"During the night, I decided to investigate %s and learned they are a %s.", name, role,
	)); err != nil {
		return err
	}
	if p.PreviouslyUnmasked == nil {
		p.PreviouslyUnmasked = make(map[string]Role)
	}
	p.PreviouslyUnmasked[name] = role
	return nil
}

// WerewolfContext describes the partner situation for werewolf prompts.
func (p *Player) WerewolfContext() string {
	if p.View == nil || p.View.OtherWolf == "" {
		return ""
	}
	if p.View.Contains(p.View.OtherWolf) {
		return fmt.Sprintf("The other Werewolf is %s.", p.View.OtherWolf)
	}
	return fmt.Sprintf(
		"The other Werewolf, %s, was exiled by the Villagers. Only you remain.", p.View.OtherWolf,
	)
}
