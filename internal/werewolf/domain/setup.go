package domain

import (
	"errors"
	"fmt"
	"math/rand"
)

// NumWerewolves is the standard pack size.
const NumWerewolves = 2

// ErrTooFewPlayers indicates a roster too small to fill the mandatory roles.
var ErrTooFewPlayers = errors.New("not enough players for a game")

// SetupInput describes how to assemble a fresh game.
type SetupInput struct {
	SessionID string
	// Names is the full roster. Role assignment shuffles a copy, so the
	// caller's order carries no role information.
	Names []string
	// Personalities optionally keys free-text personality hints by name.
	Personalities map[string]string
	// FixedRoles optionally pins names to roles before random assignment
	// fills the rest. Used when a participant picked their role up front.
	FixedRoles map[string]Role
}

// Setup assembles a game state with randomly assigned roles: two werewolves,
// one seer, one doctor, the rest villagers. Every player's view is
// initialized at round zero over the full roster, and each werewolf learns
// its partner.
func Setup(input SetupInput, rng *rand.Rand) (*GameState, error) {
	if len(input.Names) < NumWerewolves+3 {
		return nil, fmt.Errorf("have %d players, need at least %d: %w",
			len(input.Names), NumWerewolves+3, ErrTooFewPlayers)
	}

	seen := make(map[string]bool, len(input.Names))
	for _, name := range input.Names {
		if seen[name] {
			return nil, fmt.Errorf("%s: %w", name, ErrDuplicateName)
		}
		seen[name] = true
	}

	assignment, err := assignRoles(input, rng)
	if err != nil {
		return nil, err
	}

	newPlayer := func(name string, role Role) *Player {
		return NewPlayer(name, role, input.Personalities[name])
	}

	var seer, doctor *Player
	var werewolves, villagers []*Player
	for _, name := range input.Names {
		switch assignment[name] {
		case RoleSeer:
			seer = newPlayer(name, RoleSeer)
		case RoleDoctor:
			doctor = newPlayer(name, RoleDoctor)
		case RoleWerewolf:
			werewolves = append(werewolves, newPlayer(name, RoleWerewolf))
		default:
			villagers = append(villagers, newPlayer(name, RoleVillager))
		}
	}

	state, err := NewGameState(input.SessionID, seer, doctor, werewolves, villagers)
	if err != nil {
		return nil, err
	}

	roster := state.AllNames()
	for _, p := range state.Players {
		otherWolf := ""
		if p.Role == RoleWerewolf {
			for _, w := range state.Werewolves {
				if w.Name != p.Name {
					otherWolf = w.Name
				}
			}
		}
		p.InitializeView(0, roster, otherWolf)
	}
	return state, nil
}

// assignRoles pins fixed roles first and deals the remaining roles over a
// shuffled copy of the free names.
func assignRoles(input SetupInput, rng *rand.Rand) (map[string]Role, error) {
	assignment := make(map[string]Role, len(input.Names))
	need := map[Role]int{
		RoleSeer:     1,
		RoleDoctor:   1,
		RoleWerewolf: NumWerewolves,
	}

	var free []string
	for _, name := range input.Names {
		role, pinned := input.FixedRoles[name]
		if !pinned {
			free = append(free, name)
			continue
		}
		if !role.Valid() {
			return nil, fmt.Errorf("fixed role %q for %s is invalid", role, name)
		}
		if role != RoleVillager {
			if need[role] == 0 {
				return nil, fmt.Errorf("fixed role %s for %s exceeds the role count", role, name)
			}
			need[role]--
		}
		assignment[name] = role
	}

	rng.Shuffle(len(free), func(i, j int) {
		free[i], free[j] = free[j], free[i]
	})

	for _, role := range []Role{RoleSeer, RoleDoctor, RoleWerewolf} {
		for ; need[role] > 0; need[role]-- {
			if len(free) == 0 {
				return nil, fmt.Errorf("assign %s: %w", role, ErrTooFewPlayers)
			}
			assignment[free[0]] = role
			free = free[1:]
		}
	}
	for _, name := range free {
		assignment[name] = RoleVillager
	}
	return assignment, nil
}
