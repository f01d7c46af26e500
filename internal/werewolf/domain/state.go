package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingSeer indicates a game assembled without a seer.
	ErrMissingSeer = errors.New("seer is required")
	// ErrMissingDoctor indicates a game assembled without a doctor.
	ErrMissingDoctor = errors.New("doctor is required")
	// ErrDuplicateName indicates two players sharing an identity key.
	ErrDuplicateName = errors.New("duplicate player name")
	// ErrRoleMismatch indicates a player filed under the wrong roster.
	ErrRoleMismatch = errors.New("player role does not match roster")
	// ErrUnknownPlayer indicates a lookup for a name outside the session.
	ErrUnknownPlayer = errors.New("unknown player")
)

// GameState is the session-level aggregate: the role rosters, the ordered
// round history and the terminal winner flag. The game master is its single
// writer.
type GameState struct {
	SessionID  string    `json:"session_id"`
	Seer       *Player   `json:"seer"`
	Doctor     *Player   `json:"doctor"`
	Werewolves []*Player `json:"werewolves"`
	Villagers  []*Player `json:"villagers"`

	// Players indexes every participant by name. Derived from the rosters at
	// construction and after deserialization; not serialized itself.
	Players map[string]*Player `json:"-"`

	Rounds []*Round `json:"rounds,omitempty"`

	// Winner is empty until the game ends. Once set it is terminal.
	Winner Faction `json:"winner,omitempty"`

	// ErrorMessage records why a session aborted, when it did.
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewGameState assembles a session from its role rosters. Every player must
// appear in exactly one roster under the matching role and names must be
// unique.
func NewGameState(sessionID string, seer, doctor *Player, werewolves, villagers []*Player) (*GameState, error) {
	if seer == nil {
		return nil, ErrMissingSeer
	}
	if doctor == nil {
		return nil, ErrMissingDoctor
	}
	if seer.Role != RoleSeer {
		return nil, fmt.Errorf("seer roster holds %s %s: %w", seer.Role, seer.Name, ErrRoleMismatch)
	}
	if doctor.Role != RoleDoctor {
		return nil, fmt.Errorf("doctor roster holds %s %s: %w", doctor.Role, doctor.Name, ErrRoleMismatch)
	}
	for _, w := range werewolves {
		if w.Role != RoleWerewolf {
			return nil, fmt.Errorf("werewolf roster holds %s %s: %w", w.Role, w.Name, ErrRoleMismatch)
		}
	}
	for _, v := range villagers {
		if v.Role != RoleVillager {
			return nil, fmt.Errorf("villager roster holds %s %s: %w", v.Role, v.Name, ErrRoleMismatch)
		}
	}

	state := &GameState{
		SessionID:  sessionID,
		Seer:       seer,
		Doctor:     doctor,
		Werewolves: werewolves,
		Villagers:  villagers,
	}
	if err := state.rebuildIndex(); err != nil {
		return nil, err
	}
	return state, nil
}

// rebuildIndex derives the name→player map from the rosters.
func (s *GameState) rebuildIndex() error {
	players := make(map[string]*Player)
	for _, p := range s.roster() {
		if _, exists := players[p.Name]; exists {
			return fmt.Errorf("%s: %w", p.Name, ErrDuplicateName)
		}
		players[p.Name] = p
	}
	s.Players = players
	return nil
}

// roster returns every participant in stable order: villagers, werewolves,
// doctor, seer.
func (s *GameState) roster() []*Player {
	players := make([]*Player, 0, len(s.Villagers)+len(s.Werewolves)+2)
	players = append(players, s.Villagers...)
	players = append(players, s.Werewolves...)
	if s.Doctor != nil {
		players = append(players, s.Doctor)
	}
	if s.Seer != nil {
		players = append(players, s.Seer)
	}
	return players
}

// AllNames returns every participant name in stable roster order.
func (s *GameState) AllNames() []string {
	roster := s.roster()
	names := make([]string, 0, len(roster))
	for _, p := range roster {
		names = append(names, p.Name)
	}
	return names
}

// Player looks up a participant by name.
func (s *GameState) Player(name string) (*Player, error) {
	p, ok := s.Players[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownPlayer)
	}
	return p, nil
}

// CurrentRound returns the most recent round, or nil before the first round
// starts.
func (s *GameState) CurrentRound() *Round {
	if len(s.Rounds) == 0 {
		return nil
	}
	return s.Rounds[len(s.Rounds)-1]
}

// WinnerFor evaluates the win condition over the given alive roster. The
// werewolves win on parity or majority; the villagers win once no werewolf
// remains; otherwise the game continues.
func (s *GameState) WinnerFor(roster []string) Faction {
	wolves := 0
	for _, name := range roster {
		if p, ok := s.Players[name]; ok && p.Role == RoleWerewolf {
			wolves++
		}
	}
	others := len(roster) - wolves
	if wolves >= others {
		return FactionWerewolves
	}
	if wolves == 0 {
		return FactionVillagers
	}
	return ""
}

// UnmarshalJSON restores a state and rebuilds the derived player index.
func (s *GameState) UnmarshalJSON(data []byte) error {
	type stateAlias GameState
	var decoded stateAlias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = GameState(decoded)
	return s.rebuildIndex()
}
