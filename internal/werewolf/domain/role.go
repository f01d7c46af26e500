package domain

// Role identifies a player's hidden role. Roles are immutable after a game
// is assembled and serialize to their string labels.
type Role string

const (
	// RoleVillager has no night action and wins with the village.
	RoleVillager Role = "Villager"
	// RoleWerewolf eliminates one player per night.
	RoleWerewolf Role = "Werewolf"
	// RoleSeer investigates one player per night.
	RoleSeer Role = "Seer"
	// RoleDoctor protects one player per night.
	RoleDoctor Role = "Doctor"
)

// Valid reports whether the role is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleVillager, RoleWerewolf, RoleSeer, RoleDoctor:
		return true
	}
	return false
}

// NightAction describes the capability a role exercises during the night
// phase. The game master consults this table instead of probing agents for
// role-specific behavior.
type NightAction int

const (
	// NightActionNone means the role sleeps through the night.
	NightActionNone NightAction = iota
	// NightActionEliminate removes a player from the game.
	NightActionEliminate
	// NightActionInvestigate reveals a player's role to the seer.
	NightActionInvestigate
	// NightActionProtect shields a player from elimination.
	NightActionProtect
)

// NightAction returns the night capability for the role.
func (r Role) NightAction() NightAction {
	switch r {
	case RoleWerewolf:
		return NightActionEliminate
	case RoleSeer:
		return NightActionInvestigate
	case RoleDoctor:
		return NightActionProtect
	}
	return NightActionNone
}

// Faction identifies a winning side. An empty faction means the game is
// still undecided.
type Faction string

const (
	// FactionWerewolves wins on parity or majority over the village.
	FactionWerewolves Faction = "Werewolves"
	// FactionVillagers wins once every werewolf has been removed.
	FactionVillagers Faction = "Villagers"
)
