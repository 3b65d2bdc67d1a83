package battle

// State is the mutable resource pool of a battle.
type State struct {
	PlayerHealth int `json:"player_health"`
	PlayerEnergy int `json:"player_energy"`
	OppHealth    int `json:"opp_health"`
	OppEnergy    int `json:"opp_energy"`
}

// Health returns the current health of side s.
func (s State) Health(side Side) int {
	if side == SideOpponent {
		return s.OppHealth
	}
	return s.PlayerHealth
}

// TurnResult is the immutable outcome of one resolved turn.
type TurnResult struct {
	Before State `json:"before"`
	After  State `json:"after"`
	First  Side  `json:"first"`

	// PlayerDamage is dealt by the player to the opponent, OppDamage the reverse.
	// Both are always computed; the Landed flags tell whether they were applied.
	PlayerDamage       int  `json:"player_damage"`
	OppDamage          int  `json:"opp_damage"`
	PlayerDamageLanded bool `json:"player_damage_landed"`
	OppDamageLanded    bool `json:"opp_damage_landed"`

	PlayerEffectiveness float64 `json:"player_effectiveness"`
	OppEffectiveness    float64 `json:"opp_effectiveness"`
}

// Damage returns the damage dealt by side s.
func (r TurnResult) Damage(s Side) int {
	if s == SideOpponent {
		return r.OppDamage
	}
	return r.PlayerDamage
}

// Landed reports whether the damage dealt by side s was applied.
func (r TurnResult) Landed(s Side) bool {
	if s == SideOpponent {
		return r.OppDamageLanded
	}
	return r.PlayerDamageLanded
}

// ResolveTurn resolves one full turn in which the player (attacker) uses
// playerMove and the opponent (defender) uses opponentMove. Health and Energy
// of the two combatants are the current battle pools.
//
// The first mover always lands its hit. The second mover only retaliates if
// it still has health above zero afterwards. Energy costs are paid by both
// sides unconditionally and may push energy below zero.
func ResolveTurn(playerMove Move, attacker Combatant, opponentMove Move, defender Combatant) TurnResult {
	before := State{
		PlayerHealth: attacker.Health,
		PlayerEnergy: attacker.Energy,
		OppHealth:    defender.Health,
		OppEnergy:    defender.Energy,
	}
	res := TurnResult{
		Before:              before,
		First:               FirstMover(playerMove, attacker, opponentMove, defender),
		PlayerDamage:        Damage(playerMove, attacker, opponentMove, defender),
		OppDamage:           Damage(opponentMove, defender, playerMove, attacker),
		PlayerEffectiveness: Effectiveness(playerMove.Type, defender.Type),
		OppEffectiveness:    Effectiveness(opponentMove.Type, attacker.Type),
	}

	after := before
	if res.First == SidePlayer {
		after.OppHealth -= res.PlayerDamage
		res.PlayerDamageLanded = true
		if after.OppHealth > 0 {
			after.PlayerHealth -= res.OppDamage
			res.OppDamageLanded = true
		}
	} else {
		after.PlayerHealth -= res.OppDamage
		res.OppDamageLanded = true
		if after.PlayerHealth > 0 {
			after.OppHealth -= res.PlayerDamage
			res.PlayerDamageLanded = true
		}
	}

	after.PlayerEnergy -= playerMove.EnergyCost
	after.OppEnergy -= opponentMove.EnergyCost
	res.After = after
	return res
}
