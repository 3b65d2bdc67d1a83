package battle

// EffectiveSpeed is the move's speed multiplier applied to the combatant's speed.
func EffectiveSpeed(m Move, c Combatant) float64 {
	return m.SpeedMultiplier * float64(c.Speed)
}

// FirstMover decides which side acts first this turn.
//
// A defensive move has priority when exactly one side picked one. Otherwise
// the higher effective speed wins and an exact tie goes to the player.
func FirstMover(playerMove Move, player Combatant, oppMove Move, opp Combatant) Side {
	switch {
	case playerMove.IsDefense && !oppMove.IsDefense:
		return SidePlayer
	case oppMove.IsDefense && !playerMove.IsDefense:
		return SideOpponent
	}
	if EffectiveSpeed(oppMove, opp) > EffectiveSpeed(playerMove, player) {
		return SideOpponent
	}
	return SidePlayer
}
