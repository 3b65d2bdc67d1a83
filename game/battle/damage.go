package battle

import "math"

// RawDamage is the unrounded damage ratio for attacker using atkMove against
// defender, who chose defMove this turn. The defender's own move mitigates
// incoming damage through its defense multiplier.
//
//	raw = (atkMove.AttackMultiplier * attacker.Attack * effectiveness) /
//	      (defMove.DefenseMultiplier * defender.Defense)
//
// No validation: a zero divisor yields +Inf.
func RawDamage(atkMove Move, attacker Combatant, defMove Move, defender Combatant) float64 {
	mult := Effectiveness(atkMove.Type, defender.Type)
	num := atkMove.AttackMultiplier * float64(attacker.Attack) * mult
	den := defMove.DefenseMultiplier * float64(defender.Defense)
	return num / den
}

// Damage scales RawDamage by 10 and rounds to the nearest integer.
func Damage(atkMove Move, attacker Combatant, defMove Move, defender Combatant) int {
	return int(math.Round(RawDamage(atkMove, attacker, defMove, defender) * 10))
}
