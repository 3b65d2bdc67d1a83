package battle

import "strings"

// Type is a combat type tag carried by monsters and moves.
// Fight, Fright and Fairy form a closed advantage cycle; anything else is Neutral.
type Type string

const (
	TypeFight   Type = "Fight"
	TypeFright  Type = "Fright"
	TypeFairy   Type = "Fairy"
	TypeNeutral Type = "Neutral"
)

// advantage[x] = y: a move of type x is super-effective against a defender of type y.
var advantage = map[Type]Type{
	TypeFight:  TypeFright,
	TypeFright: TypeFairy,
	TypeFairy:  TypeFight,
}

// CycleTypes lists the three types that take part in the advantage cycle.
var CycleTypes = []Type{TypeFight, TypeFright, TypeFairy}

// ParseType normalises a free-form type tag. Matching is case-insensitive and
// accepts the "Freight" spelling the analysis prompt used to emit.
// Unrecognised tags map to TypeNeutral.
func ParseType(s string) Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fight":
		return TypeFight
	case "fright", "freight":
		return TypeFright
	case "fairy":
		return TypeFairy
	default:
		return TypeNeutral
	}
}

// InCycle reports whether t takes part in the advantage cycle.
func (t Type) InCycle() bool {
	_, ok := advantage[t]
	return ok
}

// Beats returns the type t is super-effective against.
func (t Type) Beats() (Type, bool) {
	v, ok := advantage[t]
	return v, ok
}

// Effectiveness returns the damage multiplier for a move of type moveType
// hitting a defender of type defenderType: 2.0 for an advantage, 0.5 when the
// defender's type is the one that beats the move, 1.0 otherwise.
// Neutral on either side is always 1.0.
func Effectiveness(moveType, defenderType Type) float64 {
	if !moveType.InCycle() || !defenderType.InCycle() {
		return 1.0
	}
	if advantage[moveType] == defenderType {
		return 2.0
	}
	if advantage[defenderType] == moveType {
		return 0.5
	}
	return 1.0
}
