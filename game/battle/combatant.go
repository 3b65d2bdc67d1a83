package battle

import "fmt"

// Combatant is the battle-relevant view of a monster. Attack, Defense and
// Speed are template stats; Health and Energy are the current per-battle pools.
type Combatant struct {
	Name    string
	Attack  int
	Defense int
	Speed   int
	Health  int
	Energy  int
	Type    Type
}

// Alive reports whether the combatant still has health left.
func (c Combatant) Alive() bool { return c.Health > 0 }

// Move is an immutable action template.
type Move struct {
	ID                int64
	Name              string
	EnergyCost        int
	AttackMultiplier  float64
	DefenseMultiplier float64
	SpeedMultiplier   float64
	IsDefense         bool
	Type              Type
}

// Side identifies one of the two participants of a battle.
type Side int

const (
	SidePlayer Side = iota
	SideOpponent
)

func (s Side) String() string {
	if s == SideOpponent {
		return "opponent"
	}
	return "player"
}

// MarshalText encodes the side by name so JSON carries "player" or
// "opponent" rather than an ordinal.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "player":
		*s = SidePlayer
	case "opponent":
		*s = SideOpponent
	default:
		return fmt.Errorf("battle: unknown side %q", b)
	}
	return nil
}

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SidePlayer {
		return SideOpponent
	}
	return SidePlayer
}
