package battle

// Outcome is the terminal state of a battle, or OutcomeInProgress.
type Outcome int

const (
	OutcomeInProgress Outcome = iota
	OutcomePlayerDefeated
	OutcomeOpponentDefeated
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlayerDefeated:
		return "player_defeated"
	case OutcomeOpponentDefeated:
		return "opponent_defeated"
	default:
		return "in_progress"
	}
}

// Terminal reports whether the battle is over.
func (o Outcome) Terminal() bool { return o != OutcomeInProgress }

// Winner returns the winning side of a terminal outcome.
func (o Outcome) Winner() (Side, bool) {
	switch o {
	case OutcomePlayerDefeated:
		return SideOpponent, true
	case OutcomeOpponentDefeated:
		return SidePlayer, true
	}
	return SidePlayer, false
}

func defeatOf(s Side) Outcome {
	if s == SideOpponent {
		return OutcomeOpponentDefeated
	}
	return OutcomePlayerDefeated
}

// Evaluate derives the outcome from health, checking the side that acted
// first this turn before the other one. Both sides at or below zero is
// reported as the first mover's defeat; there is no draw.
func Evaluate(s State, first Side) Outcome {
	if s.Health(first) <= 0 {
		return defeatOf(first)
	}
	if s.Health(first.Other()) <= 0 {
		return defeatOf(first.Other())
	}
	return OutcomeInProgress
}
