package arena

import "errors"

var (
	ErrMonsterNotFound  = errors.New("arena: monster not found")
	ErrBattleNotFound   = errors.New("arena: battle not found")
	ErrMoveNotFound     = errors.New("arena: move not found")
	ErrMoveNotAllowed   = errors.New("arena: move slot not available in this battle")
	ErrBattleOver       = errors.New("arena: battle already finished")
	ErrBattleConflict   = errors.New("arena: battle was modified concurrently")
	ErrBattleBusy       = errors.New("arena: a turn is already being resolved")
	ErrInvalidCombatant = errors.New("arena: combatant has invalid stats")
	// ErrTurnRejected is returned when a before_turn_resolve hook interrupts the turn.
	ErrTurnRejected = errors.New("arena: turn rejected")
)
