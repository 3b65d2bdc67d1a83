package arena

import (
	"github.com/sketchmon/arena/game/battle"
	"github.com/sketchmon/arena/model"
)

func playerCombatant(m *model.Monster, b *model.Battle) battle.Combatant {
	return battle.Combatant{
		Name:    m.Name,
		Attack:  m.Attack,
		Defense: m.Defense,
		Speed:   m.Speed,
		Health:  b.PlayerHealth,
		Energy:  b.PlayerEnergy,
		Type:    battle.ParseType(m.Type),
	}
}

func opponentCombatant(e *model.EnemyMonster, b *model.Battle) battle.Combatant {
	return battle.Combatant{
		Name:    e.Name,
		Attack:  e.Attack,
		Defense: e.Defense,
		Speed:   e.Speed,
		Health:  b.OppHealth,
		Energy:  b.OppEnergy,
		Type:    battle.ParseType(e.Type),
	}
}

func toBattleMove(m *model.Move) battle.Move {
	return battle.Move{
		ID:                m.ID,
		Name:              m.Name,
		EnergyCost:        m.EnergyCost,
		AttackMultiplier:  m.AttackMultiplier,
		DefenseMultiplier: m.DefenseMultiplier,
		SpeedMultiplier:   m.SpeedMultiplier,
		IsDefense:         m.IsDefense,
		Type:              battle.ParseType(m.Type),
	}
}

// validCombatant guards the resolver against zero divisors.
func validCombatant(c battle.Combatant) bool {
	return c.Attack > 0 && c.Defense > 0 && c.Speed > 0
}

func validMove(m battle.Move) bool {
	return m.AttackMultiplier > 0 && m.DefenseMultiplier > 0 && m.SpeedMultiplier > 0
}

func stateOf(b *model.Battle) battle.State {
	return battle.State{
		PlayerHealth: b.PlayerHealth,
		PlayerEnergy: b.PlayerEnergy,
		OppHealth:    b.OppHealth,
		OppEnergy:    b.OppEnergy,
	}
}

// outcomeOf prefers the recorded winner and falls back to the health pools.
func outcomeOf(b *model.Battle) battle.Outcome {
	switch b.Winner {
	case model.WinnerPlayer:
		return battle.OutcomeOpponentDefeated
	case model.WinnerOpponent:
		return battle.OutcomePlayerDefeated
	}
	return battle.Evaluate(stateOf(b), battle.SidePlayer)
}

func winnerOf(o battle.Outcome) string {
	side, ok := o.Winner()
	if !ok {
		return model.WinnerNone
	}
	if side == battle.SideOpponent {
		return model.WinnerOpponent
	}
	return model.WinnerPlayer
}
