// Package balance normalises AI-proposed creature stats into the game's
// per-stat bounds and total power budget.
package balance

import (
	"math"
	"strings"

	"github.com/sketchmon/arena/game/battle"
)

const (
	MinStat   = 1
	MaxStat   = 10
	MinHealth = 10
	MaxHealth = 100

	// BudgetMin and BudgetMax bound attack + defense + health/10.
	BudgetMin = 12
	BudgetMax = 18

	DefaultName        = "Mystery Monster"
	DefaultDescription = "A mysterious creature from the void."
)

// RawStats is the unvalidated stat proposal returned by the sketch analyzer.
// Values may be fractional, out of range or NaN (treated as missing).
type RawStats struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Attack      float64 `json:"attack"`
	Defense     float64 `json:"defense"`
	Speed       float64 `json:"speed"`
	Health      float64 `json:"health"`
	Description string  `json:"description"`
}

// Stats is a balanced, integer stat tuple ready to be stored on a monster.
type Stats struct {
	Name        string      `json:"name"`
	Type        battle.Type `json:"type"`
	Attack      int         `json:"attack"`
	Defense     int         `json:"defense"`
	Speed       int         `json:"speed"`
	Health      int         `json:"health"`
	Description string      `json:"description"`
}

// Budget is the power budget of s: attack + defense + health/10.
func (s Stats) Budget() float64 {
	return float64(s.Attack) + float64(s.Defense) + float64(s.Health)/10
}

// Combatant returns the battle view of s with full health and the given energy.
func (s Stats) Combatant(energy int) battle.Combatant {
	return battle.Combatant{
		Name:    s.Name,
		Attack:  s.Attack,
		Defense: s.Defense,
		Speed:   s.Speed,
		Health:  s.Health,
		Energy:  energy,
		Type:    s.Type,
	}
}

// Balance clamps every stat into range and then rescales attack, defense and
// health towards the [BudgetMin, BudgetMax] budget. Speed is never rescaled.
// The per-stat bounds always hold; the budget target is best effort because
// re-clamping after the rescale can push it back out.
func Balance(raw RawStats) Stats {
	s := Stats{
		Name:        strings.TrimSpace(raw.Name),
		Type:        battle.ParseType(raw.Type),
		Attack:      clampRound(raw.Attack, MinStat, MaxStat),
		Defense:     clampRound(raw.Defense, MinStat, MaxStat),
		Speed:       clampRound(raw.Speed, MinStat, MaxStat),
		Health:      clampRound(raw.Health, MinHealth, MaxHealth),
		Description: strings.TrimSpace(raw.Description),
	}
	if s.Name == "" {
		s.Name = DefaultName
	}
	if s.Description == "" {
		s.Description = DefaultDescription
	}

	budget := s.Budget()
	var factor float64
	switch {
	case budget > BudgetMax:
		factor = BudgetMax / budget
	case budget < BudgetMin:
		factor = BudgetMin / budget
	default:
		return s
	}
	s.Attack = clampRound(float64(s.Attack)*factor, MinStat, MaxStat)
	s.Defense = clampRound(float64(s.Defense)*factor, MinStat, MaxStat)
	s.Health = clampRound(float64(s.Health)*factor, MinHealth, MaxHealth)
	return s
}

// clampRound rounds v to the nearest integer and clamps it into [lo, hi].
// NaN counts as missing and maps to lo.
func clampRound(v float64, lo, hi int) int {
	if math.IsNaN(v) {
		return lo
	}
	r := math.Round(v)
	if r < float64(lo) {
		return lo
	}
	if r > float64(hi) {
		return hi
	}
	return int(r)
}
