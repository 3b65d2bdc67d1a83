// Package resource loads the static game data: move templates and the
// trait-phrase menu used for monster flavor text.
package resource

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/sketchmon/arena/game/balance"
	"github.com/sketchmon/arena/game/battle"
)

// Tiers is the number of move tiers. A player battle draws one move per tier.
const Tiers = 3

var ErrEmptyTier = errors.New("resource: catalog tier has no moves")

// MoveData is one move template as written in the catalog file.
type MoveData struct {
	ID                int64   `yaml:"id"`
	Name              string  `yaml:"name"`
	Tier              int     `yaml:"tier"`
	Type              string  `yaml:"type"`
	EnergyCost        int     `yaml:"energy_cost"`
	AttackMultiplier  float64 `yaml:"attack_multiplier"`
	DefenseMultiplier float64 `yaml:"defense_multiplier"`
	SpeedMultiplier   float64 `yaml:"speed_multiplier"`
	IsDefense         bool    `yaml:"is_defense"`
}

// Move converts the catalog entry into a battle move.
func (m *MoveData) Move() battle.Move {
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

// Catalog holds every move template plus the trait menu.
type Catalog struct {
	Moves  []*MoveData       `yaml:"moves"`
	Traits balance.TraitMenu `yaml:"traits"`

	byID   map[int64]*MoveData
	byTier map[int][]*MoveData
}

// LoadCatalog reads and validates a catalog YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resource: read %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML. A catalog without a
// traits section falls back to balance.DefaultTraits.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("resource: parse catalog: %w", err)
	}
	if len(c.Traits.Dominant) == 0 && len(c.Traits.Secondary) == 0 && len(c.Traits.Types) == 0 {
		c.Traits = balance.DefaultTraits
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	c.byID = make(map[int64]*MoveData, len(c.Moves))
	c.byTier = make(map[int][]*MoveData, Tiers)
	for _, m := range c.Moves {
		if _, dup := c.byID[m.ID]; dup {
			return fmt.Errorf("resource: duplicate move id %d", m.ID)
		}
		if m.Tier < 1 || m.Tier > Tiers {
			return fmt.Errorf("resource: move %d: tier %d out of range", m.ID, m.Tier)
		}
		if m.AttackMultiplier <= 0 || m.DefenseMultiplier <= 0 || m.SpeedMultiplier <= 0 {
			return fmt.Errorf("resource: move %d: multipliers must be positive", m.ID)
		}
		c.byID[m.ID] = m
		c.byTier[m.Tier] = append(c.byTier[m.Tier], m)
	}
	for tier := 1; tier <= Tiers; tier++ {
		if len(c.byTier[tier]) == 0 {
			return fmt.Errorf("%w: %d", ErrEmptyTier, tier)
		}
	}
	return nil
}

// Move looks up a move template by id.
func (c *Catalog) Move(id int64) (*MoveData, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// MoveIDs returns every move id in ascending order. It is the opponent's pool.
func (c *Catalog) MoveIDs() []int64 {
	ids := make([]int64, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DrawPlayerMoves picks one move id per tier, in tier order.
func (c *Catalog) DrawPlayerMoves(rng *rand.Rand) []int64 {
	out := make([]int64, 0, Tiers)
	for tier := 1; tier <= Tiers; tier++ {
		pool := c.byTier[tier]
		var i int
		if rng != nil {
			i = rng.Intn(len(pool))
		} else {
			i = rand.Intn(len(pool))
		}
		out = append(out, pool[i].ID)
	}
	return out
}
