package balance

import (
	"math/rand"
	"strings"

	"github.com/sketchmon/arena/game/battle"
)

// Stat names a balanced stat for flavor selection.
type Stat string

const (
	StatAttack  Stat = "attack"
	StatDefense Stat = "defense"
	StatHealth  Stat = "health"
	StatSpeed   Stat = "speed"
)

// statPriority breaks ties when ranking stats.
var statPriority = []Stat{StatAttack, StatDefense, StatHealth, StatSpeed}

// TraitMenu holds the phrases flavor text is composed from.
type TraitMenu struct {
	Dominant  map[Stat]string        `yaml:"dominant"`
	Secondary map[Stat][]string      `yaml:"secondary"`
	Types     map[battle.Type]string `yaml:"types"`
}

// DefaultTraits is used when no catalog provides a menu.
var DefaultTraits = TraitMenu{
	Dominant: map[Stat]string{
		StatAttack:  "with jagged claws and oversized fangs",
		StatDefense: "covered in thick armored plates",
		StatHealth:  "with a massive, sturdy body",
		StatSpeed:   "with a sleek, streamlined frame",
	},
	Secondary: map[Stat][]string{
		StatAttack:  {"sharp spikes along its back", "a barbed tail", "glowing eyes full of menace"},
		StatDefense: {"a shell-like carapace", "scaly hide", "a heavy horned brow"},
		StatHealth:  {"broad shoulders", "a thick trunk-like neck", "a rounded belly"},
		StatSpeed:   {"thin wings", "long springy legs", "fins trailing like ribbons"},
	},
	Types: map[battle.Type]string{
		battle.TypeFight:   "a battle-hardened brawler",
		battle.TypeFright:  "a shadowy, unsettling creature",
		battle.TypeFairy:   "a whimsical, sparkling sprite",
		battle.TypeNeutral: "a curious creature",
	},
}

// Ranked orders the four stats from highest to lowest. Health is compared
// on the /10 scale so all four share the 1..10 range; ties keep the fixed
// attack > defense > health > speed order.
func (s Stats) Ranked() []Stat {
	value := map[Stat]float64{
		StatAttack:  float64(s.Attack),
		StatDefense: float64(s.Defense),
		StatHealth:  float64(s.Health) / 10,
		StatSpeed:   float64(s.Speed),
	}
	out := make([]Stat, 0, len(statPriority))
	used := make(map[Stat]bool, len(statPriority))
	for range statPriority {
		var best Stat
		for _, st := range statPriority {
			if used[st] {
				continue
			}
			if best == "" || value[st] > value[best] {
				best = st
			}
		}
		used[best] = true
		out = append(out, best)
	}
	return out
}

// Dominant returns the highest ranked stat and the runner-up.
func (s Stats) Dominant() (dominant, secondary Stat) {
	r := s.Ranked()
	return r[0], r[1]
}

// Flavor composes a feature description of s from menu. The secondary phrase
// is drawn from rng; a nil rng uses the package-level source.
func Flavor(s Stats, menu TraitMenu, rng *rand.Rand) string {
	dom, sec := s.Dominant()

	intro := menu.Types[s.Type]
	if intro == "" {
		intro = DefaultTraits.Types[battle.TypeNeutral]
	}
	parts := []string{intro}
	if p := menu.Dominant[dom]; p != "" {
		parts = append(parts, p)
	}
	desc := strings.Join(parts, " ")

	if opts := menu.Secondary[sec]; len(opts) > 0 {
		var i int
		if rng != nil {
			i = rng.Intn(len(opts))
		} else {
			i = rand.Intn(len(opts))
		}
		desc += " and " + opts[i]
	}
	return capitalize(desc) + "."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
