package arena

import (
	"math/rand"
	"sync"
)

//go:generate go tool mockgen -destination=./mocks/selector_mock.go -package=mocks . MoveSelector

// MoveSelector picks the opponent's move for a turn from its pool of move ids.
type MoveSelector interface {
	ChooseOpponentMove(pool []int64) int64
}

// RandomSelector picks uniformly from the pool.
type RandomSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSelector(seed int64) *RandomSelector {
	return &RandomSelector{rng: rand.New(rand.NewSource(seed))}
}

// ChooseOpponentMove returns 0 for an empty pool.
func (s *RandomSelector) ChooseOpponentMove(pool []int64) int64 {
	if len(pool) == 0 {
		return 0
	}
	s.mu.Lock()
	i := s.rng.Intn(len(pool))
	s.mu.Unlock()
	return pool[i]
}
