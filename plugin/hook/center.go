package hook

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrInterrupt signals that a Hook handler wants to stop further processing.
var ErrInterrupt = errors.New("hook interrupted")

// HookFn is a hook handler function.
// Returns (modified data, nil) to continue, or (data, ErrInterrupt) to stop.
// Any other error is reported to the error handler; the chain continues
// with the data as it was before the failing handler.
type HookFn func(ctx context.Context, event string, data interface{}) (interface{}, error)

// ErrorFn receives non-interrupt handler errors.
type ErrorFn func(event, name string, err error)

type hookEntry struct {
	priority int
	fn       HookFn
	name     string
}

// HookCenter manages event hook registrations.
type HookCenter struct {
	mu      sync.RWMutex
	hooks   map[string][]*hookEntry
	onError ErrorFn
}

// NewHookCenter creates a new HookCenter.
func NewHookCenter() *HookCenter {
	return &HookCenter{hooks: make(map[string][]*hookEntry)}
}

// SetErrorHandler installs fn to be told about failing handlers.
func (hc *HookCenter) SetErrorHandler(fn ErrorFn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.onError = fn
}

// Register adds a HookFn for the given event with the given priority (lower
// runs first; equal priorities run in registration order). name identifies
// the handler in error reports.
func (hc *HookCenter) Register(event string, priority int, name string, fn HookFn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	entries := append(hc.hooks[event], &hookEntry{priority: priority, fn: fn, name: name})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	hc.hooks[event] = entries
}

// Trigger executes all registered hooks for event in priority order.
// Data flows through each handler, allowing modification.
// If any handler returns ErrInterrupt, execution stops.
func (hc *HookCenter) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	hc.mu.RLock()
	entries := make([]*hookEntry, len(hc.hooks[event]))
	copy(entries, hc.hooks[event])
	onError := hc.onError
	hc.mu.RUnlock()

	for _, e := range entries {
		out, err := e.fn(ctx, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err != nil {
			if onError != nil {
				onError(event, e.name, err)
			}
			continue
		}
		data = out
	}
	return data, nil
}

// ---- Hook events ----

const (
	// BeforeTurnResolve receives *TurnContext before the resolver runs.
	// Returning ErrInterrupt rejects the move.
	BeforeTurnResolve = "before_turn_resolve"
	// AfterTurnResolve receives *TurnContext once the turn is persisted.
	AfterTurnResolve = "after_turn_resolve"
	// OnBattleStart receives *BattleContext.
	OnBattleStart = "on_battle_start"
	// OnBattleEnd receives *BattleContext when a battle becomes terminal.
	OnBattleEnd = "on_battle_end"
	// OnMonsterCreated receives *MonsterContext.
	OnMonsterCreated = "on_monster_created"
)

// TurnContext is the payload of the turn events.
type TurnContext struct {
	BattleID     int64
	AccountID    int64
	Turn         int
	PlayerMoveID int64
	OppMoveID    int64
	// Result is a battle.TurnResult; nil before resolution.
	Result interface{}
}

// BattleContext is the payload of the battle lifecycle events.
type BattleContext struct {
	BattleID  int64
	AccountID int64
	MonsterID int64
	Winner    string
}

// MonsterContext is the payload of OnMonsterCreated.
type MonsterContext struct {
	AccountID int64
	MonsterID int64
	Name      string
}
