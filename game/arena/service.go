// Package arena runs player-versus-generated-opponent battles on top of the
// pure combat resolver: it loads records, serialises turns, persists the
// result and fans out events.
package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sketchmon/arena/audit"
	"github.com/sketchmon/arena/cache"
	"github.com/sketchmon/arena/config"
	"github.com/sketchmon/arena/game/balance"
	"github.com/sketchmon/arena/game/battle"
	"github.com/sketchmon/arena/middleware"
	"github.com/sketchmon/arena/model"
	"github.com/sketchmon/arena/plugin/hook"
	"github.com/sketchmon/arena/resource"
	"go.uber.org/zap"
)

const defaultLockTTL = 5 * time.Second

var opponentNouns = []string{"Scribble", "Doodle", "Smudge", "Squiggle", "Blot"}

// BattleView is a battle with everything a client needs to render it.
type BattleView struct {
	Battle   *model.Battle       `json:"battle"`
	Monster  *model.Monster      `json:"monster"`
	Opponent *model.EnemyMonster `json:"opponent"`
	Moves    []*model.Move       `json:"moves"`
	Outcome  string              `json:"outcome"`
}

// TurnView is the result of one submitted move.
type TurnView struct {
	Battle  *model.Battle            `json:"battle"`
	Turn    battle.EventTurnResolved `json:"turn"`
	Outcome string                   `json:"outcome"`
}

// Envelope is the pub/sub payload wrapping every battle event.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Service manages battle lifecycles.
type Service struct {
	repo     Repository
	catalog  *resource.Catalog
	cache    cache.Cache
	pubsub   cache.PubSub
	hooks    *hook.HookCenter
	audit    audit.Logger
	selector MoveSelector
	cfg      config.GameConfig
	logger   *zap.Logger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewService creates a battle Service. Hooks, audit and the selector are
// optional and can be set with the With* methods before first use.
func NewService(repo Repository, catalog *resource.Catalog, c cache.Cache, ps cache.PubSub, cfg config.GameConfig, logger *zap.Logger) *Service {
	seed := time.Now().UnixNano()
	return &Service{
		repo:     repo,
		catalog:  catalog,
		cache:    c,
		pubsub:   ps,
		selector: NewRandomSelector(seed),
		cfg:      cfg,
		logger:   logger,
		rng:      rand.New(rand.NewSource(seed + 1)),
	}
}

func (s *Service) WithHooks(hc *hook.HookCenter) *Service {
	s.hooks = hc
	return s
}

func (s *Service) WithAudit(a audit.Logger) *Service {
	s.audit = a
	return s
}

func (s *Service) WithSelector(sel MoveSelector) *Service {
	s.selector = sel
	return s
}

// WithRand replaces the source used for opponent generation and move draws.
func (s *Service) WithRand(rng *rand.Rand) *Service {
	s.mu.Lock()
	s.rng = rng
	s.mu.Unlock()
	return s
}

// StartBattle creates a battle between the account's monster and a freshly
// generated opponent. Both sides start with full health and the configured
// energy; the player draws one move per catalog tier.
func (s *Service) StartBattle(ctx context.Context, accountID, monsterID int64) (*BattleView, error) {
	mon, err := s.repo.GetCombatant(ctx, monsterID)
	if err != nil {
		return nil, err
	}
	if mon.AccountID != accountID {
		return nil, ErrMonsterNotFound
	}

	stats := s.rollOpponent()
	opp := &model.EnemyMonster{
		Name:        stats.Name,
		Type:        string(stats.Type),
		Attack:      stats.Attack,
		Defense:     stats.Defense,
		Speed:       stats.Speed,
		Health:      stats.Health,
		Description: stats.Description,
	}
	s.mu.Lock()
	drawn := s.catalog.DrawPlayerMoves(s.rng)
	s.mu.Unlock()

	b := &model.Battle{
		AccountID:    accountID,
		MonsterID:    mon.ID,
		PlayerHealth: mon.Health,
		PlayerEnergy: s.cfg.StartEnergy,
		OppHealth:    opp.Health,
		OppEnergy:    s.cfg.StartEnergy,
		Moves:        drawn,
	}
	if !validCombatant(playerCombatant(mon, b)) {
		return nil, ErrInvalidCombatant
	}
	if err := s.repo.CreateBattle(ctx, opp, b); err != nil {
		return nil, fmt.Errorf("create battle: %w", err)
	}

	moves, err := s.orderedMoves(ctx, b.Moves)
	if err != nil {
		return nil, err
	}

	if s.hooks != nil {
		s.hooks.Trigger(ctx, hook.OnBattleStart, &hook.BattleContext{
			BattleID:  b.ID,
			AccountID: accountID,
			MonsterID: mon.ID,
		})
	}
	s.record(ctx, audit.ActionBattleStarted, accountID, b.ID, mon.ID, map[string]int64{"monster_id": mon.ID}, b, "")
	s.logger.Info("battle started",
		zap.Int64("battle_id", b.ID),
		zap.Int64("account_id", accountID),
		zap.Int64("monster_id", mon.ID),
		zap.String("opponent", opp.Name))

	return &BattleView{
		Battle:   b,
		Monster:  mon,
		Opponent: opp,
		Moves:    moves,
		Outcome:  battle.OutcomeInProgress.String(),
	}, nil
}

// GetBattle returns a battle owned by accountID.
func (s *Service) GetBattle(ctx context.Context, accountID, battleID int64) (*BattleView, error) {
	b, err := s.repo.GetBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if b.AccountID != accountID {
		return nil, ErrBattleNotFound
	}
	mon, err := s.repo.GetCombatant(ctx, b.MonsterID)
	if err != nil {
		return nil, err
	}
	opp, err := s.repo.GetOpponent(ctx, b.OppMonID)
	if err != nil {
		return nil, err
	}
	moves, err := s.orderedMoves(ctx, b.Moves)
	if err != nil {
		return nil, err
	}
	return &BattleView{
		Battle:   b,
		Monster:  mon,
		Opponent: opp,
		Moves:    moves,
		Outcome:  outcomeOf(b).String(),
	}, nil
}

// SubmitMove resolves one turn in which the player uses the move in slot
// and the opponent uses a move chosen by the selector. Turns of one battle
// are serialised by a cache lock; the write itself is version checked.
func (s *Service) SubmitMove(ctx context.Context, accountID, battleID int64, slot int) (*TurnView, error) {
	start := time.Now()
	unlock, err := s.lock(ctx, battleID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.repo.GetBattle(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if b.AccountID != accountID {
		return nil, ErrBattleNotFound
	}
	if b.Winner != model.WinnerNone || outcomeOf(b).Terminal() {
		return nil, ErrBattleOver
	}
	if slot < 0 || slot >= len(b.Moves) {
		return nil, ErrMoveNotAllowed
	}

	mon, err := s.repo.GetCombatant(ctx, b.MonsterID)
	if err != nil {
		return nil, err
	}
	opp, err := s.repo.GetOpponent(ctx, b.OppMonID)
	if err != nil {
		return nil, err
	}
	attacker := playerCombatant(mon, b)
	defender := opponentCombatant(opp, b)
	if !validCombatant(attacker) || !validCombatant(defender) {
		return nil, ErrInvalidCombatant
	}

	playerMoveID := b.Moves[slot]
	oppMoveID := s.selector.ChooseOpponentMove(s.catalog.MoveIDs())
	moves, err := s.repo.GetMoves(ctx, uniqueIDs(playerMoveID, oppMoveID))
	if err != nil {
		return nil, err
	}
	playerMove := toBattleMove(moves[playerMoveID])
	oppMove := toBattleMove(moves[oppMoveID])
	if !validMove(playerMove) || !validMove(oppMove) {
		return nil, fmt.Errorf("%w: non-positive multiplier", ErrMoveNotFound)
	}

	tc := &hook.TurnContext{
		BattleID:     b.ID,
		AccountID:    accountID,
		Turn:         b.Turn + 1,
		PlayerMoveID: playerMoveID,
		OppMoveID:    oppMoveID,
	}
	if s.hooks != nil {
		if _, err := s.hooks.Trigger(ctx, hook.BeforeTurnResolve, tc); errors.Is(err, hook.ErrInterrupt) {
			return nil, ErrTurnRejected
		}
	}

	res := battle.ResolveTurn(playerMove, attacker, oppMove, defender)
	outcome := battle.Evaluate(res.After, res.First)
	winner := winnerOf(outcome)

	updated, err := s.repo.ApplyTurn(ctx, b.ID, b.Version, res.After, winner)
	if err != nil {
		if !errors.Is(err, ErrBattleConflict) {
			err = fmt.Errorf("apply turn: %w", err)
		}
		s.record(ctx, audit.ActionTurnResolved, accountID, b.ID, mon.ID, map[string]interface{}{"slot": slot}, nil, err.Error())
		return nil, err
	}

	ev := battle.EventTurnResolved{
		BattleID:   b.ID,
		Turn:       updated.Turn,
		First:      res.First.String(),
		PlayerMove: battle.RefMove(playerMove),
		OppMove:    battle.RefMove(oppMove),
		Result:     res,
	}
	s.publish(ctx, b.ID, ev)

	tc.Turn = updated.Turn
	tc.Result = res
	if s.hooks != nil {
		s.hooks.Trigger(ctx, hook.AfterTurnResolve, tc)
	}
	s.record(ctx, audit.ActionTurnResolved, accountID, b.ID, mon.ID,
		map[string]interface{}{"slot": slot, "move_id": playerMoveID},
		ev, "", time.Since(start))

	if outcome.Terminal() {
		s.finish(ctx, updated, outcome)
	}

	s.logger.Debug("turn resolved",
		zap.Int64("battle_id", b.ID),
		zap.Int("turn", updated.Turn),
		zap.String("first", res.First.String()),
		zap.Int("player_damage", res.PlayerDamage),
		zap.Int("opp_damage", res.OppDamage),
		zap.String("outcome", outcome.String()))

	return &TurnView{Battle: updated, Turn: ev, Outcome: outcome.String()}, nil
}

func (s *Service) finish(ctx context.Context, b *model.Battle, outcome battle.Outcome) {
	s.publish(ctx, b.ID, battle.EventBattleEnd{
		BattleID: b.ID,
		Outcome:  outcome.String(),
		Winner:   b.Winner,
	})
	if s.hooks != nil {
		s.hooks.Trigger(ctx, hook.OnBattleEnd, &hook.BattleContext{
			BattleID:  b.ID,
			AccountID: b.AccountID,
			MonsterID: b.MonsterID,
			Winner:    b.Winner,
		})
	}
	s.record(ctx, audit.ActionBattleEnded, b.AccountID, b.ID, b.MonsterID, nil,
		map[string]interface{}{"winner": b.Winner, "turns": b.Turn}, "")
	s.logger.Info("battle finished",
		zap.Int64("battle_id", b.ID),
		zap.String("winner", b.Winner),
		zap.Int("turns", b.Turn))
}

// lock takes the per-battle turn lock and returns its release function.
func (s *Service) lock(ctx context.Context, battleID int64) (func(), error) {
	ttl := s.cfg.TurnLockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	key := cache.BattleLockKey(battleID)
	token := uuid.NewString()
	ok, err := s.cache.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, fmt.Errorf("battle lock: %w", err)
	}
	if !ok {
		return nil, ErrBattleBusy
	}
	return func() {
		if _, err := s.cache.CompareAndDelete(context.Background(), key, token); err != nil {
			s.logger.Warn("release battle lock", zap.Int64("battle_id", battleID), zap.Error(err))
		}
	}, nil
}

func (s *Service) publish(ctx context.Context, battleID int64, ev battle.BattleEvent) {
	if s.pubsub == nil {
		return
	}
	payload, err := json.Marshal(Envelope{Type: ev.EventType(), Data: ev})
	if err != nil {
		s.logger.Error("marshal battle event", zap.Error(err))
		return
	}
	if err := s.pubsub.Publish(ctx, cache.BattleChannel(battleID), string(payload)); err != nil {
		s.logger.Warn("publish battle event",
			zap.Int64("battle_id", battleID),
			zap.String("type", ev.EventType()),
			zap.Error(err))
	}
}

func (s *Service) record(ctx context.Context, action string, accountID, battleID, monsterID int64, req, resp interface{}, errMsg string, took ...time.Duration) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		TraceID:   middleware.TraceIDFrom(ctx),
		AccountID: &accountID,
		BattleID:  &battleID,
		MonsterID: &monsterID,
		Action:    action,
		Request:   req,
		Response:  resp,
		Error:     errMsg,
	}
	if len(took) > 0 {
		entry.DurationMs = int(took[0].Milliseconds())
	}
	s.audit.Log(entry)
}

// rollOpponent generates a random opponent and runs it through the balancer.
func (s *Service) rollOpponent() balance.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	between := func(lo, hi float64) float64 {
		if hi < lo {
			lo, hi = hi, lo
		}
		return lo + s.rng.Float64()*(hi-lo)
	}
	t := battle.CycleTypes[s.rng.Intn(len(battle.CycleTypes))]
	noun := opponentNouns[s.rng.Intn(len(opponentNouns))]
	return balance.Balance(balance.RawStats{
		Name:        fmt.Sprintf("Wild %s %s", t, noun),
		Type:        string(t),
		Attack:      between(s.cfg.OpponentStatMin, s.cfg.OpponentStatMax),
		Defense:     between(s.cfg.OpponentStatMin, s.cfg.OpponentStatMax),
		Speed:       between(s.cfg.OpponentStatMin, s.cfg.OpponentStatMax),
		Health:      between(s.cfg.OpponentHealthMin, s.cfg.OpponentHealthMax),
		Description: fmt.Sprintf("A wild %s sketch escaped from the margins.", t),
	})
}

// orderedMoves loads ids and returns them in slot order.
func (s *Service) orderedMoves(ctx context.Context, ids []int64) ([]*model.Move, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	byID, err := s.repo.GetMoves(ctx, uniqueIDs(ids...))
	if err != nil {
		return nil, err
	}
	out := make([]*model.Move, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out, nil
}

func uniqueIDs(ids ...int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
