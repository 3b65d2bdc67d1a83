package arena

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/sketchmon/arena/audit"
	"github.com/sketchmon/arena/cache"
	"github.com/sketchmon/arena/config"
	"github.com/sketchmon/arena/game/arena/mocks"
	"github.com/sketchmon/arena/game/balance"
	"github.com/sketchmon/arena/game/battle"
	"github.com/sketchmon/arena/model"
	"github.com/sketchmon/arena/plugin/hook"
	"github.com/sketchmon/arena/resource"
	"github.com/sketchmon/arena/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func nop() *zap.Logger { return zap.NewNop() }

var gameCfg = config.GameConfig{
	StartEnergy:       100,
	OpponentStatMin:   1,
	OpponentStatMax:   10,
	OpponentHealthMin: 10,
	OpponentHealthMax: 100,
	TurnLockTTL:       5 * time.Second,
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Log(e audit.Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	db      *gorm.DB
	repo    *GormRepository
	cache   cache.Cache
	pubsub  cache.PubSub
	catalog *resource.Catalog
	audit   *recordingAudit
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	cat, err := resource.LoadCatalog("../../data/catalog.yaml")
	require.NoError(t, err)

	repo := NewGormRepository(db)
	require.NoError(t, repo.SyncCatalog(context.Background(), cat))

	rec := &recordingAudit{}
	svc := NewService(repo, cat, c, ps, gameCfg, nop()).
		WithAudit(rec).
		WithRand(rand.New(rand.NewSource(7)))
	return &fixture{db: db, repo: repo, cache: c, pubsub: ps, catalog: cat, audit: rec, svc: svc}
}

func (f *fixture) monster(t *testing.T, accountID int64) *model.Monster {
	t.Helper()
	m := &model.Monster{
		AccountID: accountID, Name: "Inky", Type: "Fight",
		Attack: 8, Defense: 5, Speed: 5, Health: 60,
	}
	require.NoError(t, f.db.Create(m).Error)
	return m
}

// battle stores a battle against a fixed Fright opponent with the given health.
func (f *fixture) battle(t *testing.T, mon *model.Monster, oppHealth int) *model.Battle {
	t.Helper()
	opp := &model.EnemyMonster{Name: "Wild Fright Blot", Type: "Fright", Attack: 4, Defense: 5, Speed: 3, Health: oppHealth}
	b := &model.Battle{
		AccountID: mon.AccountID, MonsterID: mon.ID,
		PlayerHealth: mon.Health, PlayerEnergy: 100,
		OppHealth: oppHealth, OppEnergy: 100,
		Moves: []int64{1, 11, 21},
	}
	require.NoError(t, f.repo.CreateBattle(context.Background(), opp, b))
	return b
}

func fixedSelector(t *testing.T, id int64) *mocks.MockMoveSelector {
	ctrl := gomock.NewController(t)
	sel := mocks.NewMockMoveSelector(ctrl)
	sel.EXPECT().ChooseOpponentMove(gomock.Any()).Return(id).AnyTimes()
	return sel
}

// ---- StartBattle ----

func TestStartBattle_InitialisesPools(t *testing.T) {
	f := newFixture(t)
	mon := f.monster(t, 1)

	view, err := f.svc.StartBattle(context.Background(), 1, mon.ID)
	require.NoError(t, err)

	b := view.Battle
	assert.Positive(t, b.ID)
	assert.Equal(t, mon.Health, b.PlayerHealth)
	assert.Equal(t, 100, b.PlayerEnergy)
	assert.Equal(t, 100, b.OppEnergy)
	assert.Equal(t, view.Opponent.Health, b.OppHealth)
	assert.Equal(t, view.Opponent.ID, b.OppMonID)
	assert.Equal(t, "in_progress", view.Outcome)

	require.Len(t, view.Moves, resource.Tiers)
	for i, m := range view.Moves {
		assert.Equal(t, i+1, m.Tier)
	}

	opp := view.Opponent
	assert.True(t, battle.ParseType(opp.Type).InCycle())
	assert.GreaterOrEqual(t, opp.Attack, balance.MinStat)
	assert.LessOrEqual(t, opp.Attack, balance.MaxStat)
	assert.GreaterOrEqual(t, opp.Health, balance.MinHealth)
	assert.LessOrEqual(t, opp.Health, balance.MaxHealth)

	stored, err := f.repo.GetOpponent(context.Background(), opp.ID)
	require.NoError(t, err)
	assert.Equal(t, opp.Name, stored.Name)
	assert.Equal(t, []string{audit.ActionBattleStarted}, f.audit.actions())
}

func TestStartBattle_NotOwner(t *testing.T) {
	f := newFixture(t)
	mon := f.monster(t, 1)

	_, err := f.svc.StartBattle(context.Background(), 2, mon.ID)
	assert.ErrorIs(t, err, ErrMonsterNotFound)
}

func TestStartBattle_MissingMonster(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.StartBattle(context.Background(), 1, 999)
	assert.ErrorIs(t, err, ErrMonsterNotFound)
}

func TestStartBattle_FiresHook(t *testing.T) {
	f := newFixture(t)
	mon := f.monster(t, 1)
	hc := hook.NewHookCenter()
	var got *hook.BattleContext
	hc.Register(hook.OnBattleStart, 0, "test", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		got = data.(*hook.BattleContext)
		return data, nil
	})
	f.svc.WithHooks(hc)

	view, err := f.svc.StartBattle(context.Background(), 1, mon.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, view.Battle.ID, got.BattleID)
	assert.Equal(t, mon.ID, got.MonsterID)
}

// ---- SubmitMove ----

func TestSubmitMove_ResolvesTurn(t *testing.T) {
	f := newFixture(t)
	f.svc.WithSelector(fixedSelector(t, 1))
	mon := f.monster(t, 1)
	b := f.battle(t, mon, 100)

	msgs, cancel, err := f.pubsub.Subscribe(context.Background(), cache.BattleChannel(b.ID))
	require.NoError(t, err)
	defer cancel()

	view, err := f.svc.SubmitMove(context.Background(), 1, b.ID, 0)
	require.NoError(t, err)

	// Fight attack 8 into a Fright defender with defense 5: round(8*2/5*10) = 32.
	// Fight attack 4 into a Fight defender with defense 5: round(4/5*10) = 8.
	assert.Equal(t, "in_progress", view.Outcome)
	assert.Equal(t, "player", view.Turn.First)
	assert.Equal(t, 32, view.Turn.Result.PlayerDamage)
	assert.Equal(t, 8, view.Turn.Result.OppDamage)
	assert.Equal(t, 68, view.Battle.OppHealth)
	assert.Equal(t, 52, view.Battle.PlayerHealth)
	assert.Equal(t, 95, view.Battle.PlayerEnergy)
	assert.Equal(t, 95, view.Battle.OppEnergy)
	assert.Equal(t, 1, view.Battle.Turn)
	assert.Equal(t, b.Version+1, view.Battle.Version)
	assert.Equal(t, model.WinnerNone, view.Battle.Winner)

	select {
	case msg := <-msgs:
		var env struct {
			Type string                   `json:"type"`
			Data battle.EventTurnResolved `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		assert.Equal(t, "turn_resolved", env.Type)
		assert.Equal(t, 1, env.Data.Turn)
		assert.Equal(t, int64(1), env.Data.PlayerMove.ID)
	case <-time.After(time.Second):
		t.Fatal("expected turn event")
	}

	assert.Equal(t, []string{audit.ActionTurnResolved}, f.audit.actions())

	ok, err := f.cache.Exists(context.Background(), cache.BattleLockKey(b.ID))
	require.NoError(t, err)
	assert.False(t, ok, "lock must be released")
}

func TestSubmitMove_KnockoutEndsBattle(t *testing.T) {
	f := newFixture(t)
	f.svc.WithSelector(fixedSelector(t, 1))
	hc := hook.NewHookCenter()
	var ended *hook.BattleContext
	hc.Register(hook.OnBattleEnd, 0, "test", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		ended = data.(*hook.BattleContext)
		return data, nil
	})
	f.svc.WithHooks(hc)
	mon := f.monster(t, 1)
	b := f.battle(t, mon, 30)

	view, err := f.svc.SubmitMove(context.Background(), 1, b.ID, 0)
	require.NoError(t, err)

	// The opponent is knocked out before it can retaliate.
	assert.Equal(t, "opponent_defeated", view.Outcome)
	assert.Equal(t, -2, view.Battle.OppHealth)
	assert.Equal(t, 60, view.Battle.PlayerHealth)
	assert.False(t, view.Turn.Result.OppDamageLanded)
	assert.Equal(t, 95, view.Battle.OppEnergy, "energy is paid even when knocked out")
	assert.Equal(t, model.WinnerPlayer, view.Battle.Winner)
	assert.NotNil(t, view.Battle.FinishedAt)

	require.NotNil(t, ended)
	assert.Equal(t, model.WinnerPlayer, ended.Winner)
	assert.Equal(t, []string{audit.ActionTurnResolved, audit.ActionBattleEnded}, f.audit.actions())

	_, err = f.svc.SubmitMove(context.Background(), 1, b.ID, 0)
	assert.ErrorIs(t, err, ErrBattleOver)
}

func TestSubmitMove_DefenseGoesFirst(t *testing.T) {
	f := newFixture(t)
	// Opponent answers with Shell Up, a defensive move.
	f.svc.WithSelector(fixedSelector(t, 14))
	mon := f.monster(t, 1)
	b := f.battle(t, mon, 100)

	view, err := f.svc.SubmitMove(context.Background(), 1, b.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "opponent", view.Turn.First)
}

func TestSubmitMove_Rejections(t *testing.T) {
	f := newFixture(t)
	f.svc.WithSelector(fixedSelector(t, 1))
	mon := f.monster(t, 1)
	b := f.battle(t, mon, 100)
	ctx := context.Background()

	_, err := f.svc.SubmitMove(ctx, 1, b.ID, 3)
	assert.ErrorIs(t, err, ErrMoveNotAllowed)
	_, err = f.svc.SubmitMove(ctx, 1, b.ID, -1)
	assert.ErrorIs(t, err, ErrMoveNotAllowed)
	_, err = f.svc.SubmitMove(ctx, 2, b.ID, 0)
	assert.ErrorIs(t, err, ErrBattleNotFound)
	_, err = f.svc.SubmitMove(ctx, 1, 999, 0)
	assert.ErrorIs(t, err, ErrBattleNotFound)
}

func TestSubmitMove_Busy(t *testing.T) {
	f := newFixture(t)
	mon := f.monster(t, 1)
	b := f.battle(t, mon, 100)
	ctx := context.Background()

	ok, err := f.cache.SetNX(ctx, cache.BattleLockKey(b.ID), "someone-else", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.SubmitMove(ctx, 1, b.ID, 0)
	assert.ErrorIs(t, err, ErrBattleBusy)

	// The foreign lock is untouched.
	v, err := f.cache.Get(ctx, cache.BattleLockKey(b.ID))
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestSubmitMove_HookRejects(t *testing.T) {
	f := newFixture(t)
	f.svc.WithSelector(fixedSelector(t, 1))
	hc := hook.NewHookCenter()
	hc.Register(hook.BeforeTurnResolve, 0, "veto", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		return data, hook.ErrInterrupt
	})
	f.svc.WithHooks(hc)
	mon := f.monster(t, 1)
	b := f.battle(t, mon, 100)

	_, err := f.svc.SubmitMove(context.Background(), 1, b.ID, 0)
	assert.ErrorIs(t, err, ErrTurnRejected)

	stored, err := f.repo.GetBattle(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Turn)
	assert.Equal(t, 100, stored.OppHealth)
}

func TestSubmitMove_ConflictReleasesLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	c, ps := testutil.SetupTestCache(t)
	cat, err := resource.LoadCatalog("../../data/catalog.yaml")
	require.NoError(t, err)

	b := &model.Battle{ID: 5, AccountID: 1, MonsterID: 2, OppMonID: 3,
		PlayerHealth: 60, PlayerEnergy: 100, OppHealth: 60, OppEnergy: 100,
		Moves: []int64{1, 11, 21}, Version: 4}
	repo.EXPECT().GetBattle(gomock.Any(), int64(5)).Return(b, nil)
	repo.EXPECT().GetCombatant(gomock.Any(), int64(2)).Return(&model.Monster{ID: 2, AccountID: 1, Type: "Fight", Attack: 5, Defense: 5, Speed: 5, Health: 60}, nil)
	repo.EXPECT().GetOpponent(gomock.Any(), int64(3)).Return(&model.EnemyMonster{ID: 3, Type: "Fairy", Attack: 5, Defense: 5, Speed: 5, Health: 60}, nil)
	repo.EXPECT().GetMoves(gomock.Any(), []int64{1}).Return(map[int64]*model.Move{
		1: {ID: 1, Name: "Scratch", Type: "Fight", EnergyCost: 5, AttackMultiplier: 1, DefenseMultiplier: 1, SpeedMultiplier: 1},
	}, nil)
	repo.EXPECT().ApplyTurn(gomock.Any(), int64(5), int64(4), gomock.Any(), model.WinnerNone).Return(nil, ErrBattleConflict)

	svc := NewService(repo, cat, c, ps, gameCfg, nop()).WithSelector(fixedSelector(t, 1))
	_, err = svc.SubmitMove(context.Background(), 1, 5, 0)
	assert.ErrorIs(t, err, ErrBattleConflict)

	ok, err := c.Exists(context.Background(), cache.BattleLockKey(5))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmitMove_RepositoryErrorIsWrapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	c, ps := testutil.SetupTestCache(t)
	cat, err := resource.LoadCatalog("../../data/catalog.yaml")
	require.NoError(t, err)

	boom := errors.New("disk on fire")
	repo.EXPECT().GetBattle(gomock.Any(), int64(9)).Return(nil, boom)

	svc := NewService(repo, cat, c, ps, gameCfg, nop())
	_, err = svc.SubmitMove(context.Background(), 1, 9, 0)
	assert.ErrorIs(t, err, boom)
}

// ---- GetBattle ----

func TestGetBattle(t *testing.T) {
	f := newFixture(t)
	mon := f.monster(t, 1)
	b := f.battle(t, mon, 100)

	view, err := f.svc.GetBattle(context.Background(), 1, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, view.Battle.ID)
	assert.Equal(t, "Wild Fright Blot", view.Opponent.Name)
	require.Len(t, view.Moves, 3)
	assert.Equal(t, []int64{1, 11, 21}, []int64{view.Moves[0].ID, view.Moves[1].ID, view.Moves[2].ID})

	_, err = f.svc.GetBattle(context.Background(), 2, b.ID)
	assert.ErrorIs(t, err, ErrBattleNotFound)
}

// ---- RandomSelector ----

func TestRandomSelector(t *testing.T) {
	sel := NewRandomSelector(1)
	pool := []int64{1, 2, 3}
	for i := 0; i < 50; i++ {
		assert.Contains(t, pool, sel.ChooseOpponentMove(pool))
	}
	assert.Zero(t, sel.ChooseOpponentMove(nil))
}
