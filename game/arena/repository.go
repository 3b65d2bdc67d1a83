package arena

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sketchmon/arena/game/battle"
	"github.com/sketchmon/arena/model"
	"github.com/sketchmon/arena/resource"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate go tool mockgen -destination=./mocks/repository_mock.go -package=mocks . Repository

// Repository is the persistence the arena service needs. Implementations
// return the package's not-found sentinels for missing rows.
type Repository interface {
	GetCombatant(ctx context.Context, monsterID int64) (*model.Monster, error)
	GetOpponent(ctx context.Context, enemyID int64) (*model.EnemyMonster, error)
	// GetMoves returns the requested moves keyed by id. Missing ids yield ErrMoveNotFound.
	GetMoves(ctx context.Context, ids []int64) (map[int64]*model.Move, error)
	GetBattle(ctx context.Context, battleID int64) (*model.Battle, error)
	// CreateBattle stores the generated opponent and the battle in one
	// transaction, filling in both ids.
	CreateBattle(ctx context.Context, opp *model.EnemyMonster, b *model.Battle) error
	// ApplyTurn writes the post-turn state if the stored version still equals
	// version, bumping turn and version. A stale version yields ErrBattleConflict.
	ApplyTurn(ctx context.Context, battleID, version int64, st battle.State, winner string) (*model.Battle, error)
}

// GormRepository implements Repository on gorm.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) GetCombatant(ctx context.Context, monsterID int64) (*model.Monster, error) {
	var m model.Monster
	if err := r.db.WithContext(ctx).First(&m, monsterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMonsterNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *GormRepository) GetOpponent(ctx context.Context, enemyID int64) (*model.EnemyMonster, error) {
	var e model.EnemyMonster
	if err := r.db.WithContext(ctx).First(&e, enemyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMonsterNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *GormRepository) GetMoves(ctx context.Context, ids []int64) (map[int64]*model.Move, error) {
	var rows []*model.Move
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]*model.Move, len(rows))
	for _, m := range rows {
		out[m.ID] = m
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrMoveNotFound, id)
		}
	}
	return out, nil
}

func (r *GormRepository) GetBattle(ctx context.Context, battleID int64) (*model.Battle, error) {
	var b model.Battle
	if err := r.db.WithContext(ctx).First(&b, battleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBattleNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *GormRepository) CreateBattle(ctx context.Context, opp *model.EnemyMonster, b *model.Battle) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(opp).Error; err != nil {
			return err
		}
		b.OppMonID = opp.ID
		return tx.Create(b).Error
	})
}

func (r *GormRepository) ApplyTurn(ctx context.Context, battleID, version int64, st battle.State, winner string) (*model.Battle, error) {
	var out model.Battle
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"player_health": st.PlayerHealth,
			"player_energy": st.PlayerEnergy,
			"opp_health":    st.OppHealth,
			"opp_energy":    st.OppEnergy,
			"turn":          gorm.Expr("turn + 1"),
			"version":       gorm.Expr("version + 1"),
		}
		if winner != model.WinnerNone {
			now := time.Now()
			updates["winner"] = winner
			updates["finished_at"] = &now
		}
		res := tx.Model(&model.Battle{}).
			Where("id = ? AND version = ? AND winner = ?", battleID, version, model.WinnerNone).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBattleConflict
		}
		return tx.First(&out, battleID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncMoves upserts the catalog moves into the moves table.
func (r *GormRepository) SyncMoves(ctx context.Context, moves []model.Move) error {
	if len(moves) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&moves).Error
}

// SyncCatalog mirrors every catalog move into the moves table so battles can
// reference them by id.
func (r *GormRepository) SyncCatalog(ctx context.Context, cat *resource.Catalog) error {
	rows := make([]model.Move, 0, len(cat.Moves))
	for _, m := range cat.Moves {
		rows = append(rows, model.Move{
			ID:                m.ID,
			Name:              m.Name,
			Tier:              m.Tier,
			Type:              m.Type,
			EnergyCost:        m.EnergyCost,
			AttackMultiplier:  m.AttackMultiplier,
			DefenseMultiplier: m.DefenseMultiplier,
			SpeedMultiplier:   m.SpeedMultiplier,
			IsDefense:         m.IsDefense,
		})
	}
	return r.SyncMoves(ctx, rows)
}

// ListWinners returns the number of battles won per account, most wins first.
func (r *GormRepository) ListWinners(ctx context.Context, limit int) ([]WinCount, error) {
	var rows []WinCount
	err := r.db.WithContext(ctx).Model(&model.Battle{}).
		Select("account_id, COUNT(*) AS wins").
		Where("winner = ?", model.WinnerPlayer).
		Group("account_id").
		Order("wins DESC, account_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// WinCount is one leaderboard row.
type WinCount struct {
	AccountID int64 `json:"account_id"`
	Wins      int64 `json:"wins"`
}
