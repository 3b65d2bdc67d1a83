package model

import (
	"time"

	"gorm.io/datatypes"
)

// Battle winners.
const (
	WinnerNone     = ""
	WinnerPlayer   = "player"
	WinnerOpponent = "opponent"
)

// Battle holds the per-battle health and energy pools. Version is bumped on
// every applied turn and guards concurrent writes.
type Battle struct {
	ID           int64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID    int64                      `gorm:"index:idx_battle_account;not null" json:"account_id"`
	MonsterID    int64                      `gorm:"index;not null" json:"monster_id"`
	OppMonID     int64                      `gorm:"not null" json:"opp_mon_id"`
	PlayerHealth int                        `gorm:"not null" json:"player_health"`
	PlayerEnergy int                        `gorm:"not null" json:"player_energy"`
	OppHealth    int                        `gorm:"not null" json:"opp_health"`
	OppEnergy    int                        `gorm:"not null" json:"opp_energy"`
	Moves        datatypes.JSONSlice[int64] `json:"moves"`
	Turn         int                        `gorm:"default:0" json:"turn"`
	Version      int64                      `gorm:"default:0" json:"version"`
	Winner       string                     `gorm:"index:idx_battle_winner;size:16" json:"winner"`
	FinishedAt   *time.Time                 `json:"finished_at"`
	CreatedAt    time.Time                  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                  `gorm:"autoUpdateTime" json:"updated_at"`
}
