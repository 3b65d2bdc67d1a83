package model

import "time"

// Monster is a player-owned creature created from a sketch. Its stats are
// balanced on creation and never change afterwards.
type Monster struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID   int64     `gorm:"index:idx_monster_account;not null" json:"account_id"`
	Name        string    `gorm:"size:64;not null" json:"name"`
	Type        string    `gorm:"size:16;not null" json:"type"`
	Attack      int       `gorm:"not null" json:"attack"`
	Defense     int       `gorm:"not null" json:"defense"`
	Speed       int       `gorm:"not null" json:"speed"`
	Health      int       `gorm:"not null" json:"health"`
	Description string    `gorm:"type:text" json:"description"`
	Flavor      string    `gorm:"type:text" json:"flavor"`
	ImageRef    string    `gorm:"size:255" json:"image_ref"`
	TokenID     string    `gorm:"size:80" json:"token_id"` // set once minted externally
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// EnemyMonster is a generated opponent. Rows are created per battle.
type EnemyMonster struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:64;not null" json:"name"`
	Type        string    `gorm:"size:16;not null" json:"type"`
	Attack      int       `gorm:"not null" json:"attack"`
	Defense     int       `gorm:"not null" json:"defense"`
	Speed       int       `gorm:"not null" json:"speed"`
	Health      int       `gorm:"not null" json:"health"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
