package model

import "time"

// Account status values.
const (
	AccountBanned = 0
	AccountActive = 1
)

// Account owns monsters and battles. It is created on first login.
type Account struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash string `gorm:"size:64;not null" json:"-"`
	// Wallet is a public address shown on the leaderboard; never verified.
	Wallet      string     `gorm:"index;size:64" json:"wallet"`
	Status      int        `gorm:"default:1" json:"status"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `gorm:"size:45" json:"last_login_ip"`
}
