package model

// Move is an immutable move template. IDs come from the catalog file.
type Move struct {
	ID                int64   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name              string  `gorm:"size:64;not null" json:"name"`
	Tier              int     `gorm:"index;not null" json:"tier"`
	Type              string  `gorm:"size:16;not null" json:"type"`
	EnergyCost        int     `gorm:"not null" json:"energy_cost"`
	AttackMultiplier  float64 `gorm:"not null" json:"attack_multiplier"`
	DefenseMultiplier float64 `gorm:"not null" json:"defense_multiplier"`
	SpeedMultiplier   float64 `gorm:"not null" json:"speed_multiplier"`
	IsDefense         bool    `gorm:"not null;default:false" json:"is_defense"`
}
