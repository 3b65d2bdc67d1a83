package model

import "gorm.io/gorm"

// AutoMigrate creates or updates the arena tables. Accounts come first
// because monsters and battles reference them.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Account{},
		&Move{},
		&Monster{},
		&EnemyMonster{},
		&Battle{},
		&AuditLog{},
	)
}
