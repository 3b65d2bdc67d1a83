package db

import (
	"fmt"

	"github.com/sketchmon/arena/config"
	dbmysql "github.com/sketchmon/arena/db/mysql"
	dbsqlite "github.com/sketchmon/arena/db/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	ModeMemory = "memory"
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// Open returns a *gorm.DB for the configured mode with SQL logging off.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return open(cfg, &gorm.Config{Logger: gormlogger.Discard})
}

// OpenWithLogger is Open with failed and slow statements logged to log.
func OpenWithLogger(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	return open(cfg, &gorm.Config{Logger: newZapLogger(log, cfg.SlowQuery)})
}

func open(cfg config.DatabaseConfig, gcfg *gorm.Config) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeMemory:
		return dbsqlite.OpenMemory(cfg.MemoryName, gcfg)
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath, gcfg)
	case ModeMySQL:
		return dbmysql.Open(dbmysql.Pool{
			DSN:         cfg.MySQLDSN,
			MaxOpen:     cfg.MySQLMaxOpen,
			MaxIdle:     cfg.MySQLMaxIdle,
			MaxLifetime: cfg.MySQLMaxLife,
		}, gcfg)
	}
	return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
}
