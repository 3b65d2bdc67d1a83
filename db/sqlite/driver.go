package sqlite

import (
	"fmt"
	"net/url"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var fileParams = url.Values{
	"_journal_mode": {"WAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"on"},
}

// Open opens a SQLite file. A path that already carries query parameters
// is used as given; otherwise WAL, a busy timeout and foreign keys are on.
func Open(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	dsn := path
	if !strings.Contains(path, "?") {
		dsn = "file:" + path + "?" + fileParams.Encode()
	}
	return gorm.Open(sqlite.Open(dsn), gcfg)
}

// OpenMemory opens a named shared-cache memory database. Distinct names are
// isolated from each other, which keeps parallel tests apart.
func OpenMemory(name string, gcfg *gorm.Config) (*gorm.DB, error) {
	if name == "" {
		name = "arena"
	}
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)), gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection keeps every query on the same memory database.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
