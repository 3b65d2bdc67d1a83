package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sketchmon/arena/cache"
	"github.com/sketchmon/arena/config"
	dbadapter "github.com/sketchmon/arena/db"
	"github.com/sketchmon/arena/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// SetupTestDB creates an isolated in-memory SQLite DB and runs AutoMigrate.
// It requires no external services and is safe to use in parallel tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := fmt.Sprintf("%s_%d", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()), dbSeq.Add(1))
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeMemory,
		MemoryName: name,
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// SetupTestCache returns the in-process cache and pub/sub pair.
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	c, ps := cache.NewLocal(config.CacheConfig{})
	t.Cleanup(func() {
		ps.Close()
		c.Close()
	})
	return c, ps
}
