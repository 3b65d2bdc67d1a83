package cache

import (
	"context"
	"testing"
	"time"

	"github.com/sketchmon/arena/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "session:abc", SessionKey("abc"))
	assert.Equal(t, "battle:lock:12", BattleLockKey(12))
	assert.Equal(t, "battle:12", BattleChannel(12))
}

func TestOpen_WithoutRedisFallsBackToLocal(t *testing.T) {
	c, ps, err := Open(config.CacheConfig{LocalGCInterval: time.Minute, LocalPubSubBuf: 4})
	require.NoError(t, err)
	defer c.Close()
	defer ps.Close()

	ctx := context.Background()
	_, err = c.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))
	_, err = c.ZScore(ctx, RankingWinsKey, "1")
	assert.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, SessionKey("t"), "7", time.Minute))
	v, err := c.Get(ctx, SessionKey("t"))
	require.NoError(t, err)
	assert.Equal(t, "7", v)
}

func TestNewLocal_PubSubBridge(t *testing.T) {
	_, ps := NewLocal(config.CacheConfig{})
	defer ps.Close()

	ctx := context.Background()
	ch, cancel, err := ps.Subscribe(ctx, BattleChannel(1))
	require.NoError(t, err)

	require.NoError(t, ps.Publish(ctx, BattleChannel(1), "turn"))
	select {
	case msg := <-ch:
		assert.Equal(t, "battle:1", msg.Channel)
		assert.Equal(t, "turn", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("no message")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "bridge must close with the subscription")
	case <-time.After(time.Second):
		t.Fatal("bridge still open")
	}
}
